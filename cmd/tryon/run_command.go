package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tryon/internal/imagegen"
	"tryon/internal/storage"
	"tryon/internal/tryon"
	"tryon/pkg/zip"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var userPath, product, label, outPath, bundlePath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Render the person wearing the product and recommend a size",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(userPath) == "" {
				return errors.New("--user is required")
			}
			if strings.TrimSpace(product) == "" {
				return errors.New("--product is required")
			}

			userRaw, err := os.ReadFile(userPath)
			if err != nil {
				return fmt.Errorf("read user photo: %w", err)
			}
			source, err := productSource(product)
			if err != nil {
				return err
			}

			svc, err := ctx.service()
			if err != nil {
				return err
			}
			res, err := svc.PerformTryOn(cmd.Context(), imagegen.FromBytes(userRaw), source, label)
			if err != nil {
				return ctx.userMessage(err)
			}

			dir, name := filepath.Split(outPath)
			if name == "" {
				name = res.AttemptID
			}
			if dir == "" {
				dir = "."
			}
			store, err := storage.NewFileStore(dir)
			if err != nil {
				return err
			}
			key, err := store.WriteImage(cmd.Context(), name, res.Image)
			if err != nil {
				return err
			}
			written, err := store.Path(key)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Attempt:          %s\n", res.AttemptID)
			fmt.Fprintf(out, "Image:            %s (%s, %d bytes)\n", written, res.Image.MediaType, res.Image.Size)
			fmt.Fprintf(out, "Recommended size: %s\n", res.RecommendedSize)

			if bundlePath != "" {
				if err := writeBundle(cmd, bundlePath, filepath.Base(written), label, res); err != nil {
					return err
				}
				fmt.Fprintf(out, "Bundle:           %s\n", bundlePath)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&userPath, "user", "u", "", "Photo of the person")
	cmd.Flags().StringVarP(&product, "product", "p", "", "Product image: local file, http(s) URL or data URI")
	cmd.Flags().StringVarP(&label, "label", "l", "", "Product name used in the prompt")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (defaults to <attempt-id>.jpg in the current directory)")
	cmd.Flags().StringVar(&bundlePath, "bundle", "", "Also write a zip with the image and a manifest.json")
	return cmd
}

func writeBundle(cmd *cobra.Command, path, imageName, label string, res *imagegen.TryOnResult) error {
	raw, err := res.Image.Bytes()
	if err != nil {
		return err
	}
	archive, err := zip.Bundle(zip.Manifest{
		AttemptID:       res.AttemptID,
		ProductLabel:    strings.TrimSpace(label),
		RecommendedSize: string(res.RecommendedSize),
		Image:           imageName,
		MediaType:       string(res.Image.MediaType),
		Bytes:           res.Image.Size,
		CreatedAt:       time.Now().UTC().Truncate(time.Second),
	}, raw)
	if err != nil {
		return err
	}
	dir, name := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	store, err := storage.NewFileStore(dir)
	if err != nil {
		return err
	}
	_, err = store.Write(cmd.Context(), name, archive)
	return err
}

// productSource treats existing local paths as files and everything else as
// a URL or data URI for the fetcher.
func productSource(ref string) (tryon.ProductSource, error) {
	ref = strings.TrimSpace(ref)
	if imagegen.IsDataURI(ref) || strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return tryon.ProductSource{URL: ref}, nil
	}
	raw, err := os.ReadFile(ref)
	if err != nil {
		return tryon.ProductSource{}, fmt.Errorf("read product image: %w", err)
	}
	return tryon.ProductSource{Source: imagegen.FromBytes(raw)}, nil
}

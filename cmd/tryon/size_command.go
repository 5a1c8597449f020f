package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"tryon/internal/imagegen"
)

func newSizeCommand(ctx *commandContext) *cobra.Command {
	var userPath, label string

	cmd := &cobra.Command{
		Use:   "size",
		Short: "Estimate the garment size for a photo",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(userPath) == "" {
				return errors.New("--user is required")
			}
			raw, err := os.ReadFile(userPath)
			if err != nil {
				return fmt.Errorf("read user photo: %w", err)
			}
			svc, err := ctx.service()
			if err != nil {
				return err
			}
			size := svc.EstimateSize(cmd.Context(), imagegen.FromBytes(raw), label)
			fmt.Fprintln(cmd.OutOrStdout(), size)
			return nil
		},
	}

	cmd.Flags().StringVarP(&userPath, "user", "u", "", "Photo of the person")
	cmd.Flags().StringVarP(&label, "label", "l", "", "Product name used in the prompt")
	return cmd
}

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.cfg
			prompts := cfg.PromptsFile
			if prompts == "" {
				prompts = "(built-in)"
			}
			rows := [][]string{
				{"APP_ENV", cfg.AppEnv},
				{"LOG_LEVEL", orDash(cfg.LogLevel)},
				{"GEMINI_API_KEY", cfg.MaskedAPIKey()},
				{"GEMINI_TRANSPORT", cfg.GeminiTransport},
				{"GEMINI_BASE_URL", cfg.GeminiBaseURL},
				{"GEMINI_IMAGE_MODEL", cfg.GeminiImageModel},
				{"GEMINI_TEXT_MODEL", cfg.GeminiTextModel},
				{"GEMINI_TIMEOUT_SECONDS", strconv.Itoa(int(cfg.GeminiTimeout.Seconds()))},
				{"PROMPTS_FILE", prompts},
				{"IMAGE_PROXY_URL", cfg.ImageProxyURL},
				{"IMAGE_PROXY_WIDTH", strconv.Itoa(cfg.ImageProxyWidth)},
				{"IMAGE_PROXY_QUALITY", strconv.Itoa(cfg.ImageProxyQuality)},
				{"USER_MAX_DIMENSION", strconv.Itoa(cfg.UserMaxDimension)},
				{"PRODUCT_MAX_DIMENSION", strconv.Itoa(cfg.ProductMaxDimension)},
				{"SIZE_MAX_DIMENSION", strconv.Itoa(cfg.SizeMaxDimension)},
				{"OUTPUT_MAX_DIMENSION", strconv.Itoa(cfg.OutputMaxDimension)},
				{"JPEG_QUALITY", strconv.Itoa(cfg.JPEGQuality)},
				{"DEFAULT_LOCALE", cfg.DefaultLocale},
				{"CORS_ALLOWED_ORIGINS", strings.Join(cfg.CORSAllowedOrigins, ", ")},
			}
			table := renderTable([]string{"Key", "Value"}, rows, []columnAlignment{alignLeft, alignLeft})
			fmt.Fprint(cmd.OutOrStdout(), table)
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
}

func orDash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}

package main

import (
	"fmt"
	"io"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"tryon/internal/bootstrap"
	"tryon/internal/infra"
	"tryon/internal/providers/genai"
	"tryon/internal/tryon"
)

// commandContext carries state shared by subcommands. Configuration is loaded
// once in the root's PersistentPreRunE.
type commandContext struct {
	envFile string
	locale  string
	verbose bool

	cfg    *infra.Config
	logger zerolog.Logger

	// provider overrides the configured transport in tests.
	provider genai.Generator
}

func (c *commandContext) load(stderr io.Writer) error {
	if c.envFile != "" {
		if err := godotenv.Load(c.envFile); err != nil {
			return fmt.Errorf("load env file: %w", err)
		}
	} else {
		_ = godotenv.Load()
	}
	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	c.cfg = cfg

	level := cfg.LogLevel
	switch {
	case c.verbose:
		level = zerolog.LevelDebugValue
	case level == "":
		level = zerolog.LevelWarnValue
	}
	c.logger = infra.NewConsoleLogger(stderr, level)
	return nil
}

func (c *commandContext) service() (*tryon.Service, error) {
	return bootstrap.NewService(c.cfg, &c.logger, c.provider)
}

// userMessage renders a pipeline failure in the selected locale.
func (c *commandContext) userMessage(err error) error {
	pe := tryon.Classify(err)
	locale := c.locale
	if locale == "" && c.cfg != nil {
		locale = c.cfg.DefaultLocale
	}
	return fmt.Errorf("%s (%s)", pe.Message(tryon.MatchLanguage(locale)), pe.Kind)
}

func newRootCommand() *cobra.Command {
	return newRootCommandWith(&commandContext{})
}

func newRootCommandWith(ctx *commandContext) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "tryon",
		Short:         "Virtual try-on from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.load(cmd.ErrOrStderr())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&ctx.envFile, "env-file", "", "Load environment variables from this file")
	rootCmd.PersistentFlags().StringVar(&ctx.locale, "locale", "", "Message language (en or de)")
	rootCmd.PersistentFlags().BoolVarP(&ctx.verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newSizeCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}

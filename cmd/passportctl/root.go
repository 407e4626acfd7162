package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/dunamismax/passportflow/internal/config"
	"github.com/dunamismax/passportflow/internal/processing"
	"github.com/dunamismax/passportflow/internal/telemetry"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type commandContext struct {
	configFlag     string
	serviceURLFlag string
	verbose        bool

	cfg    *config.Config
	logger zerolog.Logger
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	path := c.configFlag
	if path == "" {
		path = os.Getenv("PASSPORTFLOW_CONFIG")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if url := strings.TrimSpace(c.serviceURLFlag); url != "" {
		cfg.Collaborator.BaseURL = strings.TrimSuffix(url, "/")
	}
	if !c.verbose && cfg.Logging.Level == "info" {
		cfg.Logging.Level = "warn"
	}
	c.cfg = &cfg
	c.logger = telemetry.NewLogger(cfg.Logging, os.Stderr, "passportctl")
	return c.cfg, nil
}

func (c *commandContext) processingClient() (*processing.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return processing.NewClient(processing.Config{
		BaseURL:    cfg.Collaborator.BaseURL,
		PathPrefix: cfg.Collaborator.PathPrefix,
		Timeout:    cfg.Collaborator.Timeout(),
		Logger:     c.logger,
	})
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "passportctl",
		Short:         "Create passport photos with the processing service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&ctx.serviceURLFlag, "service-url", "", "Processing service base URL")
	rootCmd.PersistentFlags().BoolVarP(&ctx.verbose, "verbose", "v", false, "Log progress to stderr")

	rootCmd.AddCommand(newSizesCommand(ctx))
	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newPreviewCommand(ctx))

	return rootCmd
}

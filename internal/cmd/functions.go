package cmd

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tomasbasham/cli-runtime/templates"

	"resumeboost/internal/bootstrap"
	"resumeboost/internal/config"
)

var (
	extractorLong = templates.LongDesc(`
		Run the PDF text extractor function. It reads a resume from the
		bucket, extracts its text and stores it under parsed_resumes/.`)

	scraperLong = templates.LongDesc(`
		Run the web scraper function. It fetches a job posting and returns
		its visible text, storing it when a key is given.`)
)

// NewFunctionOptions returns server options for a bundled function.
func NewFunctionOptions(root *RootOptions) *ServeOptions {
	return NewServeOptions(root)
}

func noCleanup() {}

func NewExtractorCommand(o *ServeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extractor",
		Short: "Run the PDF text extractor function",
		Long:  extractorLong,
		RunE: func(_ *cobra.Command, _ []string) error {
			return o.serve("resumeboost-extractor", func(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) (*fiber.App, func(), error) {
				app, err := bootstrap.NewExtractorApp(ctx, cfg, log)
				return app, noCleanup, err
			})
		},
	}
	cmd.Flags().StringVarP(&o.Port, "port", "p", "8081", "port to listen on")
	return cmd
}

func NewScraperCommand(o *ServeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scraper",
		Short: "Run the web scraper function",
		Long:  scraperLong,
		RunE: func(_ *cobra.Command, _ []string) error {
			return o.serve("resumeboost-scraper", func(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) (*fiber.App, func(), error) {
				app, err := bootstrap.NewScraperApp(ctx, cfg, log)
				return app, noCleanup, err
			})
		},
	}
	cmd.Flags().StringVarP(&o.Port, "port", "p", "8082", "port to listen on")
	return cmd
}

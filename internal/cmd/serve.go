package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tomasbasham/cli-runtime/templates"

	"resumeboost/internal/bootstrap"
	"resumeboost/internal/config"
	"resumeboost/internal/otel"
)

var (
	serveLong = templates.LongDesc(`Start the ResumeBoost HTTP API.`)

	serveExample = templates.Examples(`
		# Start on the configured port
		resumeboost serve

		# Start on a custom port
		resumeboost serve --port 9090`)
)

// ServeOptions is shared by every command that runs an HTTP server.
type ServeOptions struct {
	root *RootOptions

	Port string
}

func NewServeOptions(root *RootOptions) *ServeOptions {
	return &ServeOptions{root: root}
}

func NewServeCommand(o *ServeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Start the HTTP API",
		Long:    serveLong,
		Example: serveExample,
		RunE: func(_ *cobra.Command, _ []string) error {
			return o.serve("resumeboost-api", func(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) (*fiber.App, func(), error) {
				return bootstrap.NewAPI(ctx, cfg, log)
			})
		},
	}
	cmd.Flags().StringVarP(&o.Port, "port", "p", "", "port to listen on (default from config)")
	return cmd
}

type appBuilder func(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) (*fiber.App, func(), error)

func (o *ServeOptions) serve(name string, build appBuilder) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, log, err := o.root.Load()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	shutdownTracing, err := otel.Init(ctx, name, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn("tracer shutdown", zap.Error(err))
		}
	}()

	app, cleanup, err := build(ctx, cfg, log)
	if err != nil {
		log.Error("building server", zap.String("app", name), zap.Error(err))
		return err
	}
	defer cleanup()

	port := o.Port
	if port == "" {
		port = cfg.Port
	}
	return bootstrap.Serve(ctx, app, ":"+port, log)
}

package main

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/isdmx/runbox/config"
	"github.com/isdmx/runbox/logger"
	"github.com/isdmx/runbox/mcpserver"
	"github.com/isdmx/runbox/sandbox"
)

func main() {
	app := fx.New(
		// Provide dependencies
		fx.Provide(
			// Config
			config.New,

			// Logger with configuration
			logger.NewFromConfig,

			// Execution metrics on the default registry, served at server.metrics_path
			sandbox.NewDefaultMetrics,

			// Sandbox executor based on config
			sandbox.NewExecutor,

			// MCP Server
			mcpserver.New,
		),

		// Start the appropriate transport based on config
		fx.Invoke(startTransport),

		// Use the application logger for fx logs
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)

	// Start the application
	app.Run()
}

// startTransport runs the configured transport in the background. The stdio
// transport returns when the client closes stdin, which stops the application.
func startTransport(lc fx.Lifecycle, shutdowner fx.Shutdowner, cfg *config.Config, log *zap.Logger, server *mcpserver.MCPServer) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			switch cfg.Server.Transport {
			case "stdio":
				go func() {
					if err := server.ServeStdio(); err != nil {
						log.Error("stdio transport stopped", zap.Error(err))
						_ = shutdowner.Shutdown(fx.ExitCode(1))
						return
					}
					_ = shutdowner.Shutdown()
				}()
			case "http":
				go func() {
					if err := server.ServeHTTP(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						log.Error("http transport stopped", zap.Error(err))
						_ = shutdowner.Shutdown(fx.ExitCode(1))
					}
				}()
			default:
				return errors.New("unsupported transport: " + cfg.Server.Transport)
			}
			return nil
		},
		OnStop: func(context.Context) error {
			_ = log.Sync()
			return nil
		},
	})
}

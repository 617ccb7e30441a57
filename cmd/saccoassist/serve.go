package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xhad/saccoassist/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and websocket API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		deps := server.Deps{
			Documents: a.ingest,
			Chat:      a.chat,
			Summaries: a.summaries,
		}
		if a.website != nil {
			deps.Website = a.website
			go a.website.Run(ctx, cfg.Website.URL, cfg.Website.RefreshInterval)
		}

		port := cfg.Server.Port
		if servePort > 0 {
			port = servePort
		}

		srv := server.New(deps, server.Config{
			MaxUploadBytes: cfg.Server.MaxUploadBytes,
			AllowOrigins:   cfg.Server.AllowOrigins,
			WebsiteURL:     cfg.Website.URL,
		}, logger)

		logger.Info("saccoassist ready",
			zap.String("llm", cfg.LLM.Provider+"/"+cfg.LLM.Model),
			zap.String("database", cfg.Database.Driver),
			zap.Bool("redis", a.redis != nil),
			zap.Bool("website", a.website != nil),
		)
		return srv.Run(ctx, fmt.Sprintf(":%d", port))
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "listen port (overrides server.port)")
}

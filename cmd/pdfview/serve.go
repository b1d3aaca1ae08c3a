package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wudi/pdfviewer/extensions"
	"github.com/wudi/pdfviewer/observability"
	"github.com/wudi/pdfviewer/server"
	"github.com/wudi/pdfviewer/ticket"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve viewers to browsers",
	Long: `Start the viewer host. Browsers load the shim at / and open documents
with tickets minted by "pdfview ticket".`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Server.TicketSecret == "" {
			return fmt.Errorf("server.ticket_secret is required")
		}
		signer, err := ticket.NewSigner([]byte(cfg.Server.TicketSecret), cfg.Server.TicketTTL)
		if err != nil {
			return err
		}
		addr := cfg.Server.Addr
		if serveAddr != "" {
			addr = serveAddr
		}

		vcfg := cfg.ViewerOptions(logger)
		if cfg.Viewer.Scripts {
			vcfg.Scripts = extensions.NewJavaScriptRunner(nil, logger)
		}
		srv, err := server.New(server.Config{
			Addr:           addr,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			MaxSessions:    cfg.Server.MaxSessions,
			Loader:         newLoader(cfg, logger, false),
			Tickets:        signer,
			Viewer:         vcfg,
			Logger:         logger,
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go func() {
			<-ctx.Done()
			logger.Info("shutting down server")
			sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil {
				logger.Warn("shutdown", observability.Error("error", err))
			}
		}()

		logger.Info("pdfview server starting",
			observability.String("version", Version),
			observability.String("addr", addr))
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default: server.addr)")
	rootCmd.AddCommand(serveCmd)
}

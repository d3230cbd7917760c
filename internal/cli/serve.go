package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/raysh454/medtriage/internal/logging"
	"github.com/raysh454/medtriage/internal/server"
)

func newServeCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the local HTTP and WebSocket API",
		Long: `Start the local API a UI drives: scan job control, history, reports,
theme and the unlock gate. Scan progress is streamed on /ws/scan.

Examples:
  medtriage serve
  medtriage serve --listen 127.0.0.1:9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			cfg := a.Config.Server
			srv, err := server.NewServer(server.Config{
				ListenAddr:     cfg.ListenAddr,
				AllowedOrigins: cfg.AllowedOrigins,
				MaxUploadBytes: cfg.MaxUploadBytes,
				App:            a,
				Logger:         a.Logger,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			httpSrv := srv.HTTPServer()
			errCh := make(chan error, 1)
			go func() {
				a.Logger.Info("listening", logging.Field{Key: "addr", Value: httpSrv.Addr})
				errCh <- httpSrv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			a.Logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().String("listen", "", "Listen address (overrides server.listen_addr)")
	_ = rt.v.BindPFlag("server.listen_addr", cmd.Flags().Lookup("listen"))
	return cmd
}

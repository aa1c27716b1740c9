package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := fromContext(cmd)
			if err != nil {
				return err
			}
			if !cc.cfg.Development() {
				gin.SetMode(gin.ReleaseMode)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return withTelemetry(ctx, cc, func(ctx context.Context) error {
				srv, err := buildServer(cc.cfg, cc.log)
				if err != nil {
					return err
				}
				defer srv.store.Close()

				httpSrv := &http.Server{
					Addr:              cc.cfg.HTTP.Addr,
					Handler:           srv.handler,
					ReadHeaderTimeout: 10 * time.Second,
				}
				errCh := make(chan error, 1)
				go func() {
					cc.log.Info("http_listening", zap.String("addr", cc.cfg.HTTP.Addr), zap.String("mode", cc.cfg.Mode))
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
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				cc.log.Info("http_shutdown")
				return httpSrv.Shutdown(shutdownCtx)
			})
		},
	}
}

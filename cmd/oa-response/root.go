package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/joelkehle/office-action-response/internal/config"
	"github.com/joelkehle/office-action-response/internal/logging"
	"github.com/joelkehle/office-action-response/internal/telemetry"
)

type rootOptions struct {
	configPath string
}

type cliContextKey struct{}

type cliContext struct {
	cfg *config.Config
	log *zap.Logger
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "oa-response",
		Short: "Draft responses to patent office actions",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey{}, &cliContext{cfg: cfg, log: log}))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML config file (OARESP_* variables override it)")
	cmd.AddCommand(newServeCommand(), newExtractCommand(), newRenderCommand())
	return cmd
}

func fromContext(cmd *cobra.Command) (*cliContext, error) {
	cc, ok := cmd.Context().Value(cliContextKey{}).(*cliContext)
	if !ok {
		return nil, fmt.Errorf("command context not initialized")
	}
	return cc, nil
}

// withTelemetry runs fn with tracing installed and flushes spans afterwards.
func withTelemetry(ctx context.Context, cc *cliContext, fn func(context.Context) error) error {
	shutdown, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:  cc.cfg.Telemetry.ServiceName,
		OTLPEndpoint: cc.cfg.Telemetry.OTLPEndpoint,
	}, cc.log)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			cc.log.Warn("telemetry_shutdown_failed", zap.Error(err))
		}
	}()
	return fn(ctx)
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rmax-ai/scorelink/pkg/client"
	"github.com/rmax-ai/scorelink/pkg/mockengine"
)

type options struct {
	url      string
	deferred bool
	verbose  bool
}

func newRootCmd() *cobra.Command {
	var o options
	cmd := &cobra.Command{
		Use:          "scorelink-mockd",
		Short:        "Serve an in-memory scoring engine over REP",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, o)
		},
	}
	cmd.Flags().StringVar(&o.url, "url", client.DefaultServiceURL, "endpoint to listen on")
	cmd.Flags().BoolVar(&o.deferred, "deferred", false, "queue writes until synchronize")
	cmd.Flags().BoolVarP(&o.verbose, "verbose", "v", false, "debug logging")
	return cmd
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(ctx context.Context, o options) error {
	logger, err := newLogger(o.verbose)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	opts := []mockengine.Option{mockengine.WithLogger(logger)}
	if o.deferred {
		opts = append(opts, mockengine.WithDeferred())
	}

	logger.Info("mockd starting", zap.String("url", o.url), zap.Bool("deferred", o.deferred))
	if err := mockengine.New(opts...).Serve(ctx, o.url); err != nil {
		logger.Error("mockd serve failed", zap.Error(err))
		return err
	}
	logger.Info("mockd stopped")
	return nil
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

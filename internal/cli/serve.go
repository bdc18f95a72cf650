package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/net/netutil"

	httpadapter "scandesk/internal/adapters/http"
	"scandesk/internal/config"
)

type serveOptions struct {
	Addr string
}

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:          "serve",
		Short:        "Run the scan API",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), rootOpts, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides LISTEN_ADDR)")
	return cmd
}

func runServe(ctx context.Context, rootOpts *RootOptions, opts *serveOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if opts.Addr != "" {
		cfg.ListenAddr = opts.Addr
	}
	log := rootOpts.logger(cfg.LogLevel)
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return err
	}
	if cfg.MaxConns > 0 {
		ln = netutil.LimitListener(ln, cfg.MaxConns)
	}

	srv := &http.Server{
		Handler:           httpadapter.New(a.pipeline, a.reverifier(), log).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	log.WithField("addr", ln.Addr().String()).Info("listening")

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

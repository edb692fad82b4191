package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/owldoor/zipradius/internal/server"
)

func newServeCmd(c *cli) *cobra.Command {
	var warm bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP proximity service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.serve(ctx, warm, nil)
		},
	}
	cmd.Flags().BoolVar(&warm, "warm", false, "load the reference data before accepting requests")
	return cmd
}

// serve runs until ctx is done. When ready is non-nil the bound address is
// sent on it once the listener is open.
func (c *cli) serve(ctx context.Context, warm bool, ready chan<- string) error {
	a, err := c.newApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		c.logger.Info("closing data sources")
		a.Close()
	}()

	if warm {
		table, err := a.store.Load(ctx)
		if err != nil {
			return fmt.Errorf("error warming reference data: %w", err)
		}
		c.logger.Info("reference data warm", zap.Int("records", table.Len()), zap.String("source", table.Source()))
	}

	handler := server.New(a.svc, a.store,
		server.WithLogger(c.logger),
		server.WithCORSOrigin(c.cfg.Server.CORSOrigin),
	)
	srv := &http.Server{
		Handler:      handler,
		ReadTimeout:  c.cfg.GetReadTimeout(),
		WriteTimeout: c.cfg.GetWriteTimeout(),
	}

	ln, err := net.Listen("tcp", c.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("error listening on %s: %w", c.cfg.Server.Addr, err)
	}

	serverErrors := make(chan error, 1)
	go func() {
		c.logger.Info("web service listening", zap.String("addr", ln.Addr().String()))
		serverErrors <- srv.Serve(ln)
	}()
	if ready != nil {
		ready <- ln.Addr().String()
	}

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		c.logger.Info("received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.GetShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		srv.Close()
		return fmt.Errorf("could not stop server gracefully: %w", err)
	}
	if err := <-serverErrors; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

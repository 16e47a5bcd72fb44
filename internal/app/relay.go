package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"presence-room/internal/config"
	"presence-room/internal/net/ws"
	"presence-room/internal/relay"
)

const shutdownTimeout = 5 * time.Second

// RunRelay serves a presence relay on cfg.Relay.Listen until ctx is
// cancelled, then shuts the listener down gracefully.
func RunRelay(ctx context.Context, cfg config.Config) error {
	rt, err := newRuntime(cfg, nil)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rt.Close(); cerr != nil {
			rt.logger.Printf("failed to close logging: %v", cerr)
		}
	}()

	listener, err := net.Listen("tcp", cfg.Relay.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Relay.Listen, err)
	}
	return serveRelay(ctx, listener, cfg, rt)
}

func serveRelay(ctx context.Context, listener net.Listener, cfg config.Config, rt *runtime) error {
	hub := relay.NewHub(relay.Deps{Logger: rt.logger, Metrics: rt.metrics})
	handler := ws.NewServer(hub, ws.ServerConfig{
		Logger:        rt.logger,
		Metrics:       rt.metrics,
		SendBacklog:   cfg.Relay.SendBacklog,
		Observability: cfg.Relay.Observability,
	}).Handler()

	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	rt.logger.Printf("relay listening on %s", listener.Addr())

	served := make(chan error, 1)
	go func() {
		served <- srv.Serve(listener)
	}()

	select {
	case err := <-served:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("relay failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("relay shutdown: %w", err)
	}
	<-served
	return nil
}

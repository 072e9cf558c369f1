package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"visionary/internal/blobstore"
	"visionary/internal/config"
	"visionary/internal/logging"
	"visionary/internal/transcriptapi"
)

const shutdownGrace = 10 * time.Second

func newServer(cfg config.ServerConfig, store blobstore.Store) *http.Server {
	handler := transcriptapi.NewHandler(store, transcriptapi.Options{
		Secret:       cfg.APISecret,
		MaxBodyBytes: cfg.MaxBodyBytes,
	})
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           transcriptapi.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
}

// serve runs srv until ctx is done, then drains in-flight requests.
func serve(ctx context.Context, srv *http.Server) error {
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}
	return serveListener(ctx, srv, ln)
}

func serveListener(ctx context.Context, srv *http.Server, ln net.Listener) error {
	log := logging.L("transcript-api")

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Package api contains the HTTP server for the Micropub endpoints.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	v1 "github.com/indiepub/indiepub/pkg/api/v1"
	"github.com/indiepub/indiepub/pkg/auth"
	"github.com/indiepub/indiepub/pkg/config"
	"github.com/indiepub/indiepub/pkg/logger"
	"github.com/indiepub/indiepub/pkg/metrics"
	"github.com/indiepub/indiepub/pkg/storage"
)

const (
	middlewareTimeout = 60 * time.Second
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Deps carries the constructed dependencies the server wires together.
type Deps struct {
	Config   *config.Config
	Verifier *auth.Verifier
	Store    storage.Adapter
	Media    storage.MediaAdapter
	Metrics  *metrics.Metrics
}

// Router assembles the full route tree. Split from Serve so tests can
// exercise the routing without a listener.
func Router(deps Deps) (http.Handler, error) {
	siteURL, err := url.Parse(deps.Config.SiteURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse site URL: %w", err)
	}

	handlerCfg := v1.Config{
		SiteURL:           siteURL,
		MediaEndpoint:     deps.Config.MediaEndpoint,
		SyndicateTo:       deps.Config.SyndicateTo,
		EnforceScopes:     deps.Config.EnforceScopes,
		EnableUpdates:     deps.Config.EnableUpdates,
		EnableDeletes:     deps.Config.EnableDeletes,
		MaxMediaBytes:     deps.Config.MaxMediaBytes,
		AllowedMediaTypes: deps.Config.AllowedMediaTypes,
	}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.Timeout(middlewareTimeout),
	)

	r.Mount("/health", v1.HealthcheckRouter())
	r.Mount("/metrics", deps.Metrics.Handler())

	// Preflight answers come from the CORS middleware, before the token
	// verifier runs.
	r.Group(func(r chi.Router) {
		r.Use(
			corsMiddleware(deps.Config.AllowedOrigins),
			deps.Verifier.Middleware,
		)
		r.With(deps.Metrics.Middleware("micropub")).
			Mount("/micropub", v1.MicropubRouter(handlerCfg, deps.Store, deps.Media))
		r.With(deps.Metrics.Middleware("media")).
			Mount("/media", v1.MediaRouter(handlerCfg, deps.Media))
	})

	return r, nil
}

// Serve starts the server on the configured address and blocks until
// ctx is cancelled. The caller sets up signal handling.
func Serve(ctx context.Context, deps Deps) error {
	handler, err := Router(deps)
	if err != nil {
		return err
	}

	srv := &http.Server{
		BaseContext:       func(net.Listener) context.Context { return ctx },
		Addr:              deps.Config.Address,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	logger.Infof("starting HTTP server on %s", deps.Config.Address)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server stopped with error: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		return err
	}
	logger.Info("HTTP server stopped")
	return nil
}

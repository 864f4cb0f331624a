package http

// this is entry point of the admin API

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"gitlab.com/arbfn-2025.net/internal/config"
	"gitlab.com/arbfn-2025.net/internal/core/ports/primary"
	auth2 "gitlab.com/arbfn-2025.net/internal/core/services/auth"
	"gitlab.com/arbfn-2025.net/internal/core/services/monitor"
	"gitlab.com/arbfn-2025.net/internal/domain"
	"gitlab.com/arbfn-2025.net/internal/handlers"
	"gitlab.com/arbfn-2025.net/internal/handlers/auth"
	monitorhandler "gitlab.com/arbfn-2025.net/internal/handlers/monitor"
	"gitlab.com/arbfn-2025.net/internal/handlers/workers"
)

type ServiceProvider struct {
	monitorService monitor.IMonitorService
	localAuth      auth2.IAuthService
	jwt            primary.JWTService
}

func NewServiceProvider(
	monitorService monitor.IMonitorService,
	localAuth auth2.IAuthService,
	jwt primary.JWTService,
) *ServiceProvider {
	return &ServiceProvider{
		monitorService: monitorService,
		localAuth:      localAuth,
		jwt:            jwt,
	}
}

type Server struct {
	router          *mux.Router
	address         string
	shutdownTimeout time.Duration
	ServiceProvider ServiceProvider
	logger          primary.Logger
	listener        net.Listener
}

func NewServer(cfg *config.HTTPConfig, serviceProvider ServiceProvider, logger primary.Logger) *Server {
	return &Server{
		address:         cfg.Address,
		shutdownTimeout: cfg.ShutdownTimeout,
		ServiceProvider: serviceProvider,
		logger:          logger,
	}
}

func (s *Server) Init() error {
	r := mux.NewRouter()
	monitorApi := monitorhandler.NewHandler(s.ServiceProvider.monitorService, s.logger)
	monitorApi.RegisterPublic(r)
	auth.NewHandler(s.ServiceProvider.localAuth).RegisterRoutes(r)

	protected := r.PathPrefix("/api").Subrouter()
	protected.Use(handlers.New(s.ServiceProvider.jwt, domain.PermissionMonitor).JWTMiddleware)
	workers.NewHandler(s.ServiceProvider.monitorService, s.logger).Register(protected)
	monitorApi.Register(protected)

	s.router = r
	return nil
}

// Handler returns the routed handler; Init must have been called
func (s *Server) Handler() http.Handler {
	return s.router
}

// Listen binds the address so Addr is known before Serve
func (s *Server) Listen() error {
	l, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	s.listener = l
	return nil
}

func (s *Server) Addr() string {
	if s.listener == nil {
		return s.address
	}
	return s.listener.Addr().String()
}

// Serve answers requests until ctx is done, then shuts down gracefully
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Admin API listening", "addr", s.Addr())
		errCh <- srv.Serve(s.listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down http server...")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

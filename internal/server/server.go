// Package server wires configuration, storage, external collaborators,
// services and handlers into one chi router, and runs it with graceful
// shutdown.
//
// Dependency flow:
//
//	config.Config
//	  → sqlite.DB (accounts, catalog, purchases)
//	  → redisstore.Store or sqlite.DB (pending registrations)
//	  → mail.SMTPMailer or mail.LogMailer
//	  → payment.PayPal or payment.Unconfigured
//	  → services → handlers → routes
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/sakif/coursemarket/internal/auth"
	"github.com/sakif/coursemarket/internal/config"
	"github.com/sakif/coursemarket/internal/handler"
	"github.com/sakif/coursemarket/internal/mail"
	"github.com/sakif/coursemarket/internal/middleware"
	"github.com/sakif/coursemarket/internal/payment"
	"github.com/sakif/coursemarket/internal/repository"
	"github.com/sakif/coursemarket/internal/repository/redisstore"
	sqliteRepo "github.com/sakif/coursemarket/internal/repository/sqlite"
	"github.com/sakif/coursemarket/internal/service"
)

// Deps overrides collaborators that New would otherwise build from the
// config. Nil fields are built as usual.
type Deps struct {
	Mailer   mail.Mailer
	Payments payment.Provider
}

// Server owns the HTTP router and the connections it opened. Both are
// closed when Start returns or Close is called.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
	redis  *redis.Client // nil when pending registrations live in SQLite
}

func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	return NewWithDeps(cfg, logger, Deps{})
}

func NewWithDeps(cfg config.Config, logger *slog.Logger, deps Deps) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	var pending repository.PendingRegistrationStore = db
	if cfg.RedisAddr != "" {
		client, err := redisstore.Connect(context.Background(), cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		s.redis = client
		pending = redisstore.New(client)
	}

	if deps.Mailer == nil {
		deps.Mailer = newMailer(cfg, logger)
	}
	if deps.Payments == nil {
		deps.Payments = newPaymentProvider(cfg, logger)
	}

	if err := s.setupRoutes(pending, deps); err != nil {
		s.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	logger.Info("server configured",
		slog.String("env", cfg.Env),
		slog.Bool("redis", s.redis != nil),
		slog.Bool("smtp", cfg.MailEnabled()),
		slog.Bool("payments", cfg.PaymentsEnabled()),
	)
	return s, nil
}

func newMailer(cfg config.Config, logger *slog.Logger) mail.Mailer {
	if !cfg.MailEnabled() {
		logger.Warn("SMTP_HOST not set, emails will only be logged")
		return mail.NewLogMailer(logger)
	}
	return mail.NewSMTPMailer(mail.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
	})
}

func newPaymentProvider(cfg config.Config, logger *slog.Logger) payment.Provider {
	if !cfg.PaymentsEnabled() {
		logger.Warn("PayPal credentials not set, purchases will fail with 503")
		return payment.Unconfigured{}
	}
	base := payment.LiveBaseURL
	if cfg.PayPalSandbox {
		base = payment.SandboxBaseURL
	}
	return payment.NewPayPal(payment.PayPalConfig{
		ClientID: cfg.PayPalClientID,
		Secret:   cfg.PayPalSecret,
		BaseURL:  base,
	})
}

// setupRoutes builds the services and mounts every route.
//
//	POST   /api/register                          public
//	POST   /api/verify                            public
//	POST   /api/login                             public
//	POST   /api/logout                            public
//	GET    /api/payments/success                  public, provider redirect
//	GET    /api/payments/cancel                   public, provider redirect
//	GET    /api/courses                           student, teacher (own)
//	POST   /api/courses                           teacher
//	GET    /api/teacher/courses                   teacher
//	GET    /api/courses/{courseID}                student, owner
//	PUT    /api/courses/{courseID}                owner
//	DELETE /api/courses/{courseID}                owner
//	GET    /api/courses/{courseID}/contents       student, owner
//	POST   /api/courses/{courseID}/contents       owner
//	GET    /api/courses/{courseID}/contents/{id}  student, owner
//	PUT    /api/courses/{courseID}/contents/{id}  owner
//	DELETE /api/courses/{courseID}/contents/{id}  owner
//	POST   /api/courses/{courseID}/purchase       student
//	GET    /api/student/courses                   student
//	GET    /healthz
func (s *Server) setupRoutes(pending repository.PendingRegistrationStore, deps Deps) error {
	tokens, err := auth.NewTokenService(s.config.JWTSecret, s.config.JWTTTL)
	if err != nil {
		return err
	}
	passwords := auth.NewPasswordService()

	registration := service.NewRegistrationService(s.db, pending, passwords, deps.Mailer,
		s.config.MailFrom, s.config.RegistrationTTL, s.logger)
	authService := service.NewAuthService(s.db, tokens, passwords, s.logger)
	catalog := service.NewCatalogService(s.db, s.db, s.db, deps.Mailer, s.config.MailFrom, s.logger)
	purchases := service.NewPurchaseService(s.db, s.db, deps.Payments, service.PurchaseConfig{
		Currency:  s.config.Currency,
		ReturnURL: s.config.ReturnURL,
		CancelURL: s.config.CancelURL,
	}, s.logger)
	entitlements := service.NewEntitlementService(s.db, s.db, s.db, s.logger)

	secure := s.config.Env == "production"
	authHandler := handler.NewAuthHandler(registration, authService,
		s.config.JWTTTL, s.config.RegistrationTTL, secure, s.logger)
	courseHandler := handler.NewCourseHandler(catalog, s.logger)
	purchaseHandler := handler.NewPurchaseHandler(purchases, entitlements, s.logger)

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/verify", authHandler.HandleVerify)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/logout", authHandler.HandleLogout)

		r.Get("/payments/success", purchaseHandler.HandleSuccess)
		r.Get("/payments/cancel", purchaseHandler.HandleCancel)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Use(handler.RequireActor(authService, s.logger))

			r.Get("/teacher/courses", courseHandler.HandleListOwned)
			r.Get("/student/courses", purchaseHandler.HandleStudentCourses)

			r.Route("/courses", func(r chi.Router) {
				r.Get("/", courseHandler.HandleList)
				r.Post("/", courseHandler.HandleCreate)

				r.Route("/{courseID}", func(r chi.Router) {
					r.Get("/", courseHandler.HandleGet)
					r.Put("/", courseHandler.HandleUpdate)
					r.Delete("/", courseHandler.HandleDelete)
					r.Post("/purchase", purchaseHandler.HandleInitiate)

					r.Get("/contents", courseHandler.HandleListContents)
					r.Post("/contents", courseHandler.HandleCreateContent)
					r.Get("/contents/{contentID}", courseHandler.HandleGetContent)
					r.Put("/contents/{contentID}", courseHandler.HandleUpdateContent)
					r.Delete("/contents/{contentID}", courseHandler.HandleDeleteContent)
				})
			})
		})
	})

	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	if err := s.db.Ping(ctx); err != nil {
		s.logger.Error("health: database unreachable", slog.String("error", err.Error()))
		status, code = "degraded", http.StatusServiceUnavailable
	}
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			s.logger.Error("health: redis unreachable", slog.String("error", err.Error()))
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"status":%q}`, status)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database and Redis connections.
func (s *Server) Close() error {
	var errs []error
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	errs = append(errs, s.db.Close())
	return errors.Join(errs...)
}

// Start serves until SIGINT or SIGTERM, then drains in-flight requests for
// up to 30 seconds and closes the connections.
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

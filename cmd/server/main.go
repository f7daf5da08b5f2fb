package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tenant-auth-engine/internal/attempt"
	attemptrepo "tenant-auth-engine/internal/attempt/repository"
	"tenant-auth-engine/internal/auth"
	"tenant-auth-engine/internal/config"
	"tenant-auth-engine/internal/db"
	"tenant-auth-engine/internal/devotp"
	"tenant-auth-engine/internal/federation"
	"tenant-auth-engine/internal/mail"
	"tenant-auth-engine/internal/otp"
	otprepo "tenant-auth-engine/internal/otp/repository"
	"tenant-auth-engine/internal/policy/engine"
	principalrepo "tenant-auth-engine/internal/principal/repository"
	"tenant-auth-engine/internal/security"
	"tenant-auth-engine/internal/server"
	sessionrepo "tenant-auth-engine/internal/session/repository"
	otelsetup "tenant-auth-engine/internal/telemetry/otel"
	"tenant-auth-engine/internal/tenant"
	tenantrepo "tenant-auth-engine/internal/tenant/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := otelsetup.NewProviders(ctx, cfg.OTLPEndpoint, "tenant-auth-engine", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.Printf("telemetry shutdown: %v", err)
		}
	}()

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	privateKey, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		log.Fatalf("jwt private key: %v", err)
	}
	publicKey, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		log.Fatalf("jwt public key: %v", err)
	}
	tokens := security.NewTokenProvider(privateKey, publicKey, cfg.JWTIssuer, cfg.JWTAudience, cfg.TokenLifetime())
	hasher := security.NewHasher(cfg.BcryptCost)

	principals := principalrepo.NewPostgresRepository(pool)
	sessions := sessionrepo.NewPostgresRepository(pool)
	challenges := otprepo.NewPostgresRepository(pool)
	attempts := attempt.NewTracker(attemptrepo.NewPostgresLedger(pool), cfg.LockoutWindowDuration(), cfg.LockoutThreshold)

	resolver := tenant.NewResolver(tenantrepo.NewPostgresRepository(pool), cfg.TenantDatabaseURL)
	defer resolver.Close()

	engineOTP := otp.NewEngine(challenges, auth.PrincipalDirectory{Principals: principals}, cfg.OTPLifetime())

	var verifier federation.Verifier
	if cfg.GoogleClientID != "" {
		v, err := federation.NewGoogleVerifier(ctx, cfg.GoogleClientID)
		if err != nil {
			log.Fatalf("federation: %v", err)
		}
		verifier = v
	} else {
		log.Println("GOOGLE_CLIENT_ID not set; federated login disabled")
	}

	var sink auth.OTPSink
	var devStore devotp.Store
	if cfg.OTPReturnToClient {
		store := devotp.NewMemoryStore()
		devStore = store
		sink = auth.DevSink{Store: store}
		log.Println("dev OTP mode enabled; passcodes served from GET /api/dev/otp")
	} else {
		sender, err := mail.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
		if err != nil {
			log.Fatalf("mail: %v", err)
		}
		sink = auth.MailSink{Sender: sender}
	}

	emitter := otelsetup.NewEventEmitter(providers.LoggerProvider)

	svc := auth.NewService(
		principals,
		sessions,
		attempts,
		auth.EngineChallenger{Engine: engineOTP},
		resolver,
		verifier,
		sink,
		hasher,
		tokens,
		emitter,
		cfg.TokenLifetime(),
	)

	evaluator, err := engine.NewOPAEvaluator(ctx)
	if err != nil {
		log.Fatalf("policy: %v", err)
	}

	handlers := &server.Handlers{
		Auth:     svc,
		Tenants:  resolver,
		DevStore: devStore,
		DB:       pool,
		Policy:   evaluator,
	}
	srv := server.NewHTTPServer(cfg.HTTPAddr, server.NewRouter(handlers, evaluator))

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	<-ctx.Done()

	log.Println("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	log.Println("HTTP server stopped")
}

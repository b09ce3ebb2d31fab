// Package server wires the identity service to its account store,
// notification backend and network listeners, and runs them until a
// shutdown signal arrives.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/identityd/internal/logging"
	"github.com/dmitrijs2005/identityd/internal/server/auth"
	"github.com/dmitrijs2005/identityd/internal/server/challenge"
	"github.com/dmitrijs2005/identityd/internal/server/config"
	"github.com/dmitrijs2005/identityd/internal/server/identity"
	"github.com/dmitrijs2005/identityd/internal/server/notify"
	"github.com/dmitrijs2005/identityd/internal/server/repositories/repomanager"

	gs "github.com/dmitrijs2005/identityd/internal/server/grpc"
	hs "github.com/dmitrijs2005/identityd/internal/server/http"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	repos       repomanager.RepositoryManager
	tokens      *auth.TokenIssuer
	service     *identity.Service
	closeSender func() error
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.New(os.Stdout, c.LogLevel, c.LogFormat)

	rm, err := repomanager.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	if err := rm.RunMigrations(ctx); err != nil {
		_ = rm.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	hasher, err := auth.NewHasher(c.PasswordAlgorithm, c.BcryptCost)
	if err != nil {
		_ = rm.Close()
		return nil, err
	}

	sender, closeSender, err := notify.NewSender(ctx, c, logger)
	if err != nil {
		_ = rm.Close()
		return nil, fmt.Errorf("notifier init error: %w", err)
	}

	mailer := notify.NewMailer(notify.MailerConfig{
		From:            c.MailFrom,
		BaseURL:         c.PublicBaseURL,
		VerificationTTL: c.VerificationTTL,
	}, sender)

	tokens := auth.NewTokenIssuer(auth.TokenConfig{
		SessionSecret:      []byte(c.SessionSecret),
		VerificationSecret: []byte(c.VerificationSecret),
		SessionTTL:         c.SessionTTL,
		VerificationTTL:    c.VerificationTTL,
	})

	svc := identity.NewService(identity.Deps{
		Accounts: rm.Accounts(),
		Hasher:   hasher,
		Tokens:   tokens,
		Recovery: challenge.NewRecovery(c.OTPDigits, c.OTPTTL, nil),
		Notifier: mailer,
		Logger:   logger,
	}, identity.Options{
		OperationTimeout:     c.OperationTimeout,
		EmailCaseInsensitive: c.EmailCaseInsensitive,
	})

	return &App{
		config:      c,
		logger:      logger,
		repos:       rm,
		tokens:      tokens,
		service:     svc,
		closeSender: closeSender,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := hs.NewServer(app.config.HTTPAddr, app.logger, app.service, app.tokens)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewHealthServer(app.config.GRPCAddr, app.logger, app.repos, app.config.HealthProbeInterval)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves HTTP and gRPC until ctx is cancelled, a shutdown signal
// arrives or either listener fails, then releases the store and notifier.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.close(context.Background())
	app.logger.Info(ctx, "App stopped")
}

func (app *App) close(ctx context.Context) {
	if err := app.closeSender(); err != nil {
		app.logger.Error(ctx, "notifier close failed", "error", err)
	}
	if err := app.repos.Close(); err != nil {
		app.logger.Error(ctx, "store close failed", "error", err)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/research-portal/accessrequests"
	"github.com/jrsteele09/research-portal/accounts"
	"github.com/jrsteele09/research-portal/admin"
	"github.com/jrsteele09/research-portal/audit"
	"github.com/jrsteele09/research-portal/auth"
	"github.com/jrsteele09/research-portal/identity"
	"github.com/jrsteele09/research-portal/internal/config"
	"github.com/jrsteele09/research-portal/internal/logging"
	"github.com/jrsteele09/research-portal/passwords"
	"github.com/jrsteele09/research-portal/server"
	"github.com/jrsteele09/research-portal/sessions"
	"github.com/jrsteele09/research-portal/store/sqlstore"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const (
	googleIssuer       = "https://accounts.google.com"
	sessionSweepPeriod = 15 * time.Minute
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running server: %s\n", err)
		os.Exit(1)
	}
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.New()
	if err != nil {
		return err
	}
	logger := logging.Setup(c.GetEnv(), c.GetLogLevel())
	displayAppname(c.GetAppName())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := sqlstore.Open(ctx, c.GetDatabaseDriver(), c.GetDatabaseURL())
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.Migrate(ctx); err != nil {
		return err
	}

	handler, err := newServer(ctx, c, db, logger)
	if err != nil {
		return err
	}
	go handler.PurgeExpiredSessions(ctx, sessionSweepPeriod)

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	errs := make(chan error, 1)
	go func() { errs <- listenAndServe(httpServer, logger) }()

	select {
	case err := <-errs:
		return err
	case <-waitForStopSignal():
	}
	cancel()
	returnError = shutdown(httpServer)
	logger.Info().Msg("Server stopped")
	return returnError
}

// newServer wires the domain services onto the SQL store
func newServer(ctx context.Context, c config.Config, db *sqlstore.DB, logger zerolog.Logger) (*server.Server, error) {
	recorder := audit.NewRecorder(db.Audit(), audit.WithRecorderLogger(logger))
	hasher := passwords.New(c.GetBcryptCost())
	policy := accounts.Policy{OrgDomain: c.GetOrgDomain(), AdminEmails: c.GetAdminEmails()}

	managerOptions := []auth.SessionManagerOption{
		auth.WithLogger(logger),
		auth.WithSessionPolicy(sessions.Policy{
			Local:         c.GetLocalSessionTTL(),
			LocalRemember: c.GetRememberSessionTTL(),
			External:      c.GetExternalSessionTTL(),
		}),
	}
	var serverOptions []server.Option

	if c.GetGoogleClientID() != "" {
		provider, err := oidc.NewProvider(ctx, googleIssuer)
		if err != nil {
			return nil, fmt.Errorf("[newServer] Google discovery: %w", err)
		}
		verifier := identity.NewOIDCVerifier(provider, identity.Config{
			ClientID: c.GetGoogleClientID(),
			Issuers:  c.GetGoogleIssuers(),
		})
		managerOptions = append(managerOptions, auth.WithIdentityVerifier(verifier))

		if c.GetGoogleClientSecret() != "" {
			serverOptions = append(serverOptions, server.WithGoogleOAuth(&oauth2.Config{
				ClientID:     c.GetGoogleClientID(),
				ClientSecret: c.GetGoogleClientSecret(),
				Endpoint:     provider.Endpoint(),
				RedirectURL:  c.GetBaseURL() + server.RouteGoogleCallback,
				Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
			}))
		}
	}

	manager, err := auth.NewSessionManager(
		auth.Repos{Accounts: db.Accounts(), Sessions: db.Sessions()},
		hasher, recorder, policy, managerOptions...,
	)
	if err != nil {
		return nil, err
	}
	adminService, err := admin.NewService(
		admin.Repos{Accounts: db.Accounts(), Sessions: db.Sessions()},
		recorder, hasher, admin.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	requestService, err := accessrequests.NewService(db.AccessRequests(), db.Accounts(), recorder, policy,
		accessrequests.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	serverOptions = append(serverOptions, server.WithLogger(logger), server.WithHealthCheck(db.Ping))
	return server.New(c, server.Services{
		Sessions:       manager,
		Admin:          adminService,
		AccessRequests: requestService,
		Recorder:       recorder,
	}, serverOptions...)
}

func listenAndServe(server *http.Server, logger zerolog.Logger) error {
	logger.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}

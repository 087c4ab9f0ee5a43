// Command portaladmin performs operator tasks against the portal database: schema migration,
// bootstrap administrators, session sweeps and access request decisions.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/jrsteele09/research-portal/accessrequests"
	"github.com/jrsteele09/research-portal/accounts"
	"github.com/jrsteele09/research-portal/admin"
	"github.com/jrsteele09/research-portal/audit"
	"github.com/jrsteele09/research-portal/auth"
	"github.com/jrsteele09/research-portal/internal/config"
	"github.com/jrsteele09/research-portal/internal/logging"
	"github.com/jrsteele09/research-portal/passwords"
	"github.com/jrsteele09/research-portal/store/sqlstore"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

type command struct {
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"migrate":         {"apply pending schema migrations", runMigrate},
	"create-admin":    {"create an administrator (password read from stdin)", runCreateAdmin},
	"purge-sessions":  {"delete every expired session", runPurgeSessions},
	"approve-request": {"approve an access request and provision its account", runApproveRequest},
	"deny-request":    {"deny an access request", runDenyRequest},
	"reprovision":     {"retry account provisioning for an approved request", runReprovision},
}

// app holds the store and services a command runs against
type app struct {
	db       *sqlstore.DB
	logger   zerolog.Logger
	stdin    io.Reader
	stdout   io.Writer
	admin    *admin.Service
	requests *accessrequests.Service
	sessions *auth.SessionManager
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "portaladmin: %s\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage(stdout)
		return nil
	}
	cmd, ok := commands[args[0]]
	if !ok {
		printUsage(stdout)
		return fmt.Errorf("unknown command %q", args[0])
	}

	a, err := openApp(ctx, stdin, stdout)
	if err != nil {
		return err
	}
	defer a.db.Close()

	return cmd.run(ctx, a, args[1:])
}

func openApp(ctx context.Context, stdin io.Reader, stdout io.Writer) (*app, error) {
	c, err := config.New()
	if err != nil {
		return nil, err
	}
	logger := logging.Setup(c.GetEnv(), c.GetLogLevel())

	db, err := sqlstore.Open(ctx, c.GetDatabaseDriver(), c.GetDatabaseURL())
	if err != nil {
		return nil, err
	}

	recorder := audit.NewRecorder(db.Audit(), audit.WithRecorderLogger(logger))
	hasher := passwords.New(c.GetBcryptCost())
	policy := accounts.Policy{OrgDomain: c.GetOrgDomain(), AdminEmails: c.GetAdminEmails()}

	a := &app{db: db, logger: logger, stdin: stdin, stdout: stdout}
	if a.admin, err = admin.NewService(admin.Repos{Accounts: db.Accounts(), Sessions: db.Sessions()}, recorder, hasher,
		admin.WithLogger(logger)); err != nil {
		_ = db.Close()
		return nil, err
	}
	if a.requests, err = accessrequests.NewService(db.AccessRequests(), db.Accounts(), recorder, policy,
		accessrequests.WithLogger(logger)); err != nil {
		_ = db.Close()
		return nil, err
	}
	if a.sessions, err = auth.NewSessionManager(auth.Repos{Accounts: db.Accounts(), Sessions: db.Sessions()}, hasher, recorder, policy,
		auth.WithLogger(logger)); err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: portaladmin <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-16s %s\n", name, commands[name].summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The database is taken from DATABASE_DRIVER and DATABASE_URL (or CONFIG_FILE).")
}

func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SortFlags = false
	return fs
}

func runMigrate(ctx context.Context, a *app, args []string) error {
	if err := newFlagSet("migrate").Parse(args); err != nil {
		return err
	}
	applied, err := a.db.Migrate(ctx)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		fmt.Fprintln(a.stdout, "schema is up to date")
		return nil
	}
	for _, name := range applied {
		fmt.Fprintf(a.stdout, "applied %s\n", name)
	}
	return nil
}

func runCreateAdmin(ctx context.Context, a *app, args []string) error {
	var req admin.AdminRequest
	fs := newFlagSet("create-admin")
	fs.StringVar(&req.Email, "email", "", "administrator e-mail address (required)")
	fs.StringVar(&req.Username, "username", "", "login name (required)")
	fs.StringVar(&req.DisplayName, "display-name", "", "name shown in the portal")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if req.Email == "" || req.Username == "" {
		return errors.New("--email and --username are required")
	}

	password, err := readPassword(a.stdin)
	if err != nil {
		return err
	}
	req.Password = password

	account, err := a.admin.CreateAdministrator(ctx, req)
	if err != nil {
		return fmt.Errorf("create-admin: %w", err)
	}
	fmt.Fprintf(a.stdout, "created administrator %s (%s)\n", account.Email, account.ID)
	return nil
}

func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("password must be supplied on stdin")
	}
	return password, nil
}

func runPurgeSessions(ctx context.Context, a *app, args []string) error {
	if err := newFlagSet("purge-sessions").Parse(args); err != nil {
		return err
	}
	n, err := a.sessions.PurgeExpiredSessions(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "purged %d expired sessions\n", n)
	return nil
}

// decisionFlags are shared by the commands that act on an access request
type decisionFlags struct {
	id    string
	actor string
	note  string
}

func parseDecision(name string, args []string, withNote bool) (decisionFlags, error) {
	var d decisionFlags
	fs := newFlagSet(name)
	fs.StringVar(&d.id, "id", "", "access request ID (required)")
	fs.StringVar(&d.actor, "as", "", "e-mail of the administrator making the decision (required)")
	if withNote {
		fs.StringVar(&d.note, "note", "", "note stored with the decision")
	}
	if err := fs.Parse(args); err != nil {
		return d, err
	}
	if d.id == "" || d.actor == "" {
		return d, errors.New("--id and --as are required")
	}
	return d, nil
}

// actor resolves the administrator on whose behalf the CLI acts, so the audit log names a person
func (a *app) actor(ctx context.Context, email string) (*accounts.PublicAccount, error) {
	account, err := a.db.Accounts().GetByEmail(ctx, email)
	if errors.Is(err, accounts.ErrNotFound) {
		return nil, fmt.Errorf("no account for %s", email)
	}
	if err != nil {
		return nil, err
	}
	if !account.IsAdministrator() || !account.CanHoldSession() {
		return nil, fmt.Errorf("%s is not an active administrator", email)
	}
	return account.Public(), nil
}

func runApproveRequest(ctx context.Context, a *app, args []string) error {
	d, err := parseDecision("approve-request", args, true)
	if err != nil {
		return err
	}
	actor, err := a.actor(ctx, d.actor)
	if err != nil {
		return err
	}
	request, err := a.requests.Approve(ctx, actor, d.id, d.note)
	if err != nil && request == nil {
		return fmt.Errorf("approve-request: %w", err)
	}
	if err != nil {
		fmt.Fprintf(a.stdout, "approved %s but provisioning failed; run reprovision --id %s --as %s\n", request.ID, request.ID, d.actor)
		return err
	}
	fmt.Fprintf(a.stdout, "approved %s for %s\n", request.ID, request.Email)
	return nil
}

func runDenyRequest(ctx context.Context, a *app, args []string) error {
	d, err := parseDecision("deny-request", args, true)
	if err != nil {
		return err
	}
	actor, err := a.actor(ctx, d.actor)
	if err != nil {
		return err
	}
	request, err := a.requests.Deny(ctx, actor, d.id, d.note)
	if err != nil {
		return fmt.Errorf("deny-request: %w", err)
	}
	fmt.Fprintf(a.stdout, "denied %s for %s\n", request.ID, request.Email)
	return nil
}

func runReprovision(ctx context.Context, a *app, args []string) error {
	d, err := parseDecision("reprovision", args, false)
	if err != nil {
		return err
	}
	actor, err := a.actor(ctx, d.actor)
	if err != nil {
		return err
	}
	if err := a.requests.Reprovision(ctx, actor, d.id); err != nil {
		return fmt.Errorf("reprovision: %w", err)
	}
	fmt.Fprintf(a.stdout, "provisioned account for %s\n", d.id)
	return nil
}

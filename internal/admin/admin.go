// Package admin implements the operator commands of the useradmin tool.
// They run directly against the database through the account services, so
// every change lands in the audit log the same way HTTP traffic does.
package admin

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/windbreaker/internal/server/services"
)

// ClientAddr is recorded as the client address of admin actions.
const ClientAddr = "useradmin"

const defaultAuditLimit = 50

var (
	ErrUsage            = errors.New("usage error")
	ErrPasswordMismatch = errors.New("passwords do not match")
)

var commands = []string{"register", "reset-password", "audit", "help"}

type Admin struct {
	users *services.UserService
	audit *services.AuditLog
	in    *bufio.Reader
	out   io.Writer
	fd    int
}

// New builds an Admin reading answers from in and password input from the
// terminal behind fd.
func New(us *services.UserService, al *services.AuditLog, in io.Reader, out io.Writer, fd int) *Admin {
	return &Admin{users: us, audit: al, in: bufio.NewReader(in), out: out, fd: fd}
}

// SplitCommand separates global flags from the subcommand and its
// arguments. The subcommand is the first argument naming a known command.
func SplitCommand(args []string) (global []string, cmd string, rest []string) {
	for i, a := range args {
		if slices.Contains(commands, a) {
			return args[:i], a, args[i+1:]
		}
	}
	return args, "", nil
}

// Run executes a single command.
func (a *Admin) Run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "register":
		return a.register(ctx, args)
	case "reset-password":
		return a.resetPassword(ctx, args)
	case "audit":
		return a.listAudit(ctx, args)
	case "help", "":
		a.usage()
		return nil
	default:
		a.usage()
		return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
	}
}

func (a *Admin) usage() {
	fmt.Fprint(a.out, `Usage: useradmin [config flags] <command> [args]

Commands:
  register [-name NAME] <email>   create an account
  reset-password <email>          set a new password
  audit [-n LIMIT] <email>        show recent audit events
`)
}

func (a *Admin) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	fs.SetOutput(a.out)
	name := fs.String("name", "", "display name")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: register takes exactly one email", ErrUsage)
	}
	email := fs.Arg(0)

	if *name == "" {
		v, err := GetSimpleText(a.in, "Enter display name", a.out)
		if err != nil {
			return err
		}
		*name = v
	}

	password, err := a.newPassword()
	if err != nil {
		return err
	}

	u, err := a.users.Register(ctx, *name, email, password, ClientAddr)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Registered %s (id=%d)\n", u.Email, u.ID)
	return nil
}

func (a *Admin) resetPassword(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: reset-password takes exactly one email", ErrUsage)
	}

	password, err := a.newPassword()
	if err != nil {
		return err
	}

	if err := a.users.ResetPassword(ctx, args[0], password, ClientAddr); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "Password updated")
	return nil
}

func (a *Admin) listAudit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("audit", flag.ContinueOnError)
	fs.SetOutput(a.out)
	limit := fs.Int("n", defaultAuditLimit, "max events to show")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: audit takes exactly one email", ErrUsage)
	}

	events, err := a.audit.ListByEmail(ctx, fs.Arg(0), *limit)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Fprintln(a.out, "No events")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tEVENT\tCLIENT")
	for _, ev := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", ev.CreatedAt.UTC().Format(time.RFC3339), ev.Event, ev.ClientAddr)
	}
	return tw.Flush()
}

// newPassword asks for a password twice.
func (a *Admin) newPassword() (string, error) {
	pw, err := GetPassword(a.in, a.fd, "Enter password", a.out)
	if err != nil {
		return "", err
	}
	confirm, err := GetPassword(a.in, a.fd, "Repeat password", a.out)
	if err != nil {
		return "", err
	}
	if pw != confirm {
		return "", ErrPasswordMismatch
	}
	return pw, nil
}

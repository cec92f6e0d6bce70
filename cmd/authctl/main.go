// authctl performs operator tasks against the auth database directly:
// applying migrations, seeding the first admin, resetting passwords,
// minting issuer invitations and deleting accounts.
//
// It reads the same configuration as the auth service (AUTH_CONFIG_FILE
// and the AUTH_* environment), so it must run with the service's pepper
// file for password operations to produce usable hashes.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/certvault/certauth/internal/auth/app"
	"github.com/certvault/certauth/internal/auth/domain"
	"github.com/certvault/certauth/internal/auth/store"
	"github.com/certvault/certauth/pkg/cryptox"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type command struct {
	summary string
	flags   func(fs *pflag.FlagSet) func(ctx context.Context, env *environment) error
}

// environment is what every subcommand runs against.
type environment struct {
	out      io.Writer
	store    store.Store
	services *app.Services
}

var commands = map[string]command{
	"migrate":        {"apply database migrations", migrateCmd},
	"seed-admin":     {"create the admin account if it does not exist", seedAdminCmd},
	"reset-password": {"set a new password and end the user's session", resetPasswordCmd},
	"invite":         {"create an issuer invitation link", inviteCmd},
	"users":          {"list accounts", usersCmd},
	"delete-user":    {"delete an account by email", deleteUserCmd},
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printUsage(out)
		return nil
	}

	cmd, ok := commands[args[0]]
	if !ok {
		printUsage(out)
		return fmt.Errorf("unknown command %q", args[0])
	}

	fs := pflag.NewFlagSet("authctl "+args[0], pflag.ContinueOnError)
	fs.SetOutput(out)
	action := cmd.flags(fs)
	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	cryptox.SetPepperPath(cfg.PepperFile)

	st, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	// authctl never issues tokens, so the services run without a codec.
	env := &environment{
		out:      out,
		store:    st,
		services: app.NewServices(cfg, st, nil),
	}
	return action(ctx, env)
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, "usage: authctl <command> [flags]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "commands:")

	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	slices.Sort(names)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, name := range names {
		fmt.Fprintf(w, "  %s\t%s\n", name, commands[name].summary)
	}
	_ = w.Flush()
}

func required(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("--%s is required", name)
	}
	return nil
}

func migrateCmd(_ *pflag.FlagSet) func(context.Context, *environment) error {
	return func(_ context.Context, env *environment) error {
		// OpenStore has already applied them.
		fmt.Fprintln(env.out, "migrations applied")
		return nil
	}
}

func seedAdminCmd(fs *pflag.FlagSet) func(context.Context, *environment) error {
	var email, password string
	fs.StringVar(&email, "email", "", "admin email")
	fs.StringVar(&password, "password", "", "admin password")

	return func(ctx context.Context, env *environment) error {
		if err := errors.Join(required("email", email), required("password", password)); err != nil {
			return err
		}

		id, created, err := env.services.Bootstrap.SeedAdmin(ctx, domain.BootstrapData{
			AdminEmail:    email,
			AdminPassword: password,
		})
		if err != nil {
			return err
		}
		if created {
			fmt.Fprintf(env.out, "admin %s created (%s)\n", email, id)
		} else {
			fmt.Fprintf(env.out, "admin %s already exists (%s)\n", email, id)
		}
		return nil
	}
}

func resetPasswordCmd(fs *pflag.FlagSet) func(context.Context, *environment) error {
	var email, password string
	fs.StringVar(&email, "email", "", "account email")
	fs.StringVar(&password, "password", "", "new password")

	return func(ctx context.Context, env *environment) error {
		if err := errors.Join(required("email", email), required("password", password)); err != nil {
			return err
		}
		if err := env.services.Auth.ResetPassword(ctx, email, password); err != nil {
			return err
		}
		fmt.Fprintf(env.out, "password for %s reset\n", email)
		return nil
	}
}

func inviteCmd(fs *pflag.FlagSet) func(context.Context, *environment) error {
	var adminEmail, email string
	fs.StringVar(&adminEmail, "admin-email", "", "email of the admin creating the invitation")
	fs.StringVar(&email, "email", "", "issuer email to invite")

	return func(ctx context.Context, env *environment) error {
		if err := errors.Join(required("admin-email", adminEmail), required("email", email)); err != nil {
			return err
		}

		admin, err := env.store.Users().GetUserByEmail(ctx, adminEmail)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("no account for %s", adminEmail)
			}
			return err
		}

		inv, err := env.services.Invitations.CreateInvitation(ctx, email, admin.ID)
		if err != nil {
			return err
		}
		fmt.Fprintln(env.out, inv.Link)
		fmt.Fprintf(env.out, "expires %s\n", inv.ExpiresAt.Format(time.RFC3339))
		return nil
	}
}

func usersCmd(_ *pflag.FlagSet) func(context.Context, *environment) error {
	return func(ctx context.Context, env *environment) error {
		users, err := env.services.Users.ListUsers(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(env.out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tEMAIL\tROLE\tCREATED")
		for _, u := range users {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.ID, u.Email, u.Role, u.CreatedAt.Format(time.RFC3339))
		}
		return w.Flush()
	}
}

func deleteUserCmd(fs *pflag.FlagSet) func(context.Context, *environment) error {
	var email string
	fs.StringVar(&email, "email", "", "account email")

	return func(ctx context.Context, env *environment) error {
		if err := required("email", email); err != nil {
			return err
		}
		if err := env.services.Users.DeleteUserByEmail(ctx, email); err != nil {
			return err
		}
		fmt.Fprintf(env.out, "deleted %s\n", email)
		return nil
	}
}

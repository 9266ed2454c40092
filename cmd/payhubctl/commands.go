// Copyright (c) 2026 PayHub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/taibuivan/payhub/internal/platform/migration"
	"github.com/taibuivan/payhub/internal/users/auth"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// isTerminal is a test seam for term.IsTerminal.
var isTerminal = term.IsTerminal

// # create-admin

func createAdminCmd(env *environment) *cli.Command {
	var username, fullName, email string
	var passwordStdin bool

	return &cli.Command{
		Name:  "create-admin",
		Usage: "Create an admin account unless the username already exists",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "username",
				Aliases:     []string{"u"},
				Value:       "admin",
				Destination: &username,
			},
			&cli.StringFlag{
				Name:        "full-name",
				Value:       "Administrador",
				Destination: &fullName,
			},
			&cli.StringFlag{
				Name:        "email",
				Value:       "admin@payhub.com",
				Destination: &email,
			},
			&cli.BoolFlag{
				Name:        "password-stdin",
				Usage:       "Read the password from the first line of stdin",
				Destination: &passwordStdin,
			},
		},
		Action: func(ctx *cli.Context) error {
			password, err := env.password(ctx.App.ErrWriter, passwordStdin)
			if err != nil {
				return err
			}
			if err := checkPassword(password); err != nil {
				return err
			}

			service, conn, err := env.authService(ctx.Context)
			if err != nil {
				return err
			}
			defer conn.Close()

			principal, created, err := service.EnsureAdmin(ctx.Context, auth.AdminInput{
				Username: username,
				Password: password,
				FullName: optional(fullName),
				Email:    optional(email),
			})
			if err != nil {
				return err
			}

			if !created {
				fmt.Fprintf(ctx.App.Writer, "user %q already exists (id %d, admin %t)\n",
					principal.Username, principal.ID, principal.IsAdmin)
				return nil
			}
			fmt.Fprintf(ctx.App.Writer, "admin %q created (id %d)\n", principal.Username, principal.ID)
			return nil
		},
	}
}

// # set-admin

func setAdminCmd(env *environment) *cli.Command {
	var username string
	var revoke bool

	return &cli.Command{
		Name:  "set-admin",
		Usage: "Grant (or with --revoke, remove) the admin flag of an account",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "username",
				Aliases:     []string{"u"},
				Required:    true,
				Destination: &username,
			},
			&cli.BoolFlag{
				Name:        "revoke",
				Destination: &revoke,
			},
		},
		Action: func(ctx *cli.Context) error {
			service, conn, err := env.authService(ctx.Context)
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := service.SetAdmin(ctx.Context, username, !revoke); err != nil {
				return err
			}
			fmt.Fprintf(ctx.App.Writer, "user %q admin=%t\n", username, !revoke)
			return nil
		},
	}
}

// # prune-sessions

func pruneSessionsCmd(env *environment) *cli.Command {
	return &cli.Command{
		Name:  "prune-sessions",
		Usage: "Delete expired sessions once",
		Action: func(ctx *cli.Context) error {
			service, conn, err := env.authService(ctx.Context)
			if err != nil {
				return err
			}
			defer conn.Close()

			removed, err := service.PruneSessions(ctx.Context)
			if err != nil {
				return err
			}
			fmt.Fprintf(ctx.App.Writer, "removed %d expired sessions\n", removed)
			return nil
		},
	}
}

// # migrate

func migrateCmd(env *environment) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply or inspect schema migrations",
		Subcommands: []*cli.Command{
			{
				Name:  "up",
				Usage: "Apply all pending migrations",
				Action: func(ctx *cli.Context) error {
					if err := migration.RunUp(env.cfg.DatabaseURL, env.cfg.MigrationPath, env.log); err != nil {
						return err
					}
					fmt.Fprintln(ctx.App.Writer, "migrations applied")
					return nil
				},
			},
			{
				Name:  "status",
				Usage: "Print the applied schema version",
				Action: func(ctx *cli.Context) error {
					status, err := migration.ReadStatus(env.cfg.DatabaseURL, env.cfg.MigrationPath, env.log)
					if err != nil {
						return err
					}
					fmt.Fprintln(ctx.App.Writer, formatStatus(status))
					return nil
				},
			},
		},
	}
}

func formatStatus(status migration.Status) string {
	switch {
	case status.Pristine:
		return "no migrations applied"
	case status.Dirty:
		return fmt.Sprintf("version %d (dirty)", status.Version)
	default:
		return fmt.Sprintf("version %d", status.Version)
	}
}

// # Helpers

// password reads the admin password from stdin or, on a terminal, from a
// prompt without echo.
func (env *environment) password(prompt io.Writer, fromStdin bool) (string, error) {
	if fromStdin {
		scanner := bufio.NewScanner(env.stdin)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", err
			}
			return "", errors.New("missing password on stdin")
		}
		return strings.TrimRight(scanner.Text(), "\r"), nil
	}

	fd := int(os.Stdin.Fd())
	if !isTerminal(fd) {
		return "", errors.New("stdin is not a terminal: use --password-stdin")
	}

	fmt.Fprint(prompt, "Password: ")
	first, err := readPassword(fd)
	fmt.Fprintln(prompt)
	if err != nil {
		return "", err
	}

	fmt.Fprint(prompt, "Repeat password: ")
	second, err := readPassword(fd)
	fmt.Fprintln(prompt)
	if err != nil {
		return "", err
	}

	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}

// checkPassword applies the registration length rules.
func checkPassword(password string) error {
	switch {
	case len(password) < auth.PasswordMinLength:
		return fmt.Errorf("password must be at least %d characters", auth.PasswordMinLength)
	case len(password) > auth.PasswordMaxLength:
		return fmt.Errorf("password must be at most %d characters", auth.PasswordMaxLength)
	}
	return nil
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

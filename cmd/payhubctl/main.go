// Copyright (c) 2026 PayHub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command payhubctl runs operator tasks against the PayHub database: seeding an
// admin account, granting or revoking the admin flag, pruning expired sessions
// and applying migrations.
//
// It reads the same environment variables as the API server.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/taibuivan/payhub/internal/platform/constants"
)

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})).With(slog.String("app", "payhubctl"))

	env := &environment{log: log, stdin: os.Stdin}

	app := &cli.App{
		Name:    "payhubctl",
		Usage:   "Operator commands for the PayHub API",
		Version: constants.AppVersion,
		Before:  env.load,
		Commands: []*cli.Command{
			createAdminCmd(env),
			setAdminCmd(env),
			pruneSessionsCmd(env),
			migrateCmd(env),
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Error("command_failed", slog.Any("error", err))
		os.Exit(1)
	}
}

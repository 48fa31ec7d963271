// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"log"
	"os"

	"codeberg.org/oliverandrich/mfa-guard/internal/config"
	"codeberg.org/oliverandrich/mfa-guard/internal/server"
	"github.com/urfave/cli/v3"
)

func newCommand() *cli.Command {
	return &cli.Command{
		Name:   "app",
		Usage:  "Second-factor service: TOTP enrollment, verification and MFA sessions",
		Flags:  config.Flags(),
		Action: server.Run,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the HTTP server",
				Action: server.Run,
			},
			{
				Name:   "genkey",
				Usage:  "Print a new random encryption key for MFA_ENCRYPTION_KEY",
				Action: server.GenKey,
			},
			{
				Name:  "migrate",
				Usage: "Manage database migrations",
				Commands: []*cli.Command{
					{Name: "up", Usage: "Apply all pending migrations", Action: server.MigrateUp},
					{Name: "down", Usage: "Roll back the latest migration", Action: server.MigrateDown},
					{Name: "reset", Usage: "Roll back all migrations", Action: server.MigrateReset},
				},
			},
			{
				Name:   "sweep",
				Usage:  "Delete expired MFA sessions and exit",
				Action: server.Sweep,
			},
		},
	}
}

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

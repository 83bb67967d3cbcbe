// Package cli implements the kernelcms command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ButBow/kernel-gmbh-sub000/internal/backup"
	"github.com/ButBow/kernel-gmbh-sub000/internal/config"
	"github.com/ButBow/kernel-gmbh-sub000/internal/database"
	"github.com/ButBow/kernel-gmbh-sub000/internal/logging"
	"github.com/ButBow/kernel-gmbh-sub000/internal/server"
	"github.com/ButBow/kernel-gmbh-sub000/internal/snapshot"
)

// app carries what every subcommand needs: output streams and the loaded
// configuration with flag overrides applied.
type app struct {
	stdout, stderr io.Writer
	cfg            config.Config

	dbPath   string
	logLevel string
}

// NewRootCmd returns the root command of the kernelcms CLI.
func NewRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	cmd := &cobra.Command{
		Use:           "kernelcms",
		Short:         "Kernel CMS server and backup tooling",
		Version:       snapshot.ProductVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("db") {
				cfg.DBPath = a.dbPath
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = a.logLevel
			}
			a.cfg = cfg
			return nil
		},
	}

	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	cmd.PersistentFlags().StringVar(&a.dbPath, "db", "", "sqlite database path (default $KERNELCMS_DB_PATH or kernelcms.db)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error")

	cmd.AddCommand(newServeCmd(a))
	cmd.AddCommand(newBackupCmd(a))

	return cmd
}

// Execute runs the CLI with the process stdio and returns the exit code.
func Execute() int {
	root := NewRootCmd(os.Stdout, os.Stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

func (a *app) logger() *slog.Logger {
	return logging.New(a.stderr, a.cfg.LogLevel, a.cfg.LogFormat)
}

func (a *app) serverConfig() server.Config {
	return server.Config{
		Backup: backup.Config{
			S3: backup.S3Config{
				Endpoint:  a.cfg.S3Endpoint,
				Bucket:    a.cfg.S3Bucket,
				Region:    a.cfg.S3Region,
				AccessKey: a.cfg.S3AccessKey,
				SecretKey: a.cfg.S3SecretKey,
			},
			Prefix:        a.cfg.OffsitePrefix,
			Interval:      a.cfg.OffsiteInterval,
			RetentionDays: a.cfg.RetentionDays,
		},
		SiteHost:    a.cfg.SiteHost,
		WSOrigins:   a.cfg.WSOrigins,
		ImportLimit: a.cfg.ImportRateLimit,
	}
}

// open wires the application against the configured database. The returned
// function closes it.
func (a *app) open() (*server.Server, func(), error) {
	db, err := database.Open(a.cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	srv := server.New(db, a.serverConfig(), a.logger())
	return srv, func() { db.Close() }, nil
}

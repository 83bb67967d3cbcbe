package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/ButBow/kernel-gmbh-sub000/internal/backup"
	"github.com/ButBow/kernel-gmbh-sub000/internal/content"
	"github.com/ButBow/kernel-gmbh-sub000/internal/model"
	"github.com/ButBow/kernel-gmbh-sub000/internal/snapshot"
)

// passphraseEnv supplies the offsite passphrase when --passphrase is unset.
const passphraseEnv = "KERNELCMS_BACKUP_PASSPHRASE"

func newBackupCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export, validate, import and migrate site snapshots",
	}
	cmd.AddCommand(
		newExportCmd(a),
		newValidateCmd(a),
		newImportCmd(a),
		newMigrateCmd(a),
		newPushCmd(a),
		newPullCmd(a),
		newListCmd(a),
	)
	return cmd
}

func ctxOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func newExportCmd(a *app) *cobra.Command {
	var (
		outDir    string
		analytics bool
		without   []string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a snapshot of live data to a file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := snapshot.DefaultOptions()
			opts.Analytics = analytics
			for _, name := range without {
				d := snapshot.Domain(strings.TrimSpace(name))
				if !validDomain(d) {
					return fmt.Errorf("unknown domain %q", name)
				}
				opts.Set(d, false)
			}

			srv, closeDB, err := a.open()
			if err != nil {
				return err
			}
			defer closeDB()

			exp, err := srv.BackupManager().Export(ctxOf(cmd), opts)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}
			path := filepath.Join(outDir, exp.Filename)
			if err := os.WriteFile(path, exp.Data, 0o644); err != nil {
				return fmt.Errorf("write snapshot: %w", err)
			}
			fmt.Fprintf(a.stdout, "wrote %s (%d bytes, features: %s)\n", path, len(exp.Data), strings.Join(exp.Document.Meta.Features, ", "))
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out", ".", "directory to write the snapshot into")
	cmd.Flags().BoolVar(&analytics, "analytics", false, "include analytics events")
	cmd.Flags().StringSliceVar(&without, "without", nil, "domains to leave out, e.g. --without inquiries,themes")
	return cmd
}

func validDomain(d snapshot.Domain) bool {
	for _, known := range snapshot.AllDomains {
		if d == known {
			return true
		}
	}
	return false
}

func newValidateCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a snapshot file without importing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			candidate, err := snapshot.ReadFile(args[0])
			if err != nil {
				return err
			}
			report := snapshot.Validate(candidate)

			switch output {
			case "json":
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			case "table", "":
				renderReport(a.stdout, report)
			default:
				return fmt.Errorf("unsupported --output: %s", output)
			}

			if !report.Valid {
				return errors.New("snapshot is not valid")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format: table or json")
	return cmd
}

func renderReport(w io.Writer, r snapshot.Report) {
	status := "valid"
	if !r.Valid {
		status = "INVALID"
	}
	fmt.Fprintf(w, "Snapshot is %s\n", status)
	if r.Meta != nil {
		fmt.Fprintf(w, "App: %s  Version: %s  Schema: v%d  Exported: %s\n",
			r.Meta.AppName, r.Meta.Version, r.Meta.SchemaVersion.Effective(), r.Meta.ExportedAt)
	}

	if s := r.Summary; s != nil {
		tw := tablewriter.NewWriter(w)
		tw.SetHeader([]string{"DOMAIN", "CONTENT"})
		tw.Append([]string{"categories", strconv.Itoa(s.Categories)})
		tw.Append([]string{"products", strconv.Itoa(s.Products)})
		tw.Append([]string{"projects", strconv.Itoa(s.Projects)})
		tw.Append([]string{"posts", strconv.Itoa(s.Posts)})
		tw.Append([]string{"inquiries", strconv.Itoa(s.Inquiries)})
		tw.Append([]string{"settings", yesNo(s.HasSettings)})
		tw.Append([]string{"themes", fmt.Sprintf("%s (%d custom)", yesNo(s.HasThemes), s.CustomThemes)})
		tw.Append([]string{"analytics", fmt.Sprintf("%s (%d events)", yesNo(s.HasAnalytics), s.AnalyticsEvents)})
		tw.Render()
	}

	for _, e := range r.Errors {
		fmt.Fprintf(w, "error: %s\n", e)
	}
	for _, warn := range r.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func newImportCmd(a *app) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Validate, migrate and apply a snapshot file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := content.ParseMode(mode)
			if err != nil {
				return err
			}
			candidate, err := snapshot.ReadFile(args[0])
			if err != nil {
				return err
			}
			var size int64
			if fi, err := os.Stat(args[0]); err == nil {
				size = fi.Size()
			}

			srv, closeDB, err := a.open()
			if err != nil {
				return err
			}
			defer closeDB()

			out, err := srv.BackupManager().Import(ctxOf(cmd), candidate, backup.Source{
				Filename: filepath.Base(args[0]),
				Size:     size,
			}, m)
			if err != nil {
				return err
			}
			printImport(a.stdout, out)
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(content.ModeReplace), "replace or merge")
	return cmd
}

func printImport(w io.Writer, out *backup.ImportOutcome) {
	res := out.Result
	fmt.Fprintf(w, "imported snapshot (op %s)\n", out.OpID)
	if res.Migrated {
		fmt.Fprintf(w, "migrated from schema v%d to v%d\n", res.FromVersion, res.ToVersion)
	}
	if out.Applied != nil {
		fmt.Fprintf(w, "mode: %s\n", out.Applied.Mode)
		fmt.Fprintf(w, "applied: %s\n", joinDomains(out.Applied.Domains))
	}
	if len(res.Skipped) > 0 {
		fmt.Fprintf(w, "skipped (no longer supported): %s\n", joinDomains(res.Skipped))
	}
	for _, n := range res.Notes {
		fmt.Fprintf(w, "note: %s\n", n)
	}
}

func joinDomains(ds []snapshot.Domain) string {
	names := make([]string, len(ds))
	for i, d := range ds {
		names[i] = string(d)
	}
	return strings.Join(names, ", ")
}

func newMigrateCmd(a *app) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "migrate <file>",
		Short: "Upgrade a snapshot file to the current schema without importing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			candidate, err := snapshot.ReadFile(args[0])
			if err != nil {
				return err
			}
			doc, err := snapshot.MigrateValue(candidate)
			if err != nil {
				return err
			}

			if outPath == "" {
				return snapshot.Write(a.stdout, doc)
			}
			if _, err := snapshot.WriteFile(doc, filepath.Dir(outPath), filepath.Base(outPath)); err != nil {
				return err
			}
			fmt.Fprintf(a.stderr, "wrote %s (schema v%d)\n", outPath, doc.Meta.SchemaVersion)
			for _, n := range doc.Meta.MigrationNotes {
				fmt.Fprintf(a.stderr, "note: %s\n", n)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "", "output file (default stdout)")
	return cmd
}

func passphrase(flag string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv(passphraseEnv)
}

func newPushCmd(a *app) *cobra.Command {
	var pass string
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Encrypt a full snapshot and upload it to offsite storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, closeDB, err := a.open()
			if err != nil {
				return err
			}
			defer closeDB()

			rec, err := srv.BackupManager().PushOffsite(ctxOf(cmd), passphrase(pass))
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "uploaded %s (%d bytes)\n", rec.ObjectKey, rec.SizeBytes)
			return nil
		},
	}
	cmd.Flags().StringVar(&pass, "passphrase", "", "encryption passphrase (default $"+passphraseEnv+")")
	return cmd
}

func newPullCmd(a *app) *cobra.Command {
	var (
		pass     string
		outPath  string
		doImport bool
		mode     string
	)
	cmd := &cobra.Command{
		Use:   "pull <key>",
		Short: "Download and decrypt an offsite snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := content.ParseMode(mode)
			if err != nil {
				return err
			}

			srv, closeDB, err := a.open()
			if err != nil {
				return err
			}
			defer closeDB()
			mgr := srv.BackupManager()

			if doImport {
				out, err := mgr.RestoreOffsite(ctxOf(cmd), args[0], passphrase(pass), m)
				if err != nil {
					return err
				}
				printImport(a.stdout, out)
				return nil
			}

			candidate, err := mgr.PullOffsite(ctxOf(cmd), args[0], passphrase(pass))
			if err != nil {
				return err
			}
			b, err := json.MarshalIndent(candidate, "", "  ")
			if err != nil {
				return fmt.Errorf("encode snapshot: %w", err)
			}
			b = append(b, '\n')
			if outPath == "" {
				_, err = a.stdout.Write(b)
				return err
			}
			if err := os.WriteFile(outPath, b, 0o644); err != nil {
				return fmt.Errorf("write snapshot: %w", err)
			}
			fmt.Fprintf(a.stderr, "wrote %s\n", outPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&pass, "passphrase", "", "encryption passphrase (default $"+passphraseEnv+")")
	cmd.Flags().StringVar(&outPath, "out", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&doImport, "import", false, "import the snapshot instead of writing it out")
	cmd.Flags().StringVar(&mode, "mode", string(content.ModeReplace), "import mode with --import: replace or merge")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	var (
		output string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded exports, imports and offsite copies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, closeDB, err := a.open()
			if err != nil {
				return err
			}
			defer closeDB()

			records, err := srv.BackupManager().History(limit)
			if err != nil {
				return err
			}
			if records == nil {
				records = []model.Backup{}
			}

			switch output {
			case "json":
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			case "table", "":
				renderHistory(a.stdout, records)
				return nil
			default:
				return fmt.Errorf("unsupported --output: %s", output)
			}
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format: table or json")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of records")
	return cmd
}

func renderHistory(w io.Writer, records []model.Backup) {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader([]string{"ID", "KIND", "STATUS", "FILE", "SCHEMA", "SIZE", "CREATED_AT"})
	for _, b := range records {
		file := b.Filename
		if b.ObjectKey != "" {
			file = b.ObjectKey
		}
		schema := ""
		if b.SchemaVersion > 0 {
			schema = "v" + strconv.Itoa(b.SchemaVersion)
			if b.Migrated {
				schema += " (migrated)"
			}
		}
		tw.Append([]string{
			strconv.FormatInt(b.ID, 10),
			string(b.Kind),
			string(b.Status),
			file,
			schema,
			strconv.FormatInt(b.SizeBytes, 10),
			b.CreatedAt.Format(time.RFC3339),
		})
	}
	tw.Render()
}

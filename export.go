package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sadopc/tally/internal/dashboard"
	"github.com/sadopc/tally/internal/export"
	"github.com/sadopc/tally/internal/timeutil"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a CSV or JSON report of time entries",
	Long: `Write a report of the entries started within a range.

By default the report is fetched from the server in client.server-url.
With --db the database is read directly and --user names the account.`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

var (
	exportRange  string
	exportFormat string
	exportOut    string
	exportDB     string
	exportUser   string
)

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVar(&exportRange, "range", "week", "Range: today, week or month")
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "Format: csv or json")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file (default stdout)")
	exportCmd.Flags().StringVar(&exportDB, "db", "", "Read this SQLite database instead of the server")
	exportCmd.Flags().StringVar(&exportUser, "user", "", "Email of the account to export (with --db)")
}

func runExport(cmd *cobra.Command, _ []string) error {
	r, err := timeutil.ParseRange(exportRange, timeutil.Week)
	if err != nil {
		return err
	}
	f, err := export.ParseFormat(exportFormat)
	if err != nil {
		return err
	}
	if exportDB != "" {
		return exportFromStore(cmd, r, f)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	c, err := newClient(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if exportOut == "" {
		_, err := c.Export(ctx, r, f, cmd.OutOrStdout())
		return err
	}
	file, err := os.Create(exportOut)
	if err != nil {
		return fmt.Errorf("create %s: %w", exportOut, err)
	}
	if _, err := c.Export(ctx, r, f, file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func exportFromStore(cmd *cobra.Command, r timeutil.Range, f export.Format) error {
	if exportUser == "" {
		return fmt.Errorf("--user is required with --db")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	s, err := openStore(exportDB)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	u, err := s.GetUserByEmail(ctx, exportUser)
	if err != nil {
		return fmt.Errorf("user %s: %w", exportUser, err)
	}
	rows, err := dashboard.New(s, dashboard.WithLocation(loc)).ExportRows(ctx, u.ID, r)
	if err != nil {
		return err
	}

	now := time.Now()
	if exportOut != "" {
		if f == export.JSON {
			return export.ToJSON(string(r), rows, now, exportOut)
		}
		return export.ToCSV(rows, loc, exportOut)
	}
	return writeReport(cmd.OutOrStdout(), f, string(r), rows, loc, now)
}

func writeReport(w io.Writer, f export.Format, rangeName string, rows []export.Row, loc *time.Location, now time.Time) error {
	if f == export.JSON {
		return export.WriteJSON(w, rangeName, rows, now)
	}
	return export.WriteCSV(w, rows, loc)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/sadopc/tally/internal/client"
	"github.com/sadopc/tally/internal/config"
	"github.com/sadopc/tally/internal/logging"
	"github.com/sadopc/tally/internal/timer"
	"github.com/sadopc/tally/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the terminal interface",
	Args:  cobra.NoArgs,
	RunE:  runTUI,
}

var (
	tuiExportDir string
	tuiLogFile   string
)

func init() {
	rootCmd.AddCommand(tuiCmd)
	tuiCmd.Flags().StringVar(&tuiExportDir, "export-dir", "", "Directory for exported reports (default home directory)")
	tuiCmd.Flags().StringVar(&tuiLogFile, "log-file", "", "Write debug logs to this file")
}

var errNoToken = errors.New("no API token configured: run `tally user add` and set client.token or TALLY_TOKEN")

func newClient(cfg *config.Config) (*client.Client, error) {
	if cfg.Client.Token == "" {
		return nil, errNoToken
	}
	return client.New(cfg.Client.ServerURL, cfg.Client.Token), nil
}

func runTUI(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	c, err := newClient(cfg)
	if err != nil {
		return err
	}

	// Logs would corrupt the alternate screen, so they go to a file or nowhere.
	log := logging.Discard()
	if tuiLogFile != "" {
		f, err := os.OpenFile(tuiLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		if log, err = logging.New(logging.Options{Level: "debug", Out: f}); err != nil {
			return err
		}
	}

	bus := timer.NewBus()
	m := timer.New(c,
		timer.WithStateFile(timer.NewStateFile(cfg.Client.StateFile)),
		timer.WithBus(bus),
		timer.WithInactivity(cfg.Client.InactivityTimeout.Duration, cfg.Client.PromptGrace.Duration),
		timer.WithPollInterval(cfg.Client.PollInterval.Duration),
		timer.WithLogger(log),
	)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go m.Run(ctx)

	opts := []tui.Option{tui.WithBus(bus)}
	if tuiExportDir != "" {
		opts = append(opts, tui.WithExportDir(tuiExportDir))
	}
	app := tui.NewApp(c, m, opts...)
	defer app.Close()
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithReportFocus())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}

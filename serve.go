package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sadopc/tally/internal/attachments"
	"github.com/sadopc/tally/internal/logging"
	"github.com/sadopc/tally/internal/server"
	"github.com/sadopc/tally/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var (
	serveAddr    string
	serveDB      string
	serveUploads string
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
	serveCmd.Flags().StringVar(&serveDB, "db", "", "SQLite database path (overrides server.database)")
	serveCmd.Flags().StringVar(&serveUploads, "uploads", "", "Attachment directory (overrides server.uploads)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := logging.New(logging.Options{
		Level:  cfg.Server.LogLevel,
		Format: cfg.Server.LogFormat,
		Out:    cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	addr := firstNonEmpty(serveAddr, cfg.Server.Addr)
	dbPath := firstNonEmpty(serveDB, cfg.Server.Database)
	uploads := firstNonEmpty(serveUploads, cfg.Server.Uploads)

	s, err := store.New(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer s.Close()

	blobs, err := attachments.New(uploads)
	if err != nil {
		return err
	}

	srv, err := server.NewServer(server.ServerOptions{
		Store:          s,
		Blobs:          blobs,
		Logger:         log,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		Location:       loc,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithField("database", dbPath).Debug("database opened")
	return srv.Serve(ctx, addr)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

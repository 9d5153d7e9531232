package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/margo-labs/margo/internal/adapters/driven/config/file"
	"github.com/margo-labs/margo/internal/adapters/driven/llm"
	"github.com/margo-labs/margo/internal/adapters/driven/render/pdftoppm"
	"github.com/margo-labs/margo/internal/adapters/driven/storage/sidecar"
	"github.com/margo-labs/margo/internal/adapters/driven/storage/sqlite"
	"github.com/margo-labs/margo/internal/adapters/driving/api"
	"github.com/margo-labs/margo/internal/core/ports/driven"
	"github.com/margo-labs/margo/internal/core/ports/driving"
	"github.com/margo-labs/margo/internal/core/services"
	"github.com/margo-labs/margo/internal/logger"
)

var (
	serveHost string
	servePort int
	dataDir   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the backend HTTP server",
	Long: `Starts the HTTP server the desktop frontend talks to. The server
binds to loopback by default and shuts down cleanly on SIGINT/SIGTERM.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen address (default from settings)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (default from settings)")
	serveCmd.Flags().StringVar(&dataDir, "data-dir", "", "catalog database directory (default ~/.margo/data)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	configStore, err := file.NewConfigStore(configDir)
	if err != nil {
		return fmt.Errorf("open config store: %w", err)
	}

	settings := services.NewSettingsService(configStore)
	chat := services.NewChatService(sidecar.NewStore())

	assistant := services.NewAssistantService(chat, settings, llm.NewClient)
	defer func() {
		if err := assistant.Close(); err != nil {
			logger.Warn("failed to close assistant client: %v", err)
		}
	}()

	// The catalog and renderer are optional: without them the server
	// still answers chat requests, and their endpoints report
	// unavailable.
	var library driving.LibraryService
	if catalog, err := sqlite.NewStore(dataDir); err != nil {
		logger.Warn("recents catalog unavailable: %v", err)
	} else if lib, err := services.NewLibraryService(catalog); err != nil {
		logger.Warn("library watcher unavailable: %v", err)
		catalog.Close()
	} else {
		// lib.Close also releases the catalog.
		library = lib
		defer func() {
			if err := lib.Close(); err != nil {
				logger.Warn("failed to close library: %v", err)
			}
		}()
	}

	var renderer driven.PageRenderer
	if r, err := pdftoppm.NewRenderer(); err != nil {
		logger.Warn("page rendering unavailable: %v", err)
	} else {
		renderer = r
	}

	cfg, err := settings.Get()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	host := cfg.Server.Host
	if cmd.Flags().Changed("host") {
		host = serveHost
	}
	port := cfg.Server.Port
	if cmd.Flags().Changed("port") {
		port = servePort
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := api.NewServer(chat, assistant, settings, library, renderer)
	return server.Run(ctx, host, port)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/spider-crawler/pageview/internal/commands"
	"github.com/spider-crawler/pageview/internal/config"
	"github.com/spider-crawler/pageview/internal/fetcher"
	"github.com/spider-crawler/pageview/internal/logger"
	"github.com/spider-crawler/pageview/internal/opener"
	"github.com/spider-crawler/pageview/internal/storage"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// app holds what every subcommand needs once flags and config are resolved.
type app struct {
	cfgFile string
	debug   bool

	cfg *config.Config
	log logger.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "pageview",
		Short:         "Fetch web pages in any encoding and view them",
		Long:          `pageview fetches pages with browser-like headers, decodes them to UTF-8 whatever charset the server used, and shows them in-app or hands them to the system browser.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (yaml, json or toml)")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newFetchCommand(a),
		newOpenCommand(a),
		newBrowseCommand(a),
		newServeCommand(a),
		newHistoryCommand(a),
		newExportCommand(a),
		newConfigCommand(a),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version number",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "pageview version %s\n", version)
			},
		},
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	return newRootCommand().ExecuteContext(context.Background())
}

func (a *app) load() error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	if a.debug {
		cfg.Log.Level = "debug"
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	a.cfg = cfg
	a.log = log
	return nil
}

func (a *app) newFetcher() *fetcher.Fetcher {
	return fetcher.New(a.cfg.Fetch, a.log)
}

func (a *app) newCommands(f *fetcher.Fetcher) *commands.Commands {
	return commands.New(f, opener.NewSystem(a.log), a.log)
}

var errNoStorage = errors.New("visit log disabled: set storage.path or PAGEVIEW_STORAGE_PATH")

// openStorage returns nil, nil when no storage path is configured.
func (a *app) openStorage() (*storage.Database, error) {
	if a.cfg.Storage.Path == "" {
		return nil, nil
	}
	db, err := storage.Open(a.cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open visit log: %w", err)
	}
	return db, nil
}

func (a *app) requireStorage() (*storage.Database, error) {
	db, err := a.openStorage()
	if err != nil {
		return nil, err
	}
	if db == nil {
		return nil, errNoStorage
	}
	return db, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"adoptik/petfeed/internal/client"
	"adoptik/petfeed/internal/config"
	"adoptik/petfeed/internal/database"
	"adoptik/petfeed/internal/feed"
	importer "adoptik/petfeed/internal/import"
	"adoptik/petfeed/internal/notify"
	"adoptik/petfeed/internal/process"
	"adoptik/petfeed/internal/server"
	"adoptik/petfeed/internal/server/storage"
)

const usage = `Usage: petfeed [command] [options]
Commands: import, migrate, sync, server, browse

For command-specific options, use: petfeed [command] -h`

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "2006-01-02 15:04:05"})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}
	if err := run(os.Args[1], os.Args[2:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		log.Error().Err(err).Str("command", os.Args[1]).Msg("Command failed")
		os.Exit(1)
	}
}

// run parses the flags of command and executes it.
func run(command string, args []string) error {
	cfg := config.FromEnv()
	var logLevel string

	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	fs.StringVar(&logLevel, "log-level", cfg.LogLevel.String(),
		"Log level: debug, info, warn, error (env: "+config.EnvLogLevel+")")
	dbFlag := func() {
		fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the SQLite database file (env: "+config.EnvDBPath+")")
	}

	switch command {
	case "import":
		dbFlag()
		fs.StringVar(&cfg.AnimalsCSVPath, "animals", cfg.AnimalsCSVPath,
			"Path or URL of the animals CSV, empty to skip (env: "+config.EnvAnimalsCSV+")")
		fs.StringVar(&cfg.SourcesCSVPath, "sources", cfg.SourcesCSVPath,
			"Path or URL of the video sources CSV, empty to skip (env: "+config.EnvSourcesCSV+")")
		reset := fs.Bool("reset", false, "Delete and recreate the database before importing")
		yes := fs.Bool("y", config.GetEnvBool(config.EnvAssumeYes, false),
			"Do not ask for confirmation with -reset (env: "+config.EnvAssumeYes+")")
		if err := parse(fs, args, cfg, &logLevel); err != nil {
			return err
		}
		return runImport(cfg, *reset, *yes, os.Stdin)

	case "migrate":
		dbFlag()
		down := fs.Int("down", 0, "Roll back this many migrations instead of applying pending ones")
		if err := parse(fs, args, cfg, &logLevel); err != nil {
			return err
		}
		return runMigrate(cfg, *down)

	case "sync", "start":
		dbFlag()
		intervalMinutes := int(cfg.Interval / time.Minute)
		fs.IntVar(&intervalMinutes, "interval", intervalMinutes,
			"Minutes between sync runs, 0 for one-shot mode (env: "+config.EnvInterval+")")
		fs.IntVar(&cfg.WorkerCount, "workers", cfg.WorkerCount,
			"Number of fetch workers, 0 for CPU count (env: "+config.EnvWorkerCount+")")
		fs.IntVar(&cfg.RetentionDays, "retention", cfg.RetentionDays,
			"Days to keep videos of adopted animals, 0 disables purging (env: "+config.EnvRetentionDays+")")
		if err := parse(fs, args, cfg, &logLevel); err != nil {
			return err
		}
		cfg.Interval = time.Duration(intervalMinutes) * time.Minute
		return runSync(cfg)

	case "server":
		dbFlag()
		fs.StringVar(&cfg.ServerHost, "host", cfg.ServerHost, "Host to bind the server to (env: "+config.EnvServerHost+")")
		fs.IntVar(&cfg.ServerPort, "port", cfg.ServerPort, "Port to listen on (env: "+config.EnvServerPort+")")
		fs.StringVar(&cfg.APIKey, "api-key", cfg.APIKey, "Key required by admin routes (env: "+config.EnvAPIKey+")")
		fs.IntVar(&cfg.PageSize, "page-size", cfg.PageSize, "Default videos per page (env: "+config.EnvPageSize+")")
		if err := parse(fs, args, cfg, &logLevel); err != nil {
			return err
		}
		return runServer(cfg)

	case "browse":
		local := fs.String("db", "", "Browse a local SQLite database instead of the API")
		fs.StringVar(&cfg.APIURL, "api-url", cfg.APIURL, "Base URL of the petfeed API (env: "+config.EnvAPIURL+")")
		fs.StringVar(&cfg.APIKey, "api-key", cfg.APIKey, "API key sent with requests (env: "+config.EnvAPIKey+")")
		fs.IntVar(&cfg.PageSize, "page-size", cfg.PageSize, "Videos per page (env: "+config.EnvPageSize+")")
		logFile := fs.String("log-file", filepath.Join(os.TempDir(), "petfeed-browse.log"), "File that receives logs while the viewer owns the terminal")
		if err := parse(fs, args, cfg, &logLevel); err != nil {
			return err
		}
		restore, err := redirectLog(*logFile)
		if err != nil {
			return err
		}
		defer restore()
		if *local != "" {
			cfg.DBPath = *local
			return runBrowseLocal(cfg, os.Stdin, os.Stdout)
		}
		return runBrowse(cfg, os.Stdin, os.Stdout)

	case "-h", "--help", "help":
		fmt.Println(usage)
		return nil

	default:
		fmt.Println(usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

// parse applies args to fs, then the log level, then validates cfg.
func parse(fs *flag.FlagSet, args []string, cfg *config.Config, logLevel *string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	if level, err := zerolog.ParseLevel(*logLevel); err == nil {
		cfg.LogLevel = level
	} else {
		log.Warn().Str("log_level", *logLevel).Msg("Unknown log level, keeping default")
	}
	zerolog.SetGlobalLevel(cfg.LogLevel)
	return cfg.Validate()
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-shutdown:
			log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(shutdown)
	}()
	return ctx, cancel
}

func openDB(cfg *config.Config) (*database.DB, error) {
	db, err := database.NewDB(database.NewConfig(cfg.DBPath))
	if err != nil {
		log.Error().Err(err).Str("path", cfg.DBPath).Msg("Failed to initialize database")
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return db, nil
}

// runImport loads the animals and sources CSV files. With reset it first
// deletes the database, asking for confirmation unless yes is set.
func runImport(cfg *config.Config, reset, yes bool, in io.Reader) error {
	if reset {
		if _, err := os.Stat(cfg.DBPath); err == nil {
			if !yes {
				fmt.Printf("Database %s already exists and all its data will be lost.\n", cfg.DBPath)
				fmt.Print("Delete and recreate? (y/N): ")
				answer, _ := bufio.NewReader(in).ReadString('\n')
				if strings.ToLower(strings.TrimSpace(answer)) != "y" {
					log.Info().Msg("Operation canceled by user")
					return fmt.Errorf("operation canceled by user")
				}
			}
			if err := database.DeleteDB(cfg.DBPath); err != nil {
				return fmt.Errorf("failed to delete existing database: %w", err)
			}
			log.Info().Str("path", cfg.DBPath).Msg("Deleted existing database")
		}
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := signalContext()
	defer cancel()

	imp := importer.NewImporter(storage.NewRepository(db))
	if wanted(cfg.AnimalsCSVPath, config.DefaultAnimalsCSVPath) {
		if _, err := imp.ImportAnimals(ctx, cfg.AnimalsCSVPath); err != nil {
			return err
		}
	}
	if wanted(cfg.SourcesCSVPath, config.DefaultSourcesCSVPath) {
		if _, err := imp.ImportSources(ctx, cfg.SourcesCSVPath); err != nil {
			return err
		}
	}
	return nil
}

// wanted reports whether location should be imported. A default path that
// does not exist is skipped; an explicit one is left to fail loudly.
func wanted(location, defaultPath string) bool {
	if location == "" {
		return false
	}
	if location == defaultPath {
		if _, err := os.Stat(location); errors.Is(err, os.ErrNotExist) {
			log.Info().Str("path", location).Msg("No CSV file found, skipping")
			return false
		}
	}
	return true
}

// runMigrate applies pending migrations, or rolls back down of them.
func runMigrate(cfg *config.Config, down int) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if down > 0 {
		if err := db.Rollback(down); err != nil {
			return fmt.Errorf("failed to roll back migrations: %w", err)
		}
		log.Info().Int("count", down).Msg("Rolled back migrations")
		return nil
	}
	log.Info().Str("path", cfg.DBPath).Msg("Database is up to date")
	return nil
}

// runSync executes the source sync either once or periodically.
func runSync(cfg *config.Config) error {
	if cfg.Interval <= 0 {
		log.Info().Msg("Running in one-shot mode")
	} else {
		log.Info().Int64("interval_minutes", int64(cfg.Interval.Minutes())).Msg("Running in periodic mode")
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	repo := storage.NewRepository(db)
	fetcher := process.NewFeedFetcher()

	ctx, cancel := signalContext()
	defer cancel()

	cycle := func() error {
		err := runSyncCycle(ctx, repo, fetcher, cfg)
		if errors.Is(err, context.Canceled) {
			log.Info().Msg("Sync cycle canceled by shutdown signal")
			return nil
		}
		return err
	}

	if err := cycle(); err != nil {
		if cfg.Interval <= 0 {
			return err
		}
		log.Error().Err(err).Msg("Sync cycle failed")
	}
	if cfg.Interval <= 0 || ctx.Err() != nil {
		return nil
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	log.Info().Time("next_run", time.Now().Add(cfg.Interval)).Msg("Waiting for next sync cycle")

	for {
		select {
		case <-ticker.C:
			if err := cycle(); err != nil {
				log.Error().Err(err).Msg("Sync cycle failed")
			}
			if ctx.Err() != nil {
				return nil
			}
			log.Info().Time("next_run", time.Now().Add(cfg.Interval)).Msg("Waiting for next sync cycle")
		case <-ctx.Done():
			log.Info().Msg("Shutting down periodic sync")
			return nil
		}
	}
}

// runSyncCycle runs one sync pass followed by the purge of adopted videos.
func runSyncCycle(ctx context.Context, repo *storage.Repository, fetcher process.Fetcher, cfg *config.Config) error {
	syncer, err := process.NewSourceSyncer(repo, fetcher, cfg.WorkerCount)
	if err != nil {
		return fmt.Errorf("failed to initialize source syncer: %w", err)
	}

	syncCtx, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()

	log.Info().Int("worker_count", syncer.WorkerCount).Msg("Starting sync cycle")
	start := time.Now()
	err = syncer.Sync(syncCtx)
	log.Info().Dur("duration", time.Since(start)).Msg("Sync cycle finished")
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("sync error: %w", err)
	}

	inserted, duplicates := syncer.Stats()
	log.Info().
		Int64("inserted", inserted).
		Int64("duplicates", duplicates).
		Int64("skipped", syncer.Skipped()).
		Msg("Sync stats")

	if cfg.RetentionDays <= 0 {
		return nil
	}
	purgeCtx, purgeCancel := context.WithTimeout(ctx, 5*time.Minute)
	defer purgeCancel()
	if _, err := syncer.PurgeAdopted(purgeCtx, cfg.RetentionDays); err != nil {
		log.Error().Err(err).Msg("Failed to purge adopted videos")
	}
	return nil
}

// runServer starts the HTTP API server with the provided configuration.
func runServer(cfg *config.Config) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.APIKey == "" {
		log.Warn().Msg("No API key configured, admin routes are disabled")
	}
	return server.RunServer(db, cfg.ListenAddr(), log.Logger, server.Options{
		APIKey:          cfg.APIKey,
		DefaultPageSize: cfg.PageSize,
		MaxPageSize:     config.MaxPageSize,
	})
}

// redirectLog sends the global logger to path until restore is called.
func redirectLog(path string) (restore func(), err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	prev := log.Logger
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: f, NoColor: true, TimeFormat: "2006-01-02 15:04:05"})
	return func() {
		log.Logger = prev
		f.Close()
	}, nil
}

// runBrowse opens the interactive viewer on the API feed.
func runBrowse(cfg *config.Config, in io.Reader, w io.Writer) error {
	api, err := client.New(cfg.APIURL, client.Options{
		APIKey:   cfg.APIKey,
		PageSize: cfg.PageSize,
		Logger:   &log.Logger,
	})
	if err != nil {
		return err
	}
	return browseWith(api, api, in, w)
}

// runBrowseLocal reads the feed straight from the database.
func runBrowseLocal(cfg *config.Config, in io.Reader, w io.Writer) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	p := storage.NewFeedProvider(storage.NewRepository(db), cfg.PageSize)
	return browseWith(p, p, in, w)
}

func browseWith(provider feed.Provider, reactor feed.Reactor, in io.Reader, w io.Writer) error {
	ctx, cancel := signalContext()
	defer cancel()

	notices := newNoticeSink()
	logSink := notify.NewLogSink(log.Logger)
	session := feed.NewSession(provider, terminalHandles(), feed.SessionOptions{
		Reactor: reactor,
		Notifier: notify.SinkFunc(func(kind notify.Kind, message string) {
			logSink.Notify(kind, message)
			notices.Notify(kind, message)
		}),
		Logger: &log.Logger,
	})
	defer session.Close()

	program := tea.NewProgram(newBrowser(ctx, session, notices),
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(w),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	log.Info().Str("session_id", session.ID).Msg("Starting viewer")
	if _, err := program.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("viewer failed: %w", err)
	}
	return nil
}

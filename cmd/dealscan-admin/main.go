// Command dealscan-admin runs operational tasks against a dealscan deployment: migrations,
// starting and inspecting scans, and checking HubSpot credentials.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/om239903-ai/internship-project/config"
	"github.com/om239903-ai/internship-project/internal/bootstrap"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
	Out    io.Writer
}

const (
	defaultMigrationTimeout = 5 * time.Minute
	defaultCommandTimeout   = time.Minute

	// accessTokenEnv is read when -token is not given, so the credential stays out of shell history.
	accessTokenEnv = "HUBSPOT_ACCESS_TOKEN"
)

var errAdminNeedsPostgres = errors.New("admin scan commands require the postgres storage backend")

func main() {
	logger := bootstrap.InitLogger()

	if len(os.Args) < 2 {
		if err := printUsage(os.Stdout); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(os.Stderr); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cmdCtx := &commandContext{
		Ctx:    ctx,
		Logger: logger,
		Config: cfg,
		Out:    os.Stdout,
	}
	runErr := cmd.run(cmdCtx, os.Args[2:])
	stop()
	if runErr != nil {
		if errors.Is(runErr, flag.ErrHelp) {
			os.Exit(0) //nolint:forbidigo // -h is not a failure
		}
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"migrate": {
			name:        "migrate",
			description: "Run database migrations",
			run:         runMigrations,
		},
		"start": {
			name:        "start",
			description: "Queue a deals scan (token from -token or " + accessTokenEnv + ")",
			run:         runStartScan,
		},
		"status": {
			name:        "status",
			description: "Show the latest run of a scan",
			run:         runScanStatus,
		},
		"list": {
			name:        "list",
			description: "List recent scan runs",
			run:         runListScans,
		},
		"cancel": {
			name:        "cancel",
			description: "Request cancellation of a pending or running scan",
			run:         runCancelScan,
		},
		"results": {
			name:        "results",
			description: "Print extracted deals for a scan",
			run:         runScanResults,
		},
		"reap": {
			name:        "reap",
			description: "Run one reaper sweep (stale, abandoned and expired scans)",
			run:         runReap,
		},
		"test-connection": {
			name:        "test-connection",
			description: "Check that a HubSpot access token can read deals",
			run:         runTestConnection,
		},
	}
}

func printUsage(w io.Writer) error {
	if err := writef(w, "Usage: dealscan-admin <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(w, "Available commands:\n"); err != nil {
		return err
	}
	cmds := commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := writef(w, "  %-18s %s\n", name, cmds[name].description); err != nil {
			return err
		}
	}
	return nil
}

type migrateOptions struct {
	Timeout time.Duration
}

func parseMigrateFlags(args []string) (migrateOptions, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := migrateOptions{Timeout: defaultMigrationTimeout}
	fs.DurationVar(&opts.Timeout, "timeout", defaultMigrationTimeout,
		"Maximum duration to wait for migrations to complete")

	if err := fs.Parse(args); err != nil {
		return migrateOptions{}, err
	}
	if opts.Timeout <= 0 {
		return migrateOptions{}, errors.New("--timeout must be greater than zero")
	}
	return opts, nil
}

func runMigrations(cmdCtx *commandContext, args []string) error {
	opts, err := parseMigrateFlags(args)
	if err != nil {
		return err
	}
	if !cmdCtx.Config.UsesPostgres() {
		return errAdminNeedsPostgres
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, opts.Timeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(ctx, bootstrap.DatabaseConfig{
		DBConfig: cmdCtx.Config.Postgres,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", closeErr)
		}
	}()

	cmdCtx.Logger.Info("running database migrations")
	if migrateErr := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); migrateErr != nil {
		return fmt.Errorf("run migrations: %w", migrateErr)
	}
	cmdCtx.Logger.Info("migrations completed successfully")
	return nil
}

// adminRuntime is the service graph the scan commands operate on.
type adminRuntime struct {
	services bootstrap.ServiceContainer
	db       *sql.DB
	redis    redis.UniversalClient
}

func (r *adminRuntime) Close() error {
	var closeErr error
	if r.db != nil {
		if err := r.db.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close db: %w", err))
		}
	}
	if r.redis != nil {
		if err := r.redis.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close redis: %w", err))
		}
	}
	if err := r.services.Observability.MetricsSink.Close(); err != nil {
		closeErr = errors.Join(closeErr, fmt.Errorf("close metrics: %w", err))
	}
	return closeErr
}

// connectRuntime wires the services against the shared database. Redis is attached when
// enabled so cancel requests reach runners through the fast path too.
func connectRuntime(ctx context.Context, cmdCtx *commandContext) (*adminRuntime, error) {
	cfg := cmdCtx.Config
	if !cfg.UsesPostgres() {
		return nil, errAdminNeedsPostgres
	}
	dbCfg := bootstrap.DatabaseConfig{DBConfig: cfg.Postgres, RedisConfig: cfg.Redis, Logger: cmdCtx.Logger}

	db, err := bootstrap.ConnectDB(ctx, dbCfg)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	rt := &adminRuntime{db: db}

	rt.redis, err = bootstrap.ConnectRedis(ctx, dbCfg)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("connect redis: %w", err), rt.Close())
	}

	rt.services, err = bootstrap.NewServices(&bootstrap.ServiceDeps{
		Config:      &cfg,
		DB:          db,
		RedisClient: rt.redis,
		Logger:      cmdCtx.Logger,
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("build services: %w", err), rt.Close())
	}
	return rt, nil
}

// withRuntime runs fn with a connected runtime under the default command timeout.
func withRuntime(cmdCtx *commandContext, fn func(ctx context.Context, rt *adminRuntime) error) error {
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	rt, err := connectRuntime(ctx, cmdCtx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rt.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("close runtime failed", "error", closeErr)
		}
	}()
	return fn(ctx, rt)
}

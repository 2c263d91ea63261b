package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/om239903-ai/internship-project/internal/adapters/reaper"
	"github.com/om239903-ai/internship-project/internal/bootstrap"
)

type reapOptions struct {
	Timeout time.Duration
}

func parseReapFlags(args []string) (reapOptions, error) {
	fs := flag.NewFlagSet("reap", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := reapOptions{}
	fs.DurationVar(&opts.Timeout, "timeout", defaultCommandTimeout, "Maximum duration of the sweep")
	if err := fs.Parse(args); err != nil {
		return reapOptions{}, err
	}
	if opts.Timeout <= 0 {
		return reapOptions{}, errors.New("--timeout must be greater than zero")
	}
	if fs.NArg() > 0 {
		return reapOptions{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return opts, nil
}

// runReap sweeps once using the REAPER_* settings, for use from cron or by hand.
func runReap(cmdCtx *commandContext, args []string) error {
	opts, err := parseReapFlags(args)
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

	r, err := reaper.NewRunner(reaper.RunnerOptions{
		DB:     db,
		Config: cmdCtx.Config.Reaper,
		Logger: cmdCtx.Logger,
	})
	if err != nil {
		return err
	}
	if err := r.Sweep(ctx); err != nil {
		return fmt.Errorf("reaper sweep: %w", err)
	}
	return writeln(cmdCtx.Out, "reaper sweep completed")
}

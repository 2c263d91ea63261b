package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/om239903-ai/internship-project/config"
	"github.com/om239903-ai/internship-project/internal/adapters/hubspot"
	"github.com/om239903-ai/internship-project/internal/bootstrap"
	apperrors "github.com/om239903-ai/internship-project/internal/errors"
)

type testConnectionOptions struct {
	Token   string
	Timeout time.Duration
}

func parseTestConnectionFlags(args []string, getenv func(string) string) (testConnectionOptions, error) {
	fs := flag.NewFlagSet("test-connection", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := testConnectionOptions{Timeout: 15 * time.Second}
	fs.StringVar(&opts.Token, "token", "", "HubSpot access token (defaults to $"+accessTokenEnv+")")
	fs.DurationVar(&opts.Timeout, "timeout", opts.Timeout, "Maximum duration for the check")
	if err := fs.Parse(args); err != nil {
		return testConnectionOptions{}, err
	}
	if opts.Token == "" {
		opts.Token = getenv(accessTokenEnv)
	}
	if strings.TrimSpace(opts.Token) == "" {
		return testConnectionOptions{}, fmt.Errorf("an access token is required via --token or %s", accessTokenEnv)
	}
	if opts.Timeout <= 0 {
		return testConnectionOptions{}, errors.New("--timeout must be greater than zero")
	}
	return opts, nil
}

func runTestConnection(cmdCtx *commandContext, args []string) error {
	opts, err := parseTestConnectionFlags(args, os.Getenv)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, opts.Timeout)
	defer cancel()
	return checkConnection(ctx, cmdCtx, opts.Token)
}

// checkConnection performs one authenticated read and reports the outcome without echoing the token.
func checkConnection(ctx context.Context, cmdCtx *commandContext, token string) error {
	hub := cmdCtx.Config.HubSpot
	factory, err := bootstrap.NewSourceFactory(hub, cmdCtx.Logger)
	if err != nil {
		return fmt.Errorf("create hubspot client: %w", err)
	}
	client, err := factory.Client(token)
	if err != nil {
		return err
	}

	if err := client.ValidateToken(ctx); err != nil {
		if reportErr := reportConnectionFailure(cmdCtx.Out, hub, err); reportErr != nil {
			return errors.Join(err, reportErr)
		}
		return fmt.Errorf("hubspot connection check failed: %w", err)
	}
	if err := writef(cmdCtx.Out, "OK: token can read deals from %s\n", hub.BaseURL); err != nil {
		return err
	}
	if err := reportAccount(ctx, cmdCtx.Out, client); err != nil {
		return err
	}
	return reportUsage(ctx, cmdCtx.Out, client)
}

// reportAccount prints the account details; a failed lookup is reported but does not fail the check.
func reportAccount(ctx context.Context, w io.Writer, client *hubspot.Client) error {
	account, err := client.AccountInfo(ctx)
	if err != nil {
		return writef(w, "account: unavailable (%s)\n", failureHint(err))
	}
	return writef(w, "account: portal %s, type %s, time zone %s, currency %s, hosting %s\n",
		account.PortalID,
		orUnknown(account.AccountType),
		orUnknown(account.TimeZone),
		orUnknown(account.CompanyCurrency),
		orUnknown(account.DataHostingLocation),
	)
}

// reportUsage prints the API quota; a failed lookup is reported but does not fail the check.
func reportUsage(ctx context.Context, w io.Writer, client *hubspot.Client) error {
	usage, err := client.APIUsage(ctx)
	if err != nil {
		return writef(w, "usage: unavailable (%s)\n", failureHint(err))
	}
	return writef(w, "usage: daily limit %s, daily remaining %s, burst %d per %s\n",
		optionalInt(usage.DailyLimit),
		optionalInt(usage.DailyRemaining),
		usage.IntervalLimit,
		usage.IntervalWindow,
	)
}

func optionalInt(n *int) string {
	if n == nil {
		return "unknown"
	}
	return strconv.Itoa(*n)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func reportConnectionFailure(w io.Writer, hub config.HubSpotConfig, err error) error {
	hint := failureHint(err)
	if apperrors.IsAuth(err) {
		hint += "; check it is valid and has the crm.objects.deals.read scope"
	}
	return writef(w, "FAILED: %s (%s)\n", hint, hub.BaseURL)
}

func failureHint(err error) string {
	switch {
	case apperrors.IsAuth(err):
		return "the token was rejected"
	case apperrors.IsRateLimited(err):
		return "the account is rate limited; retry later"
	case apperrors.IsTransient(err):
		return "HubSpot could not be reached"
	case apperrors.IsNotFound(err):
		return "not available for this account"
	default:
		return "unexpected response"
	}
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/om239903-ai/internship-project/internal/domain/model"
)

type startOptions struct {
	ScanID         string
	OrganizationID string
	Token          string
	Properties     string
	Associations   string
	Pipeline       string
	Stage          string
	BatchSize      int
	MaxPages       int
	Archived       bool
}

func parseStartFlags(args []string, getenv func(string) string) (startOptions, error) {
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts startOptions
	fs.StringVar(&opts.ScanID, "scan-id", "", "Caller-chosen scan identifier (required)")
	fs.StringVar(&opts.OrganizationID, "org", "", "Organization the scan runs for")
	fs.StringVar(&opts.Token, "token", "", "HubSpot access token (defaults to $"+accessTokenEnv+")")
	fs.StringVar(&opts.Properties, "properties", "", "Comma-separated deal properties to request")
	fs.StringVar(&opts.Associations, "associations", "", "Comma-separated association kinds to fetch")
	fs.StringVar(&opts.Pipeline, "pipeline", "", "Only keep deals in this pipeline")
	fs.StringVar(&opts.Stage, "stage", "", "Only keep deals in this stage")
	fs.IntVar(&opts.BatchSize, "batch-size", 0, "Deals per page (1-100)")
	fs.IntVar(&opts.MaxPages, "max-pages", 0, "Stop after this many pages")
	fs.BoolVar(&opts.Archived, "archived", false, "Include archived deals")

	if err := fs.Parse(args); err != nil {
		return startOptions{}, err
	}
	if strings.TrimSpace(opts.ScanID) == "" {
		return startOptions{}, errors.New("--scan-id is required")
	}
	if opts.Token == "" {
		opts.Token = getenv(accessTokenEnv)
	}
	if strings.TrimSpace(opts.Token) == "" {
		return startOptions{}, fmt.Errorf("an access token is required via --token or %s", accessTokenEnv)
	}
	return opts, nil
}

func (o startOptions) request() *model.StartScanRequest {
	req := &model.StartScanRequest{
		ScanID: o.ScanID,
		Config: model.ScanConfig{
			AccessToken:     o.Token,
			Properties:      splitList(o.Properties),
			IncludeArchived: o.Archived,
			Filters:         model.ScanFilters{Pipeline: o.Pipeline, Stage: o.Stage},
			BatchSize:       o.BatchSize,
			MaxPages:        o.MaxPages,
		},
	}
	if kinds := splitList(o.Associations); len(kinds) > 0 {
		req.Config.IncludeAssociations = true
		req.Config.AssociationTypes = kinds
	}
	if o.OrganizationID != "" {
		org := o.OrganizationID
		req.OrganizationID = &org
	}
	return req
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func runStartScan(cmdCtx *commandContext, args []string) error {
	opts, err := parseStartFlags(args, os.Getenv)
	if err != nil {
		return err
	}
	return withRuntime(cmdCtx, func(ctx context.Context, rt *adminRuntime) error {
		job, err := rt.services.Scans.Start(ctx, opts.request())
		if err != nil {
			return fmt.Errorf("start scan: %w", err)
		}
		return printScanViews(cmdCtx.Out, []model.ScanJobView{job.View()})
	})
}

func parseScanIDFlag(name string, args []string) (string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	scanID := fs.String("scan-id", "", "Scan identifier (required)")
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if strings.TrimSpace(*scanID) == "" {
		return "", errors.New("--scan-id is required")
	}
	return *scanID, nil
}

func runScanStatus(cmdCtx *commandContext, args []string) error {
	scanID, err := parseScanIDFlag("status", args)
	if err != nil {
		return err
	}
	return withRuntime(cmdCtx, func(ctx context.Context, rt *adminRuntime) error {
		return printScanViews(cmdCtx.Out, []model.ScanJobView{rt.services.Scans.Status(ctx, scanID)})
	})
}

func runCancelScan(cmdCtx *commandContext, args []string) error {
	scanID, err := parseScanIDFlag("cancel", args)
	if err != nil {
		return err
	}
	return withRuntime(cmdCtx, func(ctx context.Context, rt *adminRuntime) error {
		job, err := rt.services.Scans.Cancel(ctx, scanID)
		if err != nil {
			return fmt.Errorf("cancel scan: %w", err)
		}
		return printScanViews(cmdCtx.Out, []model.ScanJobView{job.View()})
	})
}

type listOptions struct {
	Status string
	Limit  int
	Offset int
}

func parseListFlags(args []string) (model.ScanListOptions, error) {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts listOptions
	fs.StringVar(&opts.Status, "status", "", "Filter by status")
	fs.IntVar(&opts.Limit, "limit", 20, "Maximum rows")
	fs.IntVar(&opts.Offset, "offset", 0, "Rows to skip")
	if err := fs.Parse(args); err != nil {
		return model.ScanListOptions{}, err
	}

	out := model.ScanListOptions{Limit: opts.Limit, Offset: opts.Offset}
	if opts.Status != "" {
		status := model.ScanStatus(opts.Status)
		if !status.Valid() {
			return model.ScanListOptions{}, fmt.Errorf("unknown status %q", opts.Status)
		}
		out.Status = &status
	}
	return out, nil
}

func runListScans(cmdCtx *commandContext, args []string) error {
	opts, err := parseListFlags(args)
	if err != nil {
		return err
	}
	return withRuntime(cmdCtx, func(ctx context.Context, rt *adminRuntime) error {
		views, err := rt.services.Scans.List(ctx, opts)
		if err != nil {
			return fmt.Errorf("list scans: %w", err)
		}
		return printScanViews(cmdCtx.Out, views)
	})
}

func printScanViews(w io.Writer, views []model.ScanJobView) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if err := writeln(tw, "SCAN\tSTATUS\tPROCESSED\tFAILED\tTOTAL\tPAGES\tSTARTED\tERROR"); err != nil {
		return fmt.Errorf("write scan header row: %w", err)
	}
	for _, v := range views {
		errMsg := "-"
		if v.ErrorMessage != nil && *v.ErrorMessage != "" {
			errMsg = *v.ErrorMessage
		}
		status := string(v.Status)
		if v.CancelRequested && !v.Status.IsTerminal() {
			status += " (cancelling)"
		}
		if err := writef(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
			v.ScanID, status, v.ProcessedItems, v.FailedItems, v.TotalItems, v.PagesProcessed,
			formatTime(v.StartedAt), errMsg,
		); err != nil {
			return fmt.Errorf("write scan row %q: %w", v.ScanID, err)
		}
	}
	return tw.Flush()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

type resultsOptions struct {
	ScanID   string
	Stage    string
	Pipeline string
	Page     int
	PageSize int
	RawJSON  bool
}

func parseResultsFlags(args []string) (resultsOptions, error) {
	fs := flag.NewFlagSet("results", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts resultsOptions
	fs.StringVar(&opts.ScanID, "scan-id", "", "Scan identifier (required)")
	fs.StringVar(&opts.Stage, "stage", "", "Filter by deal stage")
	fs.StringVar(&opts.Pipeline, "pipeline", "", "Filter by pipeline")
	fs.IntVar(&opts.Page, "page", 1, "Page number")
	fs.IntVar(&opts.PageSize, "page-size", 50, "Rows per page")
	fs.BoolVar(&opts.RawJSON, "json", false, "Print the raw JSON page")
	if err := fs.Parse(args); err != nil {
		return resultsOptions{}, err
	}
	if strings.TrimSpace(opts.ScanID) == "" {
		return resultsOptions{}, errors.New("--scan-id is required")
	}
	return opts, nil
}

func runScanResults(cmdCtx *commandContext, args []string) error {
	opts, err := parseResultsFlags(args)
	if err != nil {
		return err
	}
	return withRuntime(cmdCtx, func(ctx context.Context, rt *adminRuntime) error {
		page, err := rt.services.Scans.Results(ctx, opts.ScanID, model.DealResultQuery{
			Stage:    opts.Stage,
			Pipeline: opts.Pipeline,
			Page:     opts.Page,
			PageSize: opts.PageSize,
		})
		if err != nil {
			return fmt.Errorf("load results: %w", err)
		}
		if opts.RawJSON {
			enc := json.NewEncoder(cmdCtx.Out)
			enc.SetIndent("", "  ")
			return enc.Encode(page)
		}
		return printResultsPage(cmdCtx.Out, page)
	})
}

func printResultsPage(w io.Writer, page *model.DealResultPage) error {
	if err := writef(w, "Scan %s: %s, %d results (page %d, %d per page)\n\n",
		page.Job.ScanID, page.Job.Status, page.Total, page.Page, page.PageSize); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if err := writeln(tw, "DEAL\tNAME\tAMOUNT\tSTAGE\tPIPELINE\tCLOSE DATE"); err != nil {
		return fmt.Errorf("write results header row: %w", err)
	}
	for _, r := range page.Results {
		amount := "-"
		if r.Amount.Valid {
			amount = r.Amount.Decimal.String()
			if r.Currency != nil {
				amount += " " + *r.Currency
			}
		}
		if err := writef(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.DealID, orDash(r.Name), amount, orDash(r.Stage), orDash(r.PipelineID), formatTime(r.CloseDate),
		); err != nil {
			return fmt.Errorf("write result row %q: %w", r.DealID, err)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if page.HasMore {
		return writef(w, "\nmore results available: --page %d\n", page.Page+1)
	}
	return nil
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

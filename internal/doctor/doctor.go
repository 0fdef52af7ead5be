// Package doctor provides health checks for a dbsync deployment.
//
// The doctor command validates that a database can be synced from its
// changelog by checking the changelog file, its version control history, the
// version record in the database and the pending sync plan.
//
// Example usage:
//
//	d := doctor.New(db, client, file, runner)
//	report, err := d.Run(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//	report.Print(os.Stdout, true) // verbose=true
package doctor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pthm/dbsync"
	"github.com/pthm/dbsync/pkg/migrator"
	"github.com/pthm/dbsync/pkg/store"
	"github.com/pthm/dbsync/pkg/vcs"
)

// Status represents the result of a health check.
type Status int

const (
	// StatusPass indicates the check passed.
	StatusPass Status = iota
	// StatusWarn indicates a non-critical issue.
	StatusWarn
	// StatusFail indicates a critical issue that will cause failures.
	StatusFail
)

func (s Status) String() string {
	switch s {
	case StatusPass:
		return "pass"
	case StatusWarn:
		return "warn"
	case StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Symbol returns a status indicator symbol for terminal output.
func (s Status) Symbol() string {
	switch s {
	case StatusPass:
		return "✓"
	case StatusWarn:
		return "⚠"
	case StatusFail:
		return "✗"
	default:
		return "?"
	}
}

// CheckResult represents the outcome of a single health check.
type CheckResult struct {
	// Category groups related checks (e.g., "Changelog File", "Version Record").
	Category string

	// Name is a short identifier for the check.
	Name string

	// Status is the check outcome.
	Status Status

	// Message is a human-readable description of the result.
	Message string

	// Details provides additional information for verbose output.
	Details string

	// FixHint suggests how to resolve issues.
	FixHint string
}

// Report contains all health check results.
type Report struct {
	Checks []CheckResult

	// Summary counts.
	Passed   int
	Warnings int
	Errors   int
}

// AddCheck adds a check result and updates summary counts.
func (r *Report) AddCheck(check CheckResult) {
	r.Checks = append(r.Checks, check)
	switch check.Status {
	case StatusPass:
		r.Passed++
	case StatusWarn:
		r.Warnings++
	case StatusFail:
		r.Errors++
	}
}

// Print writes the report to the given writer.
func (r *Report) Print(w io.Writer, verbose bool) {
	// Group checks by category
	categories := make(map[string][]CheckResult)
	var categoryOrder []string
	for _, check := range r.Checks {
		if _, exists := categories[check.Category]; !exists {
			categoryOrder = append(categoryOrder, check.Category)
		}
		categories[check.Category] = append(categories[check.Category], check)
	}

	// Print each category
	for _, cat := range categoryOrder {
		_, _ = fmt.Fprintf(w, "\n%s\n", cat)
		for _, check := range categories[cat] {
			_, _ = fmt.Fprintf(w, "  %s %s\n", check.Status.Symbol(), check.Message)
			if verbose && check.Details != "" {
				// Indent details
				for _, line := range strings.Split(check.Details, "\n") {
					_, _ = fmt.Fprintf(w, "      %s\n", line)
				}
			}
			if check.Status != StatusPass && check.FixHint != "" {
				_, _ = fmt.Fprintf(w, "      Fix: %s\n", check.FixHint)
			}
		}
	}

	// Print summary
	_, _ = fmt.Fprintf(w, "\nSummary: %d passed, %d warnings, %d errors\n",
		r.Passed, r.Warnings, r.Errors)
}

// HasErrors returns true if any check failed.
func (r *Report) HasErrors() bool {
	return r.Errors > 0
}

// Doctor performs health checks on a changelog and its target database.
type Doctor struct {
	db     store.DB
	client vcs.Client
	file   vcs.File
	runner *migrator.Runner

	configPath  string
	configError error
	hasConfig   bool
	connectErr  error

	// Cached data from checks (populated during Run)
	latest     vcs.Revision
	current    int64
	hasVersion bool
}

// New creates a new Doctor instance.
func New(db store.DB, client vcs.Client, file vcs.File, runner *migrator.Runner) *Doctor {
	return &Doctor{
		db:     db,
		client: client,
		file:   file,
		runner: runner,
		latest: vcs.Unknown,
	}
}

// WithConfig adds a configuration check for the file at path (empty when
// none was found) and the error loading or validating it.
func (d *Doctor) WithConfig(path string, err error) *Doctor {
	d.configPath = path
	d.configError = err
	d.hasConfig = true
	return d
}

// WithConnectError records why no database is available, for use with a nil
// db.
func (d *Doctor) WithConnectError(err error) *Doctor {
	d.connectErr = err
	return d
}

// Run executes all health checks and returns a report. Problems found are
// reported as failed checks; the error is only set when ctx is done.
func (d *Doctor) Run(ctx context.Context) (*Report, error) {
	report := &Report{}

	if d.hasConfig {
		d.checkConfiguration(report)
	}
	d.checkChangelogFile(report)
	d.checkVersionControl(ctx, report)
	d.checkVersionRecord(ctx, report)
	d.checkSyncPlan(ctx, report)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return report, nil
}

func (d *Doctor) localPath() string {
	if d.file.Root == "" {
		return d.file.Path
	}
	return filepath.Join(d.file.Root, d.file.Path)
}

func (d *Doctor) checkConfiguration(report *Report) {
	switch {
	case d.configError != nil:
		report.AddCheck(CheckResult{
			Category: "Configuration",
			Name:     "valid",
			Status:   StatusFail,
			Message:  "Configuration is invalid",
			Details:  d.configError.Error(),
			FixHint:  "Run 'dbsync config show --source' to inspect the effective settings",
		})
	case d.configPath == "":
		report.AddCheck(CheckResult{
			Category: "Configuration",
			Name:     "valid",
			Status:   StatusWarn,
			Message:  "No dbsync.yaml found, using defaults and environment",
		})
	default:
		report.AddCheck(CheckResult{
			Category: "Configuration",
			Name:     "valid",
			Status:   StatusPass,
			Message:  fmt.Sprintf("Loaded %s", d.configPath),
		})
	}
}

// checkChangelogFile validates the working copy of the changelog.
func (d *Doctor) checkChangelogFile(report *Report) {
	path := d.localPath()

	content, err := os.ReadFile(path)
	if err != nil {
		report.AddCheck(CheckResult{
			Category: "Changelog File",
			Name:     "exists",
			Status:   StatusFail,
			Message:  fmt.Sprintf("Changelog not found at %s", path),
			Details:  err.Error(),
			FixHint:  "Set changelog.path or pass --changelog",
		})
		return
	}

	report.AddCheck(CheckResult{
		Category: "Changelog File",
		Name:     "exists",
		Status:   StatusPass,
		Message:  fmt.Sprintf("Changelog exists at %s (%d bytes)", path, len(content)),
	})

	if len(content) > 0 && !strings.HasSuffix(string(content), "\n") {
		report.AddCheck(CheckResult{
			Category: "Changelog File",
			Name:     "trailing_newline",
			Status:   StatusWarn,
			Message:  "Changelog does not end with a newline",
			Details:  "Statements appended after the last line will be merged into it",
			FixHint:  "Add a blank line at the end of the file and commit it",
		})
		return
	}

	report.AddCheck(CheckResult{
		Category: "Changelog File",
		Name:     "trailing_newline",
		Status:   StatusPass,
		Message:  "Changelog ends with a newline",
	})
}

// checkVersionControl validates that the history of the changelog can be read.
func (d *Doctor) checkVersionControl(ctx context.Context, report *Report) {
	latest, err := d.client.LatestRevision(ctx, d.file)
	if err != nil {
		report.AddCheck(CheckResult{
			Category: "Version Control",
			Name:     "latest_revision",
			Status:   StatusFail,
			Message:  "Cannot read the changelog history",
			Details:  err.Error(),
			FixHint:  "Check vcs.kind and that the changelog is inside a working copy",
		})
		return
	}

	if latest < 0 {
		report.AddCheck(CheckResult{
			Category: "Version Control",
			Name:     "latest_revision",
			Status:   StatusFail,
			Message:  "Changelog has no committed revision",
			FixHint:  "Commit the changelog file",
		})
		return
	}

	d.latest = latest
	report.AddCheck(CheckResult{
		Category: "Version Control",
		Name:     "latest_revision",
		Status:   StatusPass,
		Message:  fmt.Sprintf("Latest changelog revision is %d", latest),
	})
}

// checkVersionRecord validates the version row in the database.
func (d *Doctor) checkVersionRecord(ctx context.Context, report *Report) {
	if d.db == nil && d.connectErr != nil {
		report.AddCheck(CheckResult{
			Category: "Version Record",
			Name:     "readable",
			Status:   StatusFail,
			Message:  "Cannot connect to the database",
			Details:  d.connectErr.Error(),
			FixHint:  "Check database.url, database.user and database.password",
		})
		return
	}
	if d.db == nil {
		report.AddCheck(CheckResult{
			Category: "Version Record",
			Name:     "readable",
			Status:   StatusWarn,
			Message:  "No database configured",
			FixHint:  "Set database.url or pass --db",
		})
		return
	}

	current, err := d.runner.Store().Get(ctx, d.db)
	switch {
	case dbsync.IsVersionNotFoundErr(err):
		report.AddCheck(CheckResult{
			Category: "Version Record",
			Name:     "readable",
			Status:   StatusFail,
			Message:  "Version record not found",
			Details:  err.Error(),
			FixHint:  "Run 'dbsync init' to create it",
		})
		return
	case err != nil:
		report.AddCheck(CheckResult{
			Category: "Version Record",
			Name:     "readable",
			Status:   StatusFail,
			Message:  "Cannot read the version record",
			Details:  err.Error(),
			FixHint:  "Check the version.* settings and database permissions",
		})
		return
	}

	d.current = current
	d.hasVersion = true
	report.AddCheck(CheckResult{
		Category: "Version Record",
		Name:     "readable",
		Status:   StatusPass,
		Message:  fmt.Sprintf("Database is at revision %d", current),
	})
}

// checkSyncPlan validates that the pending work can be planned.
func (d *Doctor) checkSyncPlan(ctx context.Context, report *Report) {
	if !d.hasVersion || d.latest < 0 {
		return
	}

	st, err := d.runner.Status(ctx, d.db, d.file)
	if err != nil {
		check := CheckResult{
			Category: "Sync Plan",
			Name:     "computable",
			Status:   StatusFail,
			Message:  "Cannot plan the sync",
			Details:  err.Error(),
		}
		switch {
		case errors.Is(err, dbsync.ErrVersionAhead):
			check.Message = fmt.Sprintf("Database revision %d is ahead of the changelog (%d)", d.current, d.latest)
			check.FixHint = "Check that the changelog belongs to this database"
		case dbsync.IsTrailingNewlineMissingErr(err):
			check.FixHint = "Commit a blank line at the end of the changelog"
		case dbsync.IsRevisionUnavailableErr(err):
			check.FixHint = "Check that the recorded revision exists in the changelog history"
		}
		report.AddCheck(check)
		return
	}

	if !st.Pending() {
		report.AddCheck(CheckResult{
			Category: "Sync Plan",
			Name:     "computable",
			Status:   StatusPass,
			Message:  "Database is up to date",
		})
		return
	}

	report.AddCheck(CheckResult{
		Category: "Sync Plan",
		Name:     "computable",
		Status:   StatusWarn,
		Message:  fmt.Sprintf("%d block(s) pending (%d -> %d)", len(st.Plan.Blocks), st.Current, st.Latest),
		Details:  describePlan(st),
		FixHint:  "Run 'dbsync sync' to apply them",
	})
}

func describePlan(st migrator.Status) string {
	var lines []string
	for _, b := range st.Plan.Boundaries {
		lines = append(lines, "header rewrite "+b.String())
	}
	for _, b := range st.Plan.Blocks {
		lines = append(lines, fmt.Sprintf("%s (%d bytes)", b, len(b.SQL)))
	}
	return strings.Join(lines, "\n")
}

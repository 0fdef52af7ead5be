package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/pthm/dbsync/internal/cli"
)

// Positional arguments of the legacy invocation.
const (
	legacySkip = iota
	legacyDBURL
	legacyDBUser
	legacyDBPassword
	legacyChangelog
	legacyArgCount
)

// isLegacyInvocation reports whether args use the positional form: the first
// argument is neither a flag nor a subcommand.
func isLegacyInvocation(args []string) bool {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return false
	}
	for _, c := range rootCmd.Commands() {
		if c.Name() == args[0] || c.HasAlias(args[0]) {
			return false
		}
	}
	return args[0] != "help" && args[0] != "completion"
}

// runLegacy runs the positional form. A skip flag of "true" does nothing, and
// so do malformed arguments: any other argument count than five, an empty URL
// or changelog path, or settings that fail validation. Failures of the run
// itself (connecting, planning, applying) are returned.
func runLegacy(args []string) error {
	if args[legacySkip] == "true" {
		fmt.Println("dbsync skipped")
		return nil
	}
	if len(args) != legacyArgCount {
		fmt.Fprintln(os.Stderr, legacyUsage)
		return nil
	}
	if err := validateLegacy(args); err != nil {
		fmt.Fprintf(os.Stderr, "dbsync: %v, nothing done\n%s\n", err, legacyUsage)
		return nil
	}

	if err := loadConfig(); err != nil {
		return err
	}
	cfg.Database.URL = args[legacyDBURL]
	cfg.Database.User = args[legacyDBUser]
	cfg.Database.Password = args[legacyDBPassword]

	if !quiet {
		fmt.Printf("Updating %s\n", cfg.Redacted().Database.URL)
	}
	err := runSync(context.Background(), syncOptions{changelog: args[legacyChangelog]})

	var exitErr *cli.ExitError
	if errors.As(err, &exitErr) && exitErr.Code == cli.ExitConfig {
		fmt.Fprintf(os.Stderr, "dbsync: %v, nothing done\n", err)
		return nil
	}
	return err
}

const legacyUsage = "usage: dbsync <skip> <db-url> <db-user> <db-password> <changelog-path>"

// validateLegacy checks the positional arguments before anything is loaded.
func validateLegacy(args []string) error {
	raw := strings.TrimPrefix(args[legacyDBURL], "jdbc:")
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("database URL is empty")
	}
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid database URL: %w", err)
		}
		if u.Host == "" && u.Scheme != "sqlite" {
			return fmt.Errorf("database URL %q has no host", u.Redacted())
		}
	} else if !strings.Contains(raw, "=") && !strings.Contains(raw, "@tcp(") && !strings.HasPrefix(raw, "file:") {
		return fmt.Errorf("database URL %q is neither a URL nor a keyword/value string", raw)
	}
	if strings.TrimSpace(args[legacyChangelog]) == "" {
		return fmt.Errorf("changelog path is empty")
	}
	return nil
}

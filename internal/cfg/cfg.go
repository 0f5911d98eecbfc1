package cfg

import (
	"errors"
	"flag"
	"fmt"

	"github.com/linnemanlabs/aftercare/internal/authmw"
)

// Config adds app-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	DatabaseURL           string
	SlackWebhookURL       string
	CatalogFile           string
	CatalogWatch          bool
	APITokens             string
	PlanBatchLimit        int
	DBLogMinMillis        int
	DBLogArgs             bool
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory store)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for red triage notifications")
	fs.StringVar(&c.CatalogFile, "catalog-file", "", "YAML file with form schedules and triage rules")
	fs.BoolVar(&c.CatalogWatch, "catalog-watch", true, "reload the catalog file when it changes on disk")
	fs.StringVar(&c.APITokens, "api-tokens", "", "bearer tokens for /api as name=secret pairs, comma separated (empty = no auth)")
	fs.IntVar(&c.PlanBatchLimit, "plan-batch-limit", 100, "maximum requests per batch planning call (1..1000)")
	fs.IntVar(&c.DBLogMinMillis, "db-log-min-ms", 100, "log database queries slower than this many milliseconds (0 = all, max 60000)")
	fs.BoolVar(&c.DBLogArgs, "db-log-args", false, "include query arguments in database query logs (may contain patient answers)")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	// Forms and rules come from the catalog, nothing can be triaged without it
	if c.CatalogFile == "" {
		errs = append(errs, errors.New("CATALOG_FILE is required"))
	}

	if c.PlanBatchLimit <= 0 || c.PlanBatchLimit > 1000 {
		errs = append(errs, fmt.Errorf("invalid PLAN_BATCH_LIMIT %d (must be 1..1000)", c.PlanBatchLimit))
	}

	if c.DBLogMinMillis < 0 || c.DBLogMinMillis > 60000 {
		errs = append(errs, fmt.Errorf("invalid DB_LOG_MIN_MS %d (must be 0..60000)", c.DBLogMinMillis))
	}

	if c.APITokens != "" {
		tokens, err := authmw.ParseTokens(c.APITokens)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("invalid API_TOKENS: %w", err))
		case len(tokens) == 0:
			errs = append(errs, errors.New("invalid API_TOKENS: no tokens found"))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Tokens parses APITokens. It returns nil when authentication is disabled.
func (c *Config) Tokens() ([]authmw.Token, error) {
	if c.APITokens == "" {
		return nil, nil
	}
	return authmw.ParseTokens(c.APITokens)
}

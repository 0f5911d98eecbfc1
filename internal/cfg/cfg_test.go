package cfg

import (
	"flag"
	"math"
	"strings"
	"testing"
)

// validBase returns a Config with all required fields set to valid values.
func validBase() Config {
	return Config{
		DrainSeconds:          60,
		ShutdownBudgetSeconds: 90,
		APIPort:               8080,
		CatalogFile:           "/etc/aftercare/catalog.yaml",
		PlanBatchLimit:        100,
		DBLogMinMillis:        100,
	}
}

func TestRegisterFlags_Defaults(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	if err := fs.Parse(nil); err != nil {
		t.Fatalf("parse empty args: %v", err)
	}

	if c.DrainSeconds != 60 {
		t.Errorf("DrainSeconds = %d, want 60", c.DrainSeconds)
	}
	if c.ShutdownBudgetSeconds != 90 {
		t.Errorf("ShutdownBudgetSeconds = %d, want 90", c.ShutdownBudgetSeconds)
	}
	if c.APIPort != 8080 {
		t.Errorf("APIPort = %d, want 8080", c.APIPort)
	}
	if !c.CatalogWatch {
		t.Error("CatalogWatch = false, want true")
	}
	if c.PlanBatchLimit != 100 {
		t.Errorf("PlanBatchLimit = %d, want 100", c.PlanBatchLimit)
	}
	if c.DBLogMinMillis != 100 {
		t.Errorf("DBLogMinMillis = %d, want 100", c.DBLogMinMillis)
	}
	if c.DBLogArgs {
		t.Error("DBLogArgs = true, want false")
	}
}

func TestRegisterFlags_Override(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	args := []string{
		"-drain-seconds", "30",
		"-shutdown-budget-seconds", "120",
		"-http-port", "9090",
		"-catalog-file", "/tmp/forms.yaml",
		"-catalog-watch=false",
		"-api-tokens", "portal=abc",
		"-plan-batch-limit", "10",
		"-db-log-min-ms", "0",
		"-db-log-args",
	}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse args: %v", err)
	}

	if c.DrainSeconds != 30 {
		t.Errorf("DrainSeconds = %d, want 30", c.DrainSeconds)
	}
	if c.ShutdownBudgetSeconds != 120 {
		t.Errorf("ShutdownBudgetSeconds = %d, want 120", c.ShutdownBudgetSeconds)
	}
	if c.APIPort != 9090 {
		t.Errorf("APIPort = %d, want 9090", c.APIPort)
	}
	if c.CatalogFile != "/tmp/forms.yaml" {
		t.Errorf("CatalogFile = %q, want %q", c.CatalogFile, "/tmp/forms.yaml")
	}
	if c.CatalogWatch {
		t.Error("CatalogWatch = true, want false")
	}
	if c.APITokens != "portal=abc" {
		t.Errorf("APITokens = %q, want %q", c.APITokens, "portal=abc")
	}
	if c.PlanBatchLimit != 10 {
		t.Errorf("PlanBatchLimit = %d, want 10", c.PlanBatchLimit)
	}
	if c.DBLogMinMillis != 0 {
		t.Errorf("DBLogMinMillis = %d, want 0", c.DBLogMinMillis)
	}
	if !c.DBLogArgs {
		t.Error("DBLogArgs = false, want true")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	with := func(fn func(c *Config)) Config {
		c := validBase()
		fn(&c)
		return c
	}

	tests := []struct {
		name      string
		cfg       Config
		wantErr   bool
		errSubstr []string // substrings that must appear in error message
	}{
		{
			name:    "defaults are valid",
			cfg:     validBase(),
			wantErr: false,
		},
		{
			name: "minimum valid values",
			cfg: Config{
				DrainSeconds: 1, ShutdownBudgetSeconds: 2, APIPort: 1,
				CatalogFile: "c.yaml", PlanBatchLimit: 1, DBLogMinMillis: 0,
			},
			wantErr: false,
		},
		{
			name: "maximum valid values",
			cfg: Config{
				DrainSeconds: 299, ShutdownBudgetSeconds: 300, APIPort: 65535,
				CatalogFile: "c.yaml", PlanBatchLimit: 1000, DBLogMinMillis: 60000,
			},
			wantErr: false,
		},
		// DrainSeconds boundaries
		{
			name:      "drain zero",
			cfg:       with(func(c *Config) { c.DrainSeconds = 0 }),
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS"},
		},
		{
			name:      "drain negative",
			cfg:       with(func(c *Config) { c.DrainSeconds = -1 }),
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS"},
		},
		{
			name:      "drain above max",
			cfg:       with(func(c *Config) { c.DrainSeconds, c.ShutdownBudgetSeconds = 301, 302 }),
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS"},
		},
		{
			name:    "drain at upper bound",
			cfg:     with(func(c *Config) { c.DrainSeconds, c.ShutdownBudgetSeconds = 300, 300 }),
			wantErr: true, // budget must be greater than drain
		},
		// ShutdownBudgetSeconds boundaries
		{
			name:      "budget zero",
			cfg:       with(func(c *Config) { c.ShutdownBudgetSeconds = 0 }),
			wantErr:   true,
			errSubstr: []string{"SHUTDOWN_BUDGET_SECONDS"},
		},
		{
			name:      "budget above max",
			cfg:       with(func(c *Config) { c.ShutdownBudgetSeconds = 301 }),
			wantErr:   true,
			errSubstr: []string{"SHUTDOWN_BUDGET_SECONDS"},
		},
		// Cross-field: budget vs drain
		{
			name:      "budget equals drain",
			cfg:       with(func(c *Config) { c.ShutdownBudgetSeconds = 60 }),
			wantErr:   true,
			errSubstr: []string{"must be greater than"},
		},
		{
			name:    "budget is drain plus one",
			cfg:     with(func(c *Config) { c.ShutdownBudgetSeconds = 61 }),
			wantErr: false,
		},
		// APIPort boundaries
		{
			name:      "port zero",
			cfg:       with(func(c *Config) { c.APIPort = 0 }),
			wantErr:   true,
			errSubstr: []string{"HTTP_PORT"},
		},
		{
			name:      "port above max",
			cfg:       with(func(c *Config) { c.APIPort = 65536 }),
			wantErr:   true,
			errSubstr: []string{"HTTP_PORT"},
		},
		// App fields
		{
			name:      "missing catalog",
			cfg:       with(func(c *Config) { c.CatalogFile = "" }),
			wantErr:   true,
			errSubstr: []string{"CATALOG_FILE"},
		},
		{
			name:      "batch limit zero",
			cfg:       with(func(c *Config) { c.PlanBatchLimit = 0 }),
			wantErr:   true,
			errSubstr: []string{"PLAN_BATCH_LIMIT"},
		},
		{
			name:      "batch limit above max",
			cfg:       with(func(c *Config) { c.PlanBatchLimit = 1001 }),
			wantErr:   true,
			errSubstr: []string{"PLAN_BATCH_LIMIT"},
		},
		{
			name:      "db log threshold negative",
			cfg:       with(func(c *Config) { c.DBLogMinMillis = -1 }),
			wantErr:   true,
			errSubstr: []string{"DB_LOG_MIN_MS"},
		},
		{
			name:    "named tokens",
			cfg:     with(func(c *Config) { c.APITokens = "portal=abc, nurses=def" }),
			wantErr: false,
		},
		{
			name:      "duplicate token names",
			cfg:       with(func(c *Config) { c.APITokens = "portal=abc,portal=def" }),
			wantErr:   true,
			errSubstr: []string{"API_TOKENS", "duplicate"},
		},
		{
			name:      "token without secret",
			cfg:       with(func(c *Config) { c.APITokens = "portal=" }),
			wantErr:   true,
			errSubstr: []string{"API_TOKENS"},
		},
		{
			name:      "only separators",
			cfg:       with(func(c *Config) { c.APITokens = " , ," }),
			wantErr:   true,
			errSubstr: []string{"no tokens"},
		},
		// Error accumulation: all fields invalid
		{
			name:      "all fields invalid",
			cfg:       Config{DrainSeconds: 0, ShutdownBudgetSeconds: 0, APIPort: 0, DBLogMinMillis: -5},
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS", "SHUTDOWN_BUDGET_SECONDS", "HTTP_PORT", "CATALOG_FILE", "PLAN_BATCH_LIMIT", "DB_LOG_MIN_MS"},
		},
		// Extreme values
		{
			name:      "extreme negative values",
			cfg:       Config{DrainSeconds: math.MinInt32, ShutdownBudgetSeconds: math.MinInt32, APIPort: math.MinInt32},
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS", "SHUTDOWN_BUDGET_SECONDS", "HTTP_PORT"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				errMsg := err.Error()
				for _, sub := range tt.errSubstr {
					if !strings.Contains(errMsg, sub) {
						t.Errorf("error %q does not contain %q", errMsg, sub)
					}
				}
			}
		})
	}
}

func TestTokens(t *testing.T) {
	t.Parallel()

	c := validBase()
	tokens, err := c.Tokens()
	if err != nil || tokens != nil {
		t.Fatalf("Tokens() = %v, %v; want nil, nil when unset", tokens, err)
	}

	c.APITokens = "portal=abc,legacy"
	tokens, err = c.Tokens()
	if err != nil {
		t.Fatalf("Tokens() error = %v", err)
	}
	if len(tokens) != 2 {
		t.Fatalf("Tokens() returned %d tokens, want 2", len(tokens))
	}
	if tokens[0].Name != "portal" || tokens[1].Name != "default" {
		t.Errorf("token names = %q, %q; want portal, default", tokens[0].Name, tokens[1].Name)
	}
}

func FuzzValidate(f *testing.F) {
	// Seeds: defaults, boundaries, extremes
	seeds := []struct {
		drain, budget, port, batch, logMs int
		catalog                           string
	}{
		{60, 90, 8080, 100, 100, "catalog.yaml"},
		{1, 2, 1, 1, 0, "c"},
		{299, 300, 65535, 1000, 60000, "c"},
		{0, 0, 0, 0, 0, ""},
		{-1, -1, -1, -1, -1, ""},
		{300, 300, 65535, 100, 100, "c"},
		{301, 302, 65536, 1001, 60001, ""},
		{150, 100, 8080, 100, 100, "c"},
		{math.MinInt32, math.MinInt32, math.MinInt32, math.MinInt32, math.MinInt32, ""},
		{math.MaxInt32, math.MaxInt32, math.MaxInt32, math.MaxInt32, math.MaxInt32, ""},
	}
	for _, s := range seeds {
		f.Add(s.drain, s.budget, s.port, s.batch, s.logMs, s.catalog)
	}

	f.Fuzz(func(t *testing.T, drain, budget, port, batch, logMs int, catalog string) {
		c := Config{
			DrainSeconds:          drain,
			ShutdownBudgetSeconds: budget,
			APIPort:               port,
			CatalogFile:           catalog,
			PlanBatchLimit:        batch,
			DBLogMinMillis:        logMs,
		}
		err := c.Validate()

		drainOK := drain >= 1 && drain <= 300
		budgetOK := budget >= 1 && budget <= 300
		portOK := port >= 1 && port <= 65535
		crossOK := budget > drain
		catalogOK := catalog != ""
		batchOK := batch >= 1 && batch <= 1000
		logOK := logMs >= 0 && logMs <= 60000

		allValid := drainOK && budgetOK && portOK && crossOK && catalogOK && batchOK && logOK

		if allValid && err != nil {
			t.Errorf("expected no error for valid config %+v, got: %v", c, err)
		}
		if !allValid && err == nil {
			t.Errorf("expected error for invalid config %+v, got nil", c)
		}
	})
}

// Package catalog loads the clinic's form catalog: per-form follow-up schedules
// and triage rules, authored as YAML and swapped atomically on reload.
package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/aftercare/internal/followup"
	"github.com/linnemanlabs/aftercare/internal/triage"
)

// ErrInvalidCatalog is returned when a catalog file cannot be used.
var ErrInvalidCatalog = errors.New("invalid catalog")

// Form is one check-in form as authored in the catalog.
type Form struct {
	ID       string           `yaml:"id" json:"id"`
	Title    string           `yaml:"title" json:"title,omitempty"`
	Schedule *followup.Config `yaml:"schedule" json:"schedule,omitempty"`
	Rules    []triage.Rule    `yaml:"rules" json:"rules"`
}

type document struct {
	Forms []Form `yaml:"forms"`
}

// Snapshot is an immutable, validated view of the catalog.
type Snapshot struct {
	forms     map[string]*Form
	order     []string
	malformed int
	loadedAt  time.Time
}

// Len returns the number of forms.
func (s *Snapshot) Len() int { return len(s.order) }

// MalformedRules returns how many rules the engine will skip for missing field or operator.
func (s *Snapshot) MalformedRules() int { return s.malformed }

// LoadedAt returns when the snapshot was parsed.
func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }

// Parse decodes and validates a catalog document.
//
// Schedules must validate and form IDs must be unique. Rule operators are
// normalized to their canonical form. Rules missing a field or with an unknown
// operator are kept and counted: evaluation skips them.
func Parse(r io.Reader) (*Snapshot, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidCatalog)
		}
		return nil, fmt.Errorf("%w: decode: %w", ErrInvalidCatalog, err)
	}

	snap := &Snapshot{
		forms:    make(map[string]*Form, len(doc.Forms)),
		order:    make([]string, 0, len(doc.Forms)),
		loadedAt: time.Now(),
	}

	var errs []error
	for i := range doc.Forms {
		f := doc.Forms[i]
		f.ID = strings.TrimSpace(f.ID)
		if f.ID == "" {
			errs = append(errs, fmt.Errorf("%w: forms[%d]: id is required", ErrInvalidCatalog, i))
			continue
		}
		if _, dup := snap.forms[f.ID]; dup {
			errs = append(errs, fmt.Errorf("%w: forms[%d]: duplicate id %q", ErrInvalidCatalog, i, f.ID))
			continue
		}
		if f.Schedule != nil {
			if err := f.Schedule.Validate(); err != nil {
				errs = append(errs, fmt.Errorf("form %q schedule: %w", f.ID, err))
				continue
			}
		}
		f.Rules = slices.Clone(f.Rules)
		for j := range f.Rules {
			if op, ok := triage.ParseOperator(string(f.Rules[j].Operator)); ok {
				f.Rules[j].Operator = op
			}
			if !f.Rules[j].Wellformed() {
				snap.malformed++
			}
		}
		if f.Rules == nil {
			f.Rules = []triage.Rule{}
		}
		snap.forms[f.ID] = &f
		snap.order = append(snap.order, f.ID)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return snap, nil
}

// LoadFile reads and parses the catalog at path.
func LoadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(bytes.NewReader(data))
}

// Catalog serves the current snapshot and reloads it from disk.
type Catalog struct {
	path    string
	logger  log.Logger
	metrics *Metrics
	snap    atomic.Pointer[Snapshot]
}

// New loads the catalog at path. A catalog that fails to load is a startup error.
func New(ctx context.Context, path string, logger log.Logger, metrics *Metrics) (*Catalog, error) {
	if logger == nil {
		logger = log.Nop()
	}
	c := &Catalog{path: path, logger: logger, metrics: metrics}
	if err := c.Reload(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// FromSnapshot wraps a parsed snapshot without a backing file. Reload is a no-op.
func FromSnapshot(s *Snapshot) *Catalog {
	c := &Catalog{logger: log.Nop()}
	c.snap.Store(s)
	return c
}

// Path returns the backing file, empty for in-memory catalogs.
func (c *Catalog) Path() string { return c.path }

// Reload re-reads the file. On failure the previous snapshot stays active.
func (c *Catalog) Reload(ctx context.Context) error {
	if c.path == "" {
		return nil
	}
	snap, err := LoadFile(c.path)
	if err != nil {
		c.observe(false, nil)
		c.logger.Error(ctx, err, "catalog reload failed, keeping previous snapshot", "path", c.path)
		return err
	}
	c.snap.Store(snap)
	c.observe(true, snap)
	if snap.malformed > 0 {
		c.logger.Warn(ctx, "catalog has malformed rules; they will never match", "path", c.path, "malformed_rules", snap.malformed)
	}
	c.logger.Info(ctx, "catalog loaded", "path", c.path, "forms", snap.Len())
	return nil
}

func (c *Catalog) observe(ok bool, snap *Snapshot) {
	if c.metrics == nil {
		return
	}
	if !ok {
		c.metrics.ReloadsTotal.WithLabelValues("error").Inc()
		return
	}
	c.metrics.ReloadsTotal.WithLabelValues("ok").Inc()
	c.metrics.Forms.Set(float64(snap.Len()))
	c.metrics.MalformedRules.Set(float64(snap.malformed))
	c.metrics.LastReload.SetToCurrentTime()
}

// Snapshot returns the active snapshot.
func (c *Catalog) Snapshot() *Snapshot {
	return c.snap.Load()
}

// Form returns a copy of the form with the given ID.
func (c *Catalog) Form(id string) (Form, bool) {
	s := c.snap.Load()
	if s == nil {
		return Form{}, false
	}
	f, ok := s.forms[id]
	if !ok {
		return Form{}, false
	}
	return f.clone(), true
}

func (f *Form) clone() Form {
	cp := *f
	cp.Rules = slices.Clone(f.Rules)
	if f.Schedule != nil {
		sched := *f.Schedule
		cp.Schedule = &sched
	}
	return cp
}

// Rules implements triage.RuleSource.
func (c *Catalog) Rules(formID string) ([]triage.Rule, bool) {
	f, ok := c.Form(formID)
	if !ok {
		return nil, false
	}
	return f.Rules, true
}

// Forms lists every form in file order, all from the same snapshot.
func (c *Catalog) Forms() []Form {
	s := c.snap.Load()
	if s == nil {
		return nil
	}
	out := make([]Form, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.forms[id].clone())
	}
	return out
}

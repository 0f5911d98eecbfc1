// Package pgstore provides a PostgreSQL implementation of triage.Store.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/aftercare/internal/triage"
)

var tracer = otel.Tracer("github.com/linnemanlabs/aftercare/internal/triage/pgstore")

//go:embed schema.sql
var schema string

// Store persists triage results in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema on pool and returns a ready Store. The caller owns the pool.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if pool == nil {
		return nil, errors.New("pgstore: nil pool")
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const resultColumns = `id, response_id, patient_id, form_id, severity, suggestions, matched_rules,
	rules_evaluated, dataset, notify_status, notify_error, submitted_at, created_at, notified_at`

func startSpan(ctx context.Context, name, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", op),
	))
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// Get retrieves a triage result by ID.
func (s *Store) Get(ctx context.Context, id string) (*triage.Result, bool, error) {
	ctx, span := startSpan(ctx, "pgstore.Get", "SELECT")
	defer span.End()

	r, err := scanResult(s.pool.QueryRow(ctx, `SELECT `+resultColumns+` FROM triage_results WHERE id = $1`, id))
	if err != nil {
		fail(span, err)
		return nil, false, err
	}
	return r, r != nil, nil
}

// GetByResponse retrieves the triage result for a response, for deduplication.
func (s *Store) GetByResponse(ctx context.Context, responseID string) (*triage.Result, bool, error) {
	ctx, span := startSpan(ctx, "pgstore.GetByResponse", "SELECT")
	defer span.End()

	r, err := scanResult(s.pool.QueryRow(ctx, `SELECT `+resultColumns+` FROM triage_results WHERE response_id = $1`, responseID))
	if err != nil {
		fail(span, err)
		return nil, false, err
	}
	return r, r != nil, nil
}

// ListByPatient returns up to limit results for a patient, newest first.
func (s *Store) ListByPatient(ctx context.Context, patientID string, limit int) ([]*triage.Result, error) {
	ctx, span := startSpan(ctx, "pgstore.ListByPatient", "SELECT")
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT `+resultColumns+` FROM triage_results
		 WHERE patient_id = $1
		 ORDER BY created_at DESC, submitted_at DESC
		 LIMIT $2`,
		patientID, limit,
	)
	if err != nil {
		fail(span, err)
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	out := make([]*triage.Result, 0)
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			fail(span, err)
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		fail(span, err)
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	span.SetAttributes(attribute.Int("db.response.returned_rows", len(out)))
	return out, nil
}

// Put inserts or updates a triage result.
func (s *Store) Put(ctx context.Context, r *triage.Result) error {
	ctx, span := startSpan(ctx, "pgstore.Put", "UPSERT")
	defer span.End()

	args, err := resultArgs(r)
	if err != nil {
		fail(span, err)
		return err
	}

	query := `INSERT INTO triage_results (` + resultColumns + `)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	ON CONFLICT (id) DO UPDATE SET
		severity        = EXCLUDED.severity,
		suggestions     = EXCLUDED.suggestions,
		matched_rules   = EXCLUDED.matched_rules,
		rules_evaluated = EXCLUDED.rules_evaluated,
		dataset         = EXCLUDED.dataset,
		notify_status   = EXCLUDED.notify_status,
		notify_error    = EXCLUDED.notify_error,
		notified_at     = EXCLUDED.notified_at`

	_, err = s.pool.Exec(ctx, query, args...)
	if err != nil {
		fail(span, err)
		return fmt.Errorf("upsert triage: %w", err)
	}
	return nil
}

// PutNew inserts r unless a result for the same response already exists.
// Concurrent inserts for one response resolve on the response_id unique key;
// the losers read back the winner's row.
func (s *Store) PutNew(ctx context.Context, r *triage.Result) (*triage.Result, bool, error) {
	ctx, span := startSpan(ctx, "pgstore.PutNew", "INSERT")
	defer span.End()

	args, err := resultArgs(r)
	if err != nil {
		fail(span, err)
		return nil, false, err
	}

	query := `INSERT INTO triage_results (` + resultColumns + `)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	ON CONFLICT (response_id) DO NOTHING`

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		fail(span, err)
		return nil, false, fmt.Errorf("insert triage: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return r, true, nil
	}

	existing, ok, err := s.GetByResponse(ctx, r.ResponseID)
	if err != nil {
		fail(span, err)
		return nil, false, err
	}
	if !ok {
		err := fmt.Errorf("triage for response %s vanished after conflict", r.ResponseID)
		fail(span, err)
		return nil, false, err
	}
	span.SetAttributes(attribute.Bool("aftercare.triage.duplicate", true))
	return existing, false, nil
}

// resultArgs returns r's column values in resultColumns order.
func resultArgs(r *triage.Result) ([]any, error) {
	suggestions := r.Suggestions
	if suggestions == nil {
		suggestions = []triage.Suggestion{}
	}
	suggestionsJSON, err := json.Marshal(suggestions)
	if err != nil {
		return nil, fmt.Errorf("marshal suggestions: %w", err)
	}

	var datasetJSON []byte
	if r.Dataset != nil {
		datasetJSON, err = json.Marshal(r.Dataset)
		if err != nil {
			return nil, fmt.Errorf("marshal dataset: %w", err)
		}
	}

	var notifiedAt *time.Time
	if !r.NotifiedAt.IsZero() {
		notifiedAt = &r.NotifiedAt
	}

	return []any{
		r.ID, r.ResponseID, r.PatientID, r.FormID, string(r.Severity), suggestionsJSON, r.MatchedRules,
		r.RulesEvaluated, datasetJSON, string(r.Notify), r.NotifyError, r.SubmittedAt, r.CreatedAt, notifiedAt,
	}, nil
}

// scanResult scans a single row into a triage.Result.
// Returns (nil, nil) when no row is found.
func scanResult(row pgx.Row) (*triage.Result, error) {
	var (
		r               triage.Result
		severity        string
		notify          string
		suggestionsJSON []byte
		datasetJSON     []byte
		notifiedAt      *time.Time
	)

	err := row.Scan(
		&r.ID, &r.ResponseID, &r.PatientID, &r.FormID, &severity, &suggestionsJSON, &r.MatchedRules,
		&r.RulesEvaluated, &datasetJSON, &notify, &r.NotifyError, &r.SubmittedAt, &r.CreatedAt, &notifiedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan: %w", err)
	}

	r.Severity = triage.Severity(severity)
	r.Notify = triage.NotifyStatus(notify)
	if notifiedAt != nil {
		r.NotifiedAt = *notifiedAt
	}

	if err := json.Unmarshal(suggestionsJSON, &r.Suggestions); err != nil {
		return nil, fmt.Errorf("unmarshal suggestions: %w", err)
	}
	if len(datasetJSON) > 0 {
		if err := json.Unmarshal(datasetJSON, &r.Dataset); err != nil {
			return nil, fmt.Errorf("unmarshal dataset: %w", err)
		}
	}

	return &r, nil
}

package report

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// Repository persists call reports in SQLite.
type Repository struct {
	db  *sql.DB
	log *logrus.Entry
}

// NewRepository opens (or creates) the database at the given path.
func NewRepository(dbPath string, log *logrus.Entry) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Repository{db: db, log: log}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS call_reports (
			call_id            TEXT PRIMARY KEY,
			status             TEXT NOT NULL,
			final_decision     TEXT NOT NULL DEFAULT '',
			escalation_reason  TEXT NOT NULL DEFAULT '',
			agent_id           TEXT NOT NULL DEFAULT '',
			message_count      INTEGER NOT NULL DEFAULT 0,
			average_confidence REAL NOT NULL DEFAULT 0,
			start_time         DATETIME NOT NULL,
			end_time           DATETIME NOT NULL,
			summary            TEXT NOT NULL DEFAULT ''
		);
	`)
	return err
}

// Save upserts one report.
func (r *Repository) Save(ctx context.Context, rep Report) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO call_reports
			(call_id, status, final_decision, escalation_reason, agent_id,
			 message_count, average_confidence, start_time, end_time, summary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(call_id) DO UPDATE SET
			status = excluded.status,
			final_decision = excluded.final_decision,
			escalation_reason = excluded.escalation_reason,
			agent_id = excluded.agent_id,
			message_count = excluded.message_count,
			average_confidence = excluded.average_confidence,
			end_time = excluded.end_time,
			summary = excluded.summary`,
		rep.CallID, rep.Status, rep.FinalDecision, rep.EscalationReason, rep.AgentID,
		rep.MessageCount, rep.AverageConfidence, rep.StartTime, rep.EndTime, rep.Summary)
	if err != nil {
		return fmt.Errorf("saving report %s: %w", rep.CallID, err)
	}
	return nil
}

// SaveAsync persists the report off the live call path. Failures are
// retried briefly, then logged and swallowed: persistence never reaches
// back into the call.
func (r *Repository) SaveAsync(rep Report) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
		err := backoff.Retry(func() error {
			return r.Save(ctx, rep)
		}, bo)
		if err != nil {
			r.log.WithField("call_id", rep.CallID).WithError(err).Error("report persistence failed")
			return
		}
		r.log.WithField("call_id", rep.CallID).Debug("report persisted")
	}()
}

// Get loads a persisted report by call ID.
func (r *Repository) Get(ctx context.Context, callID string) (Report, error) {
	var rep Report
	err := r.db.QueryRowContext(ctx, `
		SELECT call_id, status, final_decision, escalation_reason, agent_id,
		       message_count, average_confidence, start_time, end_time, summary
		FROM call_reports WHERE call_id = ?`, callID).Scan(
		&rep.CallID, &rep.Status, &rep.FinalDecision, &rep.EscalationReason, &rep.AgentID,
		&rep.MessageCount, &rep.AverageConfidence, &rep.StartTime, &rep.EndTime, &rep.Summary)
	if err != nil {
		return Report{}, err
	}
	return rep, nil
}

func (r *Repository) Close() error { return r.db.Close() }

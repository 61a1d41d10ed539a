package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	// sqlite driver registration
	_ "modernc.org/sqlite"

	"github.com/tss-calculator/release/pkg/release/application/model"
	"github.com/tss-calculator/release/pkg/release/application/service"
)

//go:embed schema.sql
var schemaSQL string

const timeLayout = time.RFC3339Nano

// Open creates the journal database and its parent directory when missing. Use ":memory:" in tests.
func Open(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrap(err, "failed to create journal directory")
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open journal")
	}
	// a single connection keeps ":memory:" databases alive across calls
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to enable foreign keys")
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to apply journal schema")
	}
	return db, nil
}

func NewSQLiteJournal(db *sql.DB) service.Journal {
	return &sqliteJournal{db: db}
}

type sqliteJournal struct {
	db *sql.DB
}

func (journal sqliteJournal) Start(ctx context.Context, run model.ReleaseRun) error {
	_, err := journal.db.ExecContext(ctx,
		`INSERT INTO release_runs (id, required_branch, state, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.RequiredBranch, string(run.State), run.StartedAt.UTC().Format(timeLayout),
	)
	return errors.Wrapf(err, "failed to record run %v", run.ID)
}

func (journal sqliteJournal) RecordTransition(ctx context.Context, runID model.RunID, transition model.Transition) error {
	tx, err := journal.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO release_run_transitions (run_id, from_state, to_state, at) VALUES (?, ?, ?, ?)`,
		runID, string(transition.From), string(transition.To), transition.At.UTC().Format(timeLayout),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to record transition of run %v", runID)
	}
	_, err = tx.ExecContext(ctx, `UPDATE release_runs SET state = ? WHERE id = ?`, string(transition.To), runID)
	if err != nil {
		return errors.Wrapf(err, "failed to update state of run %v", runID)
	}
	return tx.Commit()
}

func (journal sqliteJournal) Finish(ctx context.Context, run model.ReleaseRun, runErr error) error {
	var message string
	if runErr != nil {
		message = runErr.Error()
	}
	_, err := journal.db.ExecContext(ctx,
		`UPDATE release_runs
		SET current_version = ?, release_version = ?, next_version = ?, target_kind = ?, state = ?, error = ?, finished_at = ?
		WHERE id = ?`,
		versionText(run.CurrentVersion), versionText(run.ReleaseVersion), versionText(run.NextVersion),
		string(run.TargetKind), string(run.State), message, time.Now().UTC().Format(timeLayout), run.ID,
	)
	return errors.Wrapf(err, "failed to finish run %v", run.ID)
}

func (journal sqliteJournal) List(ctx context.Context, limit int) ([]model.RunRecord, error) {
	rows, err := journal.db.QueryContext(ctx,
		`SELECT id, required_branch, current_version, release_version, next_version, target_kind, state, error, started_at, finished_at
		FROM release_runs ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list runs")
	}
	defer rows.Close()
	var records []model.RunRecord
	for rows.Next() {
		var (
			record     model.RunRecord
			targetKind string
			state      string
			startedAt  string
			finishedAt sql.NullString
		)
		err = rows.Scan(
			&record.ID, &record.RequiredBranch, &record.CurrentVersion, &record.ReleaseVersion, &record.NextVersion,
			&targetKind, &state, &record.Error, &startedAt, &finishedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan run")
		}
		record.TargetKind = model.RepositoryKind(targetKind)
		record.State = model.RunState(state)
		record.StartedAt, err = time.Parse(timeLayout, startedAt)
		if err != nil {
			return nil, errors.Wrapf(err, "run %v has invalid start time", record.ID)
		}
		if finishedAt.Valid {
			t, err := time.Parse(timeLayout, finishedAt.String)
			if err != nil {
				return nil, errors.Wrapf(err, "run %v has invalid finish time", record.ID)
			}
			record.FinishedAt = &t
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range records {
		records[i].Transitions, err = journal.transitions(ctx, records[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return records, nil
}

func (journal sqliteJournal) transitions(ctx context.Context, runID model.RunID) ([]model.Transition, error) {
	rows, err := journal.db.QueryContext(ctx,
		`SELECT from_state, to_state, at FROM release_run_transitions WHERE run_id = ? ORDER BY id`, runID,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list transitions of run %v", runID)
	}
	defer rows.Close()
	var transitions []model.Transition
	for rows.Next() {
		var from, to, at string
		if err := rows.Scan(&from, &to, &at); err != nil {
			return nil, err
		}
		t, err := time.Parse(timeLayout, at)
		if err != nil {
			return nil, errors.Wrapf(err, "transition of run %v has invalid time", runID)
		}
		transitions = append(transitions, model.Transition{From: model.RunState(from), To: model.RunState(to), At: t})
	}
	return transitions, rows.Err()
}

// versionText leaves versions of runs that never read one empty.
func versionText(version model.Version) string {
	if version == (model.Version{}) {
		return ""
	}
	return version.String()
}

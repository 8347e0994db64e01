package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/mission-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS missions (
	id            TEXT PRIMARY KEY,
	account_id    TEXT NOT NULL,
	profile       TEXT NOT NULL,
	current_phase TEXT NOT NULL DEFAULT 'discovery',
	status        TEXT NOT NULL DEFAULT 'active',
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS phase_snapshots (
	mission_id TEXT NOT NULL REFERENCES missions(id),
	phase      TEXT NOT NULL,
	doc        TEXT NOT NULL,
	version    INTEGER NOT NULL DEFAULT 1,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (mission_id, phase)
);

CREATE INDEX IF NOT EXISTS idx_missions_account ON missions(account_id);
CREATE INDEX IF NOT EXISTS idx_missions_status ON missions(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateMission(ctx context.Context, accountID string, profile model.Profile) (*model.Mission, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal profile")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO missions (id, account_id, profile, current_phase, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, accountID, string(profileJSON), string(model.PhaseDiscovery), string(model.MissionStatusActive), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert mission")
	}

	return &model.Mission{
		ID:           id,
		AccountID:    accountID,
		Profile:      profile,
		CurrentPhase: model.PhaseDiscovery,
		Status:       model.MissionStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (s *SQLiteStore) GetMission(ctx context.Context, missionID string) (*model.Mission, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, account_id, profile, current_phase, status, created_at, updated_at FROM missions WHERE id = ?`,
		missionID,
	)
	m, err := scanMission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "mission %s", missionID)
	}
	return m, err
}

func (s *SQLiteStore) UpdateMission(ctx context.Context, m *model.Mission) error {
	m.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE missions SET current_phase = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(m.CurrentPhase), string(m.Status), m.UpdatedAt, m.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update mission %s", m.ID)
	}
	return checkRowsAffected(res, "mission", m.ID)
}

func (s *SQLiteStore) ListMissions(ctx context.Context, filter MissionFilter) ([]model.Mission, error) {
	query := `SELECT id, account_id, profile, current_phase, status, created_at, updated_at FROM missions WHERE 1=1`
	var args []any

	if filter.AccountID != "" {
		query += ` AND account_id = ?`
		args = append(args, filter.AccountID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list missions")
	}
	defer rows.Close() //nolint:errcheck

	var missions []model.Mission
	for rows.Next() {
		m, err := scanMission(rows)
		if err != nil {
			return nil, err
		}
		missions = append(missions, *m)
	}
	return missions, eris.Wrap(rows.Err(), "sqlite: list missions iterate")
}

// SavePhaseSnapshot reads the current document, merges the patch in Go, and
// writes it back inside one transaction.
func (s *SQLiteStore) SavePhaseSnapshot(ctx context.Context, missionID string, phase model.PhaseID, patch model.SnapshotPatch) (int64, error) {
	encoded, err := encodePatch(patch)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin snapshot tx")
	}
	defer tx.Rollback() //nolint:errcheck

	var docJSON string
	var version int64
	doc := map[string]json.RawMessage{}
	err = tx.QueryRowContext(ctx,
		`SELECT doc, version FROM phase_snapshots WHERE mission_id = ? AND phase = ?`,
		missionID, string(phase),
	).Scan(&docJSON, &version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return 0, eris.Wrapf(err, "sqlite: read snapshot %s/%s", missionID, phase)
	default:
		if err := json.Unmarshal([]byte(docJSON), &doc); err != nil {
			return 0, eris.Wrap(err, "sqlite: unmarshal snapshot")
		}
	}

	merged, err := json.Marshal(mergeDoc(doc, encoded))
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: marshal snapshot")
	}
	version++

	_, err = tx.ExecContext(ctx,
		`INSERT INTO phase_snapshots (mission_id, phase, doc, version, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (mission_id, phase) DO UPDATE SET doc = excluded.doc, version = excluded.version, updated_at = excluded.updated_at`,
		missionID, string(phase), string(merged), version, time.Now().UTC(),
	)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: write snapshot %s/%s", missionID, phase)
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit snapshot")
	}
	return version, nil
}

func (s *SQLiteStore) LoadPhaseSnapshot(ctx context.Context, missionID string, phase model.PhaseID) (*model.PhaseSnapshot, error) {
	snap := model.PhaseSnapshot{MissionID: missionID, Phase: phase}
	var docJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc, version, updated_at FROM phase_snapshots WHERE mission_id = ? AND phase = ?`,
		missionID, string(phase),
	).Scan(&docJSON, &snap.Version, &snap.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "snapshot %s/%s", missionID, phase)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load snapshot")
	}
	if err := json.Unmarshal([]byte(docJSON), &snap.Doc); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal snapshot")
	}
	return &snap, nil
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

// scanMission returns sql.ErrNoRows unwrapped so callers can map it.
func scanMission(row scannable) (*model.Mission, error) {
	var m model.Mission
	var profileJSON string

	err := row.Scan(&m.ID, &m.AccountID, &profileJSON, &m.CurrentPhase, &m.Status, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan mission")
	}
	if err := json.Unmarshal([]byte(profileJSON), &m.Profile); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal profile")
	}
	return &m, nil
}

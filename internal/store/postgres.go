package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/mission-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool used by PostgresStore. pgxmock pools
// satisfy it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	insertMissionSQL = `INSERT INTO missions (id, account_id, profile, current_phase, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	getMissionSQL    = `SELECT id, account_id, profile, current_phase, status, created_at, updated_at FROM missions WHERE id = $1`
	updateMissionSQL = `UPDATE missions SET current_phase = $1, status = $2, updated_at = $3 WHERE id = $4`

	// Shallow merge happens in the database: jsonb || replaces top-level
	// keys present in the patch and keeps the rest.
	saveSnapshotSQL = `INSERT INTO phase_snapshots (mission_id, phase, doc, version, updated_at) VALUES ($1, $2, $3, 1, $4)
ON CONFLICT (mission_id, phase) DO UPDATE SET doc = phase_snapshots.doc || EXCLUDED.doc, version = phase_snapshots.version + 1, updated_at = EXCLUDED.updated_at
RETURNING version`
	loadSnapshotSQL = `SELECT doc, version, updated_at FROM phase_snapshots WHERE mission_id = $1 AND phase = $2`
)

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"insert_mission": insertMissionSQL,
	"get_mission":    getMissionSQL,
	"update_mission": updateMissionSQL,
	"save_snapshot":  saveSnapshotSQL,
	"load_snapshot":  loadSnapshotSQL,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS missions (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	account_id    TEXT NOT NULL,
	profile       JSONB NOT NULL,
	current_phase TEXT NOT NULL DEFAULT 'discovery',
	status        TEXT NOT NULL DEFAULT 'active',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS phase_snapshots (
	mission_id TEXT NOT NULL REFERENCES missions(id) ON DELETE CASCADE,
	phase      TEXT NOT NULL,
	doc        JSONB NOT NULL DEFAULT '{}'::jsonb,
	version    BIGINT NOT NULL DEFAULT 1,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (mission_id, phase)
);

CREATE INDEX IF NOT EXISTS idx_missions_account ON missions(account_id);
CREATE INDEX IF NOT EXISTS idx_missions_status ON missions(status);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateMission(ctx context.Context, accountID string, profile model.Profile) (*model.Mission, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal profile")
	}

	_, err = s.pool.Exec(ctx, insertMissionSQL,
		id, accountID, profileJSON, string(model.PhaseDiscovery), string(model.MissionStatusActive), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert mission")
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

func (s *PostgresStore) GetMission(ctx context.Context, missionID string) (*model.Mission, error) {
	var m model.Mission
	var profileJSON []byte
	var phase, status string

	err := s.pool.QueryRow(ctx, getMissionSQL, missionID).
		Scan(&m.ID, &m.AccountID, &profileJSON, &phase, &status, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "mission %s", missionID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get mission %s", missionID)
	}
	m.CurrentPhase = model.PhaseID(phase)
	m.Status = model.MissionStatus(status)
	if err := json.Unmarshal(profileJSON, &m.Profile); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal profile")
	}
	return &m, nil
}

func (s *PostgresStore) UpdateMission(ctx context.Context, m *model.Mission) error {
	m.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx, updateMissionSQL,
		string(m.CurrentPhase), string(m.Status), m.UpdatedAt, m.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update mission %s", m.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "mission %s", m.ID)
	}
	return nil
}

func (s *PostgresStore) ListMissions(ctx context.Context, filter MissionFilter) ([]model.Mission, error) {
	query := `SELECT id, account_id, profile, current_phase, status, created_at, updated_at FROM missions WHERE true`
	args := []any{}
	argIdx := 1

	if filter.AccountID != "" {
		query += fmt.Sprintf(` AND account_id = $%d`, argIdx)
		args = append(args, filter.AccountID)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list missions")
	}
	defer rows.Close()

	var missions []model.Mission
	for rows.Next() {
		var m model.Mission
		var profileJSON []byte
		var phase, status string
		if err := rows.Scan(&m.ID, &m.AccountID, &profileJSON, &phase, &status, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan mission")
		}
		m.CurrentPhase = model.PhaseID(phase)
		m.Status = model.MissionStatus(status)
		if err := json.Unmarshal(profileJSON, &m.Profile); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal profile")
		}
		missions = append(missions, m)
	}
	return missions, eris.Wrap(rows.Err(), "postgres: list missions iterate")
}

func (s *PostgresStore) SavePhaseSnapshot(ctx context.Context, missionID string, phase model.PhaseID, patch model.SnapshotPatch) (int64, error) {
	encoded, err := encodePatch(patch)
	if err != nil {
		return 0, err
	}
	patchJSON, err := json.Marshal(encoded)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: marshal snapshot patch")
	}

	var version int64
	err = s.pool.QueryRow(ctx, saveSnapshotSQL, missionID, string(phase), patchJSON, time.Now().UTC()).Scan(&version)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: save snapshot %s/%s", missionID, phase)
	}
	return version, nil
}

func (s *PostgresStore) LoadPhaseSnapshot(ctx context.Context, missionID string, phase model.PhaseID) (*model.PhaseSnapshot, error) {
	snap := model.PhaseSnapshot{MissionID: missionID, Phase: phase}
	var docJSON []byte

	err := s.pool.QueryRow(ctx, loadSnapshotSQL, missionID, string(phase)).
		Scan(&docJSON, &snap.Version, &snap.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "snapshot %s/%s", missionID, phase)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: load snapshot %s/%s", missionID, phase)
	}
	if err := json.Unmarshal(docJSON, &snap.Doc); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal snapshot")
	}
	return &snap, nil
}

// Package sqlite is the default local persistence backend: a pure-Go SQLite
// database holding the scene catalog and finished-game records.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/coax-games/coax-api/internal/domain"
)

// Store wraps a SQLite connection. One store implements both SceneProvider
// and RecordStore.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database and runs migrations.
func NewStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("sqlite: mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite: open db: %w", err)
	}

	// Single connection avoids write contention for our scale
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`)

	var version int
	s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version)

	if version < 1 {
		if _, err := s.db.Exec(`
			CREATE TABLE IF NOT EXISTS scenes (
				id                  TEXT    PRIMARY KEY,
				title               TEXT    NOT NULL,
				category            TEXT    NOT NULL DEFAULT '',
				role                TEXT    NOT NULL DEFAULT '',
				role_gender         TEXT    NOT NULL DEFAULT '',
				angry_reason        TEXT    NOT NULL DEFAULT '',
				difficulty          TEXT    NOT NULL DEFAULT '',
				status              TEXT    NOT NULL DEFAULT 'active',
				initial_forgiveness INTEGER NOT NULL DEFAULT 0,
				max_interactions    INTEGER NOT NULL DEFAULT 0,
				created_at          TEXT    NOT NULL DEFAULT (datetime('now'))
			);
			CREATE INDEX IF NOT EXISTS idx_scenes_category   ON scenes(category);
			CREATE INDEX IF NOT EXISTS idx_scenes_status     ON scenes(status);

			CREATE TABLE IF NOT EXISTS game_records (
				id                  TEXT    PRIMARY KEY,
				user_id             TEXT    NOT NULL,
				scene_id            TEXT    NOT NULL,
				is_success          INTEGER NOT NULL,
				final_forgiveness   INTEGER NOT NULL,
				interaction_count   INTEGER NOT NULL,
				max_interactions    INTEGER NOT NULL,
				start_forgiveness   INTEGER NOT NULL,
				forgiveness_changes TEXT    NOT NULL DEFAULT '[]',
				duration_seconds    INTEGER NOT NULL DEFAULT 0,
				ended_at            TEXT    NOT NULL,
				created_at          TEXT    NOT NULL DEFAULT (datetime('now'))
			);
			CREATE INDEX IF NOT EXISTS idx_records_user_id  ON game_records(user_id);
			CREATE INDEX IF NOT EXISTS idx_records_scene_id ON game_records(scene_id);
		`); err != nil {
			return err
		}
		s.db.Exec(`INSERT INTO schema_version (version) VALUES (1)`)
	}

	return nil
}

// ─── SceneProvider ───

// AddScene inserts or replaces a catalog entry. Used to seed the database
// from the YAML catalog at startup.
func (s *Store) AddScene(ctx context.Context, scene domain.Scene) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scenes (id, title, category, role, role_gender, angry_reason,
			difficulty, status, initial_forgiveness, max_interactions)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			category = excluded.category,
			role = excluded.role,
			role_gender = excluded.role_gender,
			angry_reason = excluded.angry_reason,
			difficulty = excluded.difficulty,
			status = excluded.status,
			initial_forgiveness = excluded.initial_forgiveness,
			max_interactions = excluded.max_interactions`,
		string(scene.ID), scene.Title, scene.Category, scene.Role, scene.RoleGender,
		scene.AngryReason, scene.Difficulty, scene.Status,
		scene.InitialForgiveness, scene.MaxInteractions)
	if err != nil {
		return fmt.Errorf("sqlite: add scene: %w", err)
	}
	return nil
}

func (s *Store) GetScene(ctx context.Context, id domain.SceneID) (*domain.Scene, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, category, role, role_gender, angry_reason,
			difficulty, status, initial_forgiveness, max_interactions
		FROM scenes WHERE id = ?`, string(id))

	scene, err := scanScene(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSceneNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get scene: %w", err)
	}
	return scene, nil
}

func (s *Store) ListScenes(ctx context.Context, filter domain.SceneFilter) ([]*domain.Scene, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.Difficulty != "" {
		conds = append(conds, "difficulty = ?")
		args = append(args, filter.Difficulty)
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status)
	}

	query := `SELECT id, title, category, role, role_gender, angry_reason,
		difficulty, status, initial_forgiveness, max_interactions FROM scenes`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at, id"
	query, args = appendPage(query, args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list scenes: %w", err)
	}
	defer rows.Close()

	var scenes []*domain.Scene
	for rows.Next() {
		scene, err := scanScene(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: list scenes: %w", err)
		}
		scenes = append(scenes, scene)
	}
	return scenes, rows.Err()
}

// appendPage adds LIMIT/OFFSET clauses. SQLite requires a LIMIT before an
// OFFSET, so an offset-only filter gets LIMIT -1 (no cap).
func appendPage(query string, args []any, limit, offset int) (string, []any) {
	if limit <= 0 && offset <= 0 {
		return query, args
	}
	if limit <= 0 {
		limit = -1
	}
	query += " LIMIT ? OFFSET ?"
	return query, append(args, limit, offset)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScene(r rowScanner) (*domain.Scene, error) {
	var scene domain.Scene
	var id string
	err := r.Scan(&id, &scene.Title, &scene.Category, &scene.Role, &scene.RoleGender,
		&scene.AngryReason, &scene.Difficulty, &scene.Status,
		&scene.InitialForgiveness, &scene.MaxInteractions)
	if err != nil {
		return nil, err
	}
	scene.ID = domain.SceneID(id)
	return &scene, nil
}

// ─── RecordStore ───

func (s *Store) SaveRecord(ctx context.Context, summary *domain.Summary) error {
	changes, err := json.Marshal(summary.ForgivenessChanges)
	if err != nil {
		return fmt.Errorf("sqlite: encode changes: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO game_records (id, user_id, scene_id, is_success,
			final_forgiveness, interaction_count, max_interactions,
			start_forgiveness, forgiveness_changes, duration_seconds, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), string(summary.UserID), string(summary.SceneID),
		summary.IsSuccess, summary.FinalForgiveness, summary.InteractionCount,
		summary.MaxInteractions, summary.StartForgiveness, string(changes),
		summary.DurationSeconds, summary.EndedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("sqlite: save record: %w", err)
	}
	return nil
}

func (s *Store) ListRecords(ctx context.Context, userID domain.UserID, filter domain.RecordFilter) ([]*domain.Record, error) {
	query := `SELECT id, user_id, scene_id, is_success, final_forgiveness,
		interaction_count, max_interactions, start_forgiveness,
		forgiveness_changes, duration_seconds, ended_at, created_at
		FROM game_records WHERE user_id = ?`
	args := []any{string(userID)}
	if filter.SceneID != "" {
		query += " AND scene_id = ?"
		args = append(args, string(filter.SceneID))
	}
	query += " ORDER BY created_at DESC, id"
	query, args = appendPage(query, args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list records: %w", err)
	}
	defer rows.Close()

	var records []*domain.Record
	for rows.Next() {
		var (
			rec        domain.Record
			userID     string
			sceneID    string
			changesRaw string
			endedAt    string
			createdAt  string
		)
		if err := rows.Scan(&rec.ID, &userID, &sceneID, &rec.IsSuccess,
			&rec.FinalForgiveness, &rec.InteractionCount, &rec.MaxInteractions,
			&rec.StartForgiveness, &changesRaw, &rec.DurationSeconds,
			&endedAt, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: list records: %w", err)
		}
		rec.UserID = domain.UserID(userID)
		rec.SceneID = domain.SceneID(sceneID)
		if err := json.Unmarshal([]byte(changesRaw), &rec.ForgivenessChanges); err != nil {
			return nil, fmt.Errorf("sqlite: decode changes: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, endedAt); err == nil {
			rec.EndedAt = t
		}
		if t, err := time.Parse("2006-01-02 15:04:05", createdAt); err == nil {
			rec.CreatedAt = t
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

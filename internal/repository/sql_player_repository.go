package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/mtricolici98/bot-wuzzler/internal/models"
	"github.com/mtricolici98/bot-wuzzler/pkg/database"
)

// SQLPlayerRepository persists player stats in Postgres or SQLite.
type SQLPlayerRepository struct {
	db *database.DB
}

func NewSQLPlayerRepository(db *database.DB) *SQLPlayerRepository {
	return &SQLPlayerRepository{db: db}
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *SQLPlayerRepository) Get(ctx context.Context, playerID string) (models.PlayerStats, error) {
	if playerID == "" {
		return models.PlayerStats{}, ErrEmptyPlayerID
	}
	return r.find(ctx, r.db, playerID, false)
}

func (r *SQLPlayerRepository) find(ctx context.Context, q queryRower, playerID string, forUpdate bool) (models.PlayerStats, error) {
	query := `
		SELECT player_id, rating, wins, losses, updated_at
		FROM player_stats
		WHERE player_id = $1
	`
	if forUpdate && r.db.Driver == database.DriverPostgres {
		query += ` FOR UPDATE`
	}

	stats := models.PlayerStats{}
	err := q.QueryRowContext(ctx, r.db.Rebind(query), playerID).Scan(
		&stats.PlayerID,
		&stats.Rating,
		&stats.Wins,
		&stats.Losses,
		&stats.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return models.NewPlayerStats(playerID), nil
	}
	if err != nil {
		return models.PlayerStats{}, fmt.Errorf("failed to find player stats: %w", err)
	}

	return stats, nil
}

func (r *SQLPlayerRepository) GetMany(ctx context.Context, playerIDs []string) (map[string]models.PlayerStats, error) {
	if err := validateIDs(playerIDs); err != nil {
		return nil, err
	}

	out := make(map[string]models.PlayerStats, len(playerIDs))
	for _, id := range playerIDs {
		stats, err := r.find(ctx, r.db, id, false)
		if err != nil {
			return nil, err
		}
		out[id] = stats
	}
	return out, nil
}

func (r *SQLPlayerRepository) List(ctx context.Context) ([]models.PlayerStats, error) {
	query := `
		SELECT player_id, rating, wins, losses, updated_at
		FROM player_stats
		ORDER BY player_id ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list player stats: %w", err)
	}
	defer rows.Close()

	var out []models.PlayerStats
	for rows.Next() {
		var stats models.PlayerStats
		if err := rows.Scan(
			&stats.PlayerID,
			&stats.Rating,
			&stats.Wins,
			&stats.Losses,
			&stats.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan player stats: %w", err)
		}
		out = append(out, stats)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate player stats: %w", err)
	}

	return out, nil
}

// Update runs read, fn and upsert inside one transaction. Missing rows are
// inserted with defaults first so that Postgres SELECT ... FOR UPDATE always
// has a row to lock; rows are locked in player id order. SQLite serializes on
// its single connection.
func (r *SQLPlayerRepository) Update(ctx context.Context, playerIDs []string, fn UpdateFunc) error {
	if err := validateIDs(playerIDs); err != nil {
		return err
	}

	ids := lo.Uniq(playerIDs)
	sort.Strings(ids)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ensure := r.db.Rebind(`
		INSERT INTO player_stats (player_id) VALUES ($1)
		ON CONFLICT (player_id) DO NOTHING
	`)
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, ensure, id); err != nil {
			return fmt.Errorf("failed to create player stats: %w", err)
		}
	}

	records := make(map[string]*models.PlayerStats, len(ids))
	for _, id := range ids {
		stats, err := r.find(ctx, tx, id, true)
		if err != nil {
			return err
		}
		records[id] = &stats
	}

	if err := fn(records); err != nil {
		return err
	}

	upsert := r.db.Rebind(`
		INSERT INTO player_stats (player_id, rating, wins, losses, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (player_id) DO UPDATE SET
			rating = EXCLUDED.rating,
			wins = EXCLUDED.wins,
			losses = EXCLUDED.losses,
			updated_at = EXCLUDED.updated_at
	`)

	now := time.Now().UTC()
	for id, stats := range records {
		if _, err := tx.ExecContext(ctx, upsert, id, stats.Rating, stats.Wins, stats.Losses, now); err != nil {
			return fmt.Errorf("failed to upsert player stats: %w", err)
		}
		stats.UpdatedAt = now
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit player stats: %w", err)
	}

	return nil
}

func (r *SQLPlayerRepository) Close() error {
	return r.db.Close()
}

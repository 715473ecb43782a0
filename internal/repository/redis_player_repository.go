package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mtricolici98/bot-wuzzler/internal/models"
	"github.com/mtricolici98/bot-wuzzler/pkg/distributed"
)

const (
	redisKeyPrefix  = "wuzzler:player:"
	redisIndexKey   = "wuzzler:players"
	redisUpdateLock = "wuzzler:lock:players"
)

// RedisPlayerRepository keeps one hash per player plus a set of known ids
// for full scans. Writers serialize on a distributed lock and commit with
// MULTI/EXEC.
type RedisPlayerRepository struct {
	client   redis.UniversalClient
	locks    *distributed.RedisLockManager
	lockOpts distributed.LockOptions
}

func NewRedisPlayerRepository(client redis.UniversalClient, lockOpts distributed.LockOptions) *RedisPlayerRepository {
	return &RedisPlayerRepository{
		client:   client,
		locks:    distributed.NewRedisLockManager(client),
		lockOpts: lockOpts,
	}
}

func playerKey(playerID string) string {
	return redisKeyPrefix + playerID
}

func (r *RedisPlayerRepository) Get(ctx context.Context, playerID string) (models.PlayerStats, error) {
	if playerID == "" {
		return models.PlayerStats{}, ErrEmptyPlayerID
	}

	fields, err := r.client.HGetAll(ctx, playerKey(playerID)).Result()
	if err != nil {
		return models.PlayerStats{}, fmt.Errorf("failed to get player stats: %w", err)
	}
	return decodePlayer(playerID, fields)
}

func (r *RedisPlayerRepository) GetMany(ctx context.Context, playerIDs []string) (map[string]models.PlayerStats, error) {
	if err := validateIDs(playerIDs); err != nil {
		return nil, err
	}
	return r.load(ctx, playerIDs)
}

func (r *RedisPlayerRepository) load(ctx context.Context, playerIDs []string) (map[string]models.PlayerStats, error) {
	pipe := r.client.Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(playerIDs))
	for _, id := range playerIDs {
		cmds[id] = pipe.HGetAll(ctx, playerKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to load player stats: %w", err)
	}

	out := make(map[string]models.PlayerStats, len(playerIDs))
	for id, cmd := range cmds {
		stats, err := decodePlayer(id, cmd.Val())
		if err != nil {
			return nil, err
		}
		out[id] = stats
	}
	return out, nil
}

func (r *RedisPlayerRepository) List(ctx context.Context) ([]models.PlayerStats, error) {
	ids, err := r.client.SMembers(ctx, redisIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	if len(ids) == 0 {
		return []models.PlayerStats{}, nil
	}

	loaded, err := r.load(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]models.PlayerStats, 0, len(loaded))
	for _, stats := range loaded {
		out = append(out, stats)
	}
	sortByPlayerID(out)
	return out, nil
}

func (r *RedisPlayerRepository) Update(ctx context.Context, playerIDs []string, fn UpdateFunc) error {
	if err := validateIDs(playerIDs); err != nil {
		return err
	}

	return r.locks.WithLock(ctx, redisUpdateLock, r.lockOpts, func(ctx context.Context) error {
		loaded, err := r.load(ctx, playerIDs)
		if err != nil {
			return err
		}

		records := make(map[string]*models.PlayerStats, len(loaded))
		for id := range loaded {
			stats := loaded[id]
			records[id] = &stats
		}

		if err := fn(records); err != nil {
			return err
		}

		now := time.Now().UTC()
		_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for id, stats := range records {
				pipe.HSet(ctx, playerKey(id),
					"rating", stats.Rating,
					"wins", stats.Wins,
					"losses", stats.Losses,
					"updated_at", now.Format(time.RFC3339Nano),
				)
				pipe.SAdd(ctx, redisIndexKey, id)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to commit player stats: %w", err)
		}
		return nil
	})
}

func (r *RedisPlayerRepository) Close() error {
	return r.client.Close()
}

func decodePlayer(playerID string, fields map[string]string) (models.PlayerStats, error) {
	stats := models.NewPlayerStats(playerID)
	if len(fields) == 0 {
		return stats, nil
	}

	var err error
	if stats.Rating, err = atoiField(fields, "rating", models.DefaultRating); err != nil {
		return stats, err
	}
	if stats.Wins, err = atoiField(fields, "wins", 0); err != nil {
		return stats, err
	}
	if stats.Losses, err = atoiField(fields, "losses", 0); err != nil {
		return stats, err
	}
	if ts, ok := fields["updated_at"]; ok {
		if stats.UpdatedAt, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return stats, fmt.Errorf("corrupt updated_at for %s: %w", playerID, err)
		}
	}
	return stats, nil
}

func atoiField(fields map[string]string, name string, fallback int) (int, error) {
	raw, ok := fields[name]
	if !ok {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("corrupt %s field: %w", name, err)
	}
	return n, nil
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Sternrassler/ctgov-client/pkg/logging"
	"github.com/Sternrassler/ctgov-client/pkg/table"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

var (
	// ErrDatasetNotFound indicates no dataset is stored under the name.
	ErrDatasetNotFound = errors.New("dataset not found")

	// ErrInvalidDataset indicates the stored document could not be decoded.
	ErrInvalidDataset = errors.New("invalid dataset")

	// ErrInvalidName indicates a dataset name outside [A-Za-z0-9._-]{1,128}.
	ErrInvalidName = errors.New("invalid dataset name")
)

const scanBatch = 100

// Store saves and loads named tables in Redis.
type Store struct {
	redis  *redis.Client
	logger zerolog.Logger
	now    func() time.Time
}

// NewStore creates a store on top of redisClient.
func NewStore(redisClient *redis.Client) *Store {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Store{
		redis:  redisClient,
		logger: logging.NewLogger(logging.ComponentStore),
		now:    time.Now,
	}
}

// WithLogger replaces the store logger.
func (s *Store) WithLogger(logger zerolog.Logger) *Store {
	s.logger = logger
	return s
}

// Save writes t under name, replacing any previous dataset. A zero ttl keeps
// the dataset until it is deleted.
func (s *Store) Save(ctx context.Context, name string, t *table.Table, ttl time.Duration) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if t == nil {
		return fmt.Errorf("dataset table cannot be nil")
	}
	if ttl < 0 {
		return fmt.Errorf("ttl must be >= 0 (got %s)", ttl)
	}

	ds := Dataset{
		Table:   t,
		SavedAt: s.now().UTC(),
		Rows:    t.Len(),
	}

	data, err := json.Marshal(ds)
	if err != nil {
		observe("save", "error")
		return fmt.Errorf("marshal dataset: %w", err)
	}

	if err := s.redis.Set(ctx, Key(name), data, ttl).Err(); err != nil {
		observe("save", "error")
		return fmt.Errorf("redis set: %w", err)
	}

	observe("save", "ok")
	bytesWrittenTotal.Add(float64(len(data)))
	s.logger.Debug().
		Str("dataset", name).
		Int("rows", ds.Rows).
		Int("bytes", len(data)).
		Dur("ttl", ttl).
		Msg("Dataset saved")

	return nil
}

// Load reads the dataset stored under name.
// Returns ErrDatasetNotFound if there is none.
func (s *Store) Load(ctx context.Context, name string) (*Dataset, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	data, err := s.redis.Get(ctx, Key(name)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			observe("load", "miss")
			return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, name)
		}
		observe("load", "error")
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var ds Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		observe("load", "error")
		return nil, fmt.Errorf("%w: %v", ErrInvalidDataset, err)
	}
	if ds.Table == nil {
		observe("load", "error")
		return nil, fmt.Errorf("%w: missing table", ErrInvalidDataset)
	}
	ds.Name = name

	observe("load", "ok")
	return &ds, nil
}

// Delete removes the dataset stored under name.
// Returns ErrDatasetNotFound if there was none.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	n, err := s.redis.Del(ctx, Key(name)).Result()
	if err != nil {
		observe("delete", "error")
		return fmt.Errorf("redis del: %w", err)
	}
	if n == 0 {
		observe("delete", "miss")
		return fmt.Errorf("%w: %s", ErrDatasetNotFound, name)
	}

	observe("delete", "ok")
	s.logger.Debug().Str("dataset", name).Msg("Dataset deleted")
	return nil
}

// List returns the names of all stored datasets in sorted order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.redis.Scan(ctx, 0, KeyPrefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		observe("list", "error")
		return nil, fmt.Errorf("redis scan: %w", err)
	}

	names := lo.Uniq(lo.Map(keys, func(k string, _ int) string {
		return strings.TrimPrefix(k, KeyPrefix)
	}))
	sort.Strings(names)

	observe("list", "ok")
	return names, nil
}

package pagination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrPageLimit is returned when the token chain runs past Config.MaxPages.
var ErrPageLimit = errors.New("page limit reached")

// Config holds walker configuration.
type Config struct {
	// MaxPages caps the number of pages walked. Zero means unbounded.
	MaxPages int

	// ProgressEvery logs progress every N pages. Zero disables it.
	ProgressEvery int
}

// DefaultConfig returns an unbounded walker configuration.
func DefaultConfig() Config {
	return Config{
		MaxPages:      0,
		ProgressEvery: 50,
	}
}

// PageFunc fetches the page for token and returns the next token, or "" on
// the last page. The first call receives "".
type PageFunc func(ctx context.Context, token string) (next string, err error)

// Walker follows a continuation token chain.
type Walker struct {
	config Config
	logger zerolog.Logger
}

// NewWalker creates a new walker.
func NewWalker(config Config) *Walker {
	if config.MaxPages < 0 {
		config.MaxPages = 0
	}
	return &Walker{
		config: config,
		logger: log.With().Str("component", "pagination").Logger(),
	}
}

// WithLogger returns a copy of the walker that logs to logger.
func (w *Walker) WithLogger(logger zerolog.Logger) *Walker {
	cp := *w
	cp.logger = logger
	return &cp
}

// Walk calls fn until it returns an empty token and reports the number of
// pages fetched. An error from fn is returned as is.
func (w *Walker) Walk(ctx context.Context, fn PageFunc) (int, error) {
	start := time.Now()
	token := ""
	pages := 0

	for {
		if err := ctx.Err(); err != nil {
			return pages, fmt.Errorf("pagination stopped after %d pages: %w", pages, err)
		}
		if w.config.MaxPages > 0 && pages >= w.config.MaxPages {
			return pages, fmt.Errorf("%w: %d pages", ErrPageLimit, w.config.MaxPages)
		}

		next, err := fn(ctx, token)
		if err != nil {
			w.logger.Debug().
				Err(err).
				Int("page", pages+1).
				Msg("Page fetch failed")
			return pages, err
		}
		pages++

		if w.config.ProgressEvery > 0 && pages%w.config.ProgressEvery == 0 {
			w.logger.Info().
				Int("pages", pages).
				Dur("elapsed", time.Since(start)).
				Msg("Pagination progress")
		}

		if next == "" {
			w.logger.Debug().
				Int("pages", pages).
				Dur("duration", time.Since(start)).
				Msg("Pagination complete")
			return pages, nil
		}
		token = next
	}
}

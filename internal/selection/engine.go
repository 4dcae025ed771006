package selection

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/victornm/listenup/internal/content"
	"github.com/victornm/listenup/internal/domain"
	"github.com/victornm/listenup/internal/errors"
	"github.com/victornm/listenup/internal/membership"
)

const (
	DefaultBatchSize   = 10
	DefaultMaxAttempts = 5
)

// QuestionSource fetches fresh trivia questions. It may return fewer than count records.
type QuestionSource interface {
	FetchQuestions(ctx context.Context, opts domain.Options, count int) ([]domain.RawQuestion, error)
}

// SongSource fetches fresh songs. It may return fewer than count records.
type SongSource interface {
	FetchSongs(ctx context.Context, count int) ([]domain.RawSong, error)
}

type Config struct {
	Store     *content.Store
	Questions QuestionSource
	Songs     SongSource
	// BatchSize is how many items are requested per replenishment.
	BatchSize int
	// MaxAttempts bounds replenishment rounds that add nothing new.
	MaxAttempts int
}

// Engine picks content a user has not consumed yet.
type Engine struct {
	store       *content.Store
	questions   QuestionSource
	songs       SongSource
	batchSize   int
	maxAttempts int
}

func NewEngine(c Config) *Engine {
	e := &Engine{
		store:       c.Store,
		questions:   c.Questions,
		songs:       c.Songs,
		batchSize:   c.BatchSize,
		maxAttempts: c.MaxAttempts,
	}

	if e.batchSize <= 0 {
		e.batchSize = DefaultBatchSize
	}
	if e.maxAttempts <= 0 {
		e.maxAttempts = DefaultMaxAttempts
	}

	return e
}

type SelectRequest struct {
	Variant domain.Variant
	// Consumed holds the ids the user has already consumed for Variant.
	Consumed *membership.Set
	// Options filter replenished questions. Songs ignore them.
	Options domain.Options
}

// SelectUnseen returns a random item of req.Variant that is not in req.Consumed. When every stored
// item has been consumed, it replenishes the store from the provider and tries again.
// It never marks the item consumed.
func (e *Engine) SelectUnseen(ctx context.Context, req SelectRequest) (domain.Item, error) {
	replenished := false
	for attempt := 0; ; {
		global, err := e.store.IDs(ctx, req.Variant)
		if err != nil {
			return nil, err
		}

		candidates := global.Difference(req.Consumed)
		if !candidates.IsEmpty() {
			id, err := candidates.ChooseRandom()
			if err != nil {
				return nil, fmt.Errorf("selection: choose %s: %w", req.Variant, err)
			}

			selectionsTotal.WithLabelValues(req.Variant.String(), pathLabel(replenished)).Inc()
			return e.store.Get(ctx, req.Variant, id)
		}

		if attempt >= e.maxAttempts {
			return nil, errors.New(errors.CodeResourceExhausted,
				errors.WithMessagef("no unseen %s available after %d replenish attempts", req.Variant, attempt))
		}
		attempt++

		inserted, err := e.replenish(ctx, req, attempt)
		if err != nil {
			return nil, err
		}
		if inserted > 0 {
			replenished = true
		}
	}
}

// replenish fetches a batch from the provider and stores the items that are new.
func (e *Engine) replenish(ctx context.Context, req SelectRequest, attempt int) (int, error) {
	items, err := e.fetch(ctx, req)
	if err != nil {
		providerErrorsTotal.WithLabelValues(req.Variant.String()).Inc()
		slog.ErrorContext(ctx, "selection: fetch from provider failed",
			"variant", req.Variant.String(),
			"attempt", attempt,
			"error", err,
		)
		return 0, err
	}

	inserted := 0
	for _, it := range items {
		_, ok, err := e.store.Insert(ctx, it)
		if err != nil {
			return inserted, err
		}
		if ok {
			inserted++
		}
	}

	rejected := len(items) - inserted
	replenishedTotal.WithLabelValues(req.Variant.String(), "inserted").Add(float64(inserted))
	replenishedTotal.WithLabelValues(req.Variant.String(), "rejected").Add(float64(rejected))

	slog.InfoContext(ctx, "selection: replenished content",
		"variant", req.Variant.String(),
		"requested", e.batchSize,
		"received", len(items),
		"inserted", inserted,
		"rejected", rejected,
		"attempt", attempt,
	)

	return inserted, nil
}

func (e *Engine) fetch(ctx context.Context, req SelectRequest) ([]domain.Item, error) {
	switch req.Variant {
	case domain.VariantQuestion:
		raws, err := e.questions.FetchQuestions(ctx, req.Options, e.batchSize)
		if err != nil {
			return nil, err
		}

		items := make([]domain.Item, 0, len(raws))
		for _, r := range raws {
			items = append(items, domain.NewQuestion(r))
		}
		return items, nil

	case domain.VariantSong:
		raws, err := e.songs.FetchSongs(ctx, e.batchSize)
		if err != nil {
			return nil, err
		}

		items := make([]domain.Item, 0, len(raws))
		for _, r := range raws {
			items = append(items, domain.NewSong(r))
		}
		return items, nil

	default:
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("unknown variant %s", req.Variant))
	}
}

func pathLabel(replenished bool) string {
	if replenished {
		return "replenished"
	}
	return "cached"
}

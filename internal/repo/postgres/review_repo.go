package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankudzin/brokerreviews/internal/domain/enums"
	"github.com/ivankudzin/brokerreviews/internal/domain/model"
)

const reviewColumns = `id, broker_name, author, excerpt, review_link, rating, state, submitted_at, decided_at, decided_by, notified_at`

type ReviewRepo struct {
	pool *pgxpool.Pool
}

func NewReviewRepo(pool *pgxpool.Pool) *ReviewRepo {
	return &ReviewRepo{pool: pool}
}

// Register inserts a pending review. An id that already exists is left untouched and the stored
// row is returned with created=false.
func (r *ReviewRepo) Register(ctx context.Context, review model.Review) (model.Review, bool, error) {
	if r.pool == nil {
		return model.Review{}, false, fmt.Errorf("postgres pool is nil")
	}
	if err := review.Validate(); err != nil {
		return model.Review{}, false, err
	}

	submittedAt := review.SubmittedAt
	if submittedAt.IsZero() {
		submittedAt = time.Now().UTC()
	}

	var (
		stored  model.Review
		created bool
	)
	err := WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
INSERT INTO reviews (id, broker_name, author, excerpt, review_link, rating, state, submitted_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, 'PENDING', $7, NOW())
ON CONFLICT (id) DO NOTHING
RETURNING `+reviewColumns,
			review.ID,
			review.BrokerName,
			review.Author,
			review.Excerpt,
			review.ReviewLink,
			review.Rating,
			submittedAt,
		)
		item, scanErr := scanReview(row)
		if scanErr == nil {
			stored, created = item, true
			return nil
		}
		if !errors.Is(scanErr, pgx.ErrNoRows) {
			return fmt.Errorf("insert review: %w", scanErr)
		}

		item, scanErr = scanReview(tx.QueryRow(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE id = $1`, review.ID))
		if scanErr != nil {
			return fmt.Errorf("load existing review: %w", scanErr)
		}
		stored = item
		return nil
	})
	if err != nil {
		return model.Review{}, false, err
	}

	return stored, created, nil
}

// Transition is a single compare-and-set on the row: only a PENDING row is updated, so
// concurrent callers for the same id serialize on the row lock and exactly one wins.
func (r *ReviewRepo) Transition(ctx context.Context, reviewID int64, target enums.ReviewState, issuer string) (model.TransitionOutcome, error) {
	if r.pool == nil {
		return model.TransitionOutcome{}, fmt.Errorf("postgres pool is nil")
	}
	if reviewID <= 0 {
		return model.TransitionOutcome{}, model.ErrReviewNotFound
	}
	if !target.Terminal() {
		return model.TransitionOutcome{}, fmt.Errorf("%w: target %q", model.ErrInvalidTransition, target)
	}

	item, err := scanReview(r.pool.QueryRow(ctx, `
UPDATE reviews
SET state = $2, decided_at = NOW(), decided_by = $3, updated_at = NOW()
WHERE id = $1 AND state = 'PENDING'
RETURNING `+reviewColumns, reviewID, string(target), strings.TrimSpace(issuer)))
	if err == nil {
		return model.TransitionOutcome{Applied: true, State: item.State, Review: item}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return model.TransitionOutcome{}, fmt.Errorf("transition review: %w", err)
	}

	existing, err := r.Lookup(ctx, reviewID)
	if err != nil {
		return model.TransitionOutcome{}, err
	}
	return model.TransitionOutcome{Applied: false, State: existing.State, Review: existing}, nil
}

func (r *ReviewRepo) Lookup(ctx context.Context, reviewID int64) (model.Review, error) {
	if r.pool == nil {
		return model.Review{}, fmt.Errorf("postgres pool is nil")
	}
	if reviewID <= 0 {
		return model.Review{}, model.ErrReviewNotFound
	}

	item, err := scanReview(r.pool.QueryRow(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE id = $1`, reviewID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Review{}, model.ErrReviewNotFound
		}
		return model.Review{}, fmt.Errorf("lookup review: %w", err)
	}

	return item, nil
}

// ListStalePending returns pending reviews whose last announcement is older than cutoff.
func (r *ReviewRepo) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]model.Review, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := r.pool.Query(ctx, `
SELECT `+reviewColumns+`
FROM reviews
WHERE state = 'PENDING'
  AND COALESCE(notified_at, submitted_at) < $1
ORDER BY submitted_at ASC, id ASC
LIMIT $2
`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale pending reviews: %w", err)
	}
	defer rows.Close()

	out := make([]model.Review, 0, limit)
	for rows.Next() {
		item, scanErr := scanReview(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan pending review: %w", scanErr)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending reviews: %w", err)
	}

	return out, nil
}

func (r *ReviewRepo) MarkNotified(ctx context.Context, reviewID int64, at time.Time) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE reviews
SET notified_at = $2, updated_at = NOW()
WHERE id = $1
`, reviewID, at.UTC())
	if err != nil {
		return fmt.Errorf("mark review notified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrReviewNotFound
	}

	return nil
}

func scanReview(row pgx.Row) (model.Review, error) {
	var (
		item      model.Review
		state     string
		decidedBy *string
	)
	if err := row.Scan(
		&item.ID,
		&item.BrokerName,
		&item.Author,
		&item.Excerpt,
		&item.ReviewLink,
		&item.Rating,
		&state,
		&item.SubmittedAt,
		&item.DecidedAt,
		&decidedBy,
		&item.NotifiedAt,
	); err != nil {
		return model.Review{}, err
	}

	item.State = enums.ReviewState(state)
	if decidedBy != nil {
		item.DecidedBy = *decidedBy
	}

	return item, nil
}

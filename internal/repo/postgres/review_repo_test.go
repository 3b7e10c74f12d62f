package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/ivankudzin/brokerreviews/internal/domain/enums"
	"github.com/ivankudzin/brokerreviews/internal/domain/model"
)

func TestReviewRepoRequiresPool(t *testing.T) {
	repo := NewReviewRepo(nil)
	ctx := context.Background()

	if _, err := repo.Lookup(ctx, 1); err == nil {
		t.Fatalf("expected error without pool")
	}
	if _, err := repo.Transition(ctx, 1, enums.ReviewStatePublished, "alice"); err == nil {
		t.Fatalf("expected error without pool")
	}
	if _, _, err := repo.Register(ctx, model.Review{ID: 1, BrokerName: "Acme", Rating: 3}); err == nil {
		t.Fatalf("expected error without pool")
	}
}

func TestNewPoolRequiresDSN(t *testing.T) {
	if _, err := NewPool(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty dsn")
	}
}

func TestWithTxRequiresPool(t *testing.T) {
	err := WithTx(context.Background(), nil, nil)
	if err == nil {
		t.Fatalf("expected error for nil pool")
	}
	if errors.Is(err, model.ErrReviewNotFound) {
		t.Fatalf("unexpected sentinel: %v", err)
	}
}

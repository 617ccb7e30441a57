package summary

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/xhad/saccoassist/internal/models"
	"github.com/xhad/saccoassist/internal/types"
)

// Tiered reads from a fast store first and falls through to the durable
// one, backfilling the fast store on a durable hit. Writes go to both;
// only the durable write can fail the call.
type Tiered struct {
	fast    types.SummaryStore
	durable types.SummaryStore
	logger  *zap.Logger
}

var _ types.SummaryStore = (*Tiered)(nil)

func NewTiered(fast, durable types.SummaryStore, logger *zap.Logger) *Tiered {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tiered{fast: fast, durable: durable, logger: logger}
}

func (t *Tiered) GetSummary(ctx context.Context, hash string) (*models.SummaryEntry, error) {
	entry, err := t.fast.GetSummary(ctx, hash)
	if err == nil {
		return entry, nil
	}
	if !errors.Is(err, types.ErrNotFound) {
		t.logger.Warn("fast summary tier unavailable", zap.Error(err))
	}

	entry, err = t.durable.GetSummary(ctx, hash)
	if err != nil {
		return nil, err
	}
	if err := t.fast.PutSummary(ctx, *entry); err != nil {
		t.logger.Warn("failed to backfill fast summary tier", zap.Error(err))
	}
	return entry, nil
}

func (t *Tiered) PutSummary(ctx context.Context, entry models.SummaryEntry) error {
	if err := t.durable.PutSummary(ctx, entry); err != nil {
		return err
	}
	if err := t.fast.PutSummary(ctx, entry); err != nil {
		t.logger.Warn("failed to write fast summary tier", zap.Error(err))
	}
	return nil
}

package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/ahinestrog/bookdist/internal/events"
	"github.com/ahinestrog/bookdist/internal/store"
)

// ReorderWatcher listens for committed orders and flags books whose stock has
// dropped to the reorder level.
type ReorderWatcher struct {
	db *store.DB
}

func NewReorderWatcher(db *store.DB) *ReorderWatcher { return &ReorderWatcher{db: db} }

// Check returns the books among ids that need reordering.
func (w *ReorderWatcher) Check(ctx context.Context, ids []int64) ([]*Book, error) {
	repo := NewRepository(w.db)
	seen := map[int64]bool{}
	var out []*Book
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		b, err := repo.Get(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if b.Active && b.NeedsReorder() {
			out = append(out, b)
		}
	}
	return out, nil
}

// HandleOrderCreated is an events.Handler for order.created.
func (w *ReorderWatcher) HandleOrderCreated(ctx context.Context, d events.Delivery) error {
	var evt events.OrderCreated
	if err := json.Unmarshal(d.Payload, &evt); err != nil {
		return fmt.Errorf("decode %s: %w", d.Type, err)
	}
	ids := make([]int64, 0, len(evt.Items))
	for _, it := range evt.Items {
		ids = append(ids, it.BookID)
	}
	low, err := w.Check(ctx, ids)
	if err != nil {
		return err
	}
	for _, b := range low {
		log.Warn().
			Int64("book", b.ID).
			Str("title", b.Title).
			Int("stock", b.StockQty).
			Int("reorder_level", b.ReorderLevel).
			Str("order", evt.OrderNumber).
			Msg("reorder needed")
	}
	return nil
}

package inventory

import (
	"context"

	"github.com/Spok95/salon-ledger/internal/domain/materials"
)

// StockWatcher получает материалы, которые только что опустились до минимума.
// Вызывается после коммита, ошибки наблюдателя на операцию не влияют.
type StockWatcher interface {
	StockLow(ctx context.Context, m materials.Material)
}

type Watchers []StockWatcher

func (ws Watchers) StockLow(ctx context.Context, m materials.Material) {
	for _, w := range ws {
		if w != nil {
			w.StockLow(ctx, m)
		}
	}
}

// CrossedLow true, если остаток был выше минимума, а стал на уровне минимума или ниже.
func CrossedLow(before, after materials.Material) bool {
	return !before.LowStock() && after.LowStock()
}

package inventory

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Spok95/salon-ledger/internal/apperr"
	"github.com/Spok95/salon-ledger/internal/domain/catalog"
	"github.com/Spok95/salon-ledger/internal/domain/materials"

	"github.com/shopspring/decimal"
)

// Все количества хранятся с точностью до сотых (NUMERIC(12,2)).
const scale = 2

func validateQuantity(qty decimal.Decimal) error {
	if qty.IsNegative() {
		return apperr.Invalid("quantity %s must not be negative", qty)
	}
	if qty.Round(scale).GreaterThan(materials.MaxQuantity) {
		return apperr.Invalid("quantity %s exceeds %s", qty, materials.MaxQuantity)
	}
	return nil
}

func validateAdjustment(t TransactionType, qty decimal.Decimal) error {
	if !t.Valid() {
		return apperr.Invalid("unknown adjustment type %q", t)
	}
	return validateQuantity(qty)
}

// Apply считает новый остаток. Списание не уводит остаток ниже нуля,
// и в журнал попадает только то, что реально было списано.
func Apply(old decimal.Decimal, t TransactionType, qty decimal.Decimal) (StockChange, error) {
	if err := validateAdjustment(t, qty); err != nil {
		return StockChange{}, err
	}
	old = old.Round(scale)
	q := qty.Round(scale)

	ch := StockChange{OldStock: old}
	switch t {
	case Addition:
		ch.NewStock = old.Add(q)
		ch.QuantityChange = q
	case Deduction:
		ch.NewStock = decimal.Max(decimal.Zero, old.Sub(q))
		ch.QuantityChange = decimal.Min(q, old).Neg()
	case Adjustment:
		ch.NewStock = q
		ch.QuantityChange = q.Sub(old)
	}
	if ch.NewStock.GreaterThan(materials.MaxQuantity) {
		return StockChange{}, apperr.Invalid("resulting stock %s exceeds %s", ch.NewStock, materials.MaxQuantity)
	}
	return ch, nil
}

// deductionNote дописывает к заметке запрошенное количество, если списание упёрлось в ноль.
func deductionNote(notes string, requested decimal.Decimal, ch StockChange) string {
	q := requested.Round(scale)
	if ch.QuantityChange.Neg().Equal(q) {
		return notes
	}
	return fmt.Sprintf("%s (requested %s, deducted %s)", notes, q, ch.QuantityChange.Neg())
}

// normalizeItems проверяет позиции визита и склеивает повторы одного материала.
// Порядок первого появления сохраняется.
func normalizeItems(items []LineItem) ([]LineItem, error) {
	if len(items) == 0 {
		return nil, apperr.Invalid("at least one material is required")
	}
	out := make([]LineItem, 0, len(items))
	pos := make(map[int64]int, len(items))
	for i, it := range items {
		if it.MaterialID <= 0 {
			return nil, apperr.Invalid("material #%d: invalid material id %d", i+1, it.MaterialID)
		}
		q := it.Quantity.Round(scale)
		if !q.IsPositive() {
			return nil, apperr.Invalid("material #%d: quantity must be greater than zero", i+1)
		}
		if q.GreaterThan(materials.MaxQuantity) {
			return nil, apperr.Invalid("material #%d: quantity %s exceeds %s", i+1, q, materials.MaxQuantity)
		}
		if j, ok := pos[it.MaterialID]; ok {
			out[j].Quantity = out[j].Quantity.Add(q)
			if out[j].Quantity.GreaterThan(materials.MaxQuantity) {
				return nil, apperr.Invalid("material %d: total quantity exceeds %s", it.MaterialID, materials.MaxQuantity)
			}
			if out[j].Notes == "" {
				out[j].Notes = it.Notes
			}
			continue
		}
		pos[it.MaterialID] = len(out)
		out = append(out, LineItem{MaterialID: it.MaterialID, Quantity: q, Notes: it.Notes})
	}
	return out, nil
}

// prepareService проверяет визит до открытия транзакции.
func prepareService(in ServiceInput) (ServiceInput, error) {
	if in.ClientID <= 0 {
		return in, apperr.Invalid("client id is required")
	}
	in.ServiceType = strings.TrimSpace(in.ServiceType)
	in.Notes = strings.TrimSpace(in.Notes)
	if !catalog.ValidServiceType(in.ServiceType) {
		return in, apperr.Invalid("unknown service type %q", in.ServiceType)
	}
	items, err := normalizeItems(in.Items)
	if err != nil {
		return in, err
	}
	in.Items = items
	return in, nil
}

// normalizeResets проверяет пересчёт остатков; один материал в пересчёте один раз.
func normalizeResets(resets []Reset) ([]Reset, error) {
	out := make([]Reset, 0, len(resets))
	seen := make(map[int64]bool, len(resets))
	for i, r := range resets {
		if r.MaterialID <= 0 {
			return nil, apperr.Invalid("count #%d: invalid material id %d", i+1, r.MaterialID)
		}
		if seen[r.MaterialID] {
			return nil, apperr.Invalid("count #%d: material %d is counted twice", i+1, r.MaterialID)
		}
		seen[r.MaterialID] = true
		if err := validateQuantity(r.Stock); err != nil {
			return nil, err
		}
		out = append(out, Reset{MaterialID: r.MaterialID, Stock: r.Stock.Round(scale)})
	}
	return out, nil
}

func sortedIDs(items []LineItem) []int64 {
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.MaterialID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func resetIDs(resets []Reset) []int64 {
	ids := make([]int64, 0, len(resets))
	for _, r := range resets {
		ids = append(ids, r.MaterialID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

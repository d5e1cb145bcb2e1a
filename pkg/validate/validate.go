// Package validate applies per-instrument admission rules to incoming
// orders before they reach the matching core. Rules come from a JSON
// file maintained by the instrument service; an instrument with no
// entry is accepted as-is.
package validate

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"github.com/openexchange/matching-core/pkg/orderbook"
)

type Rule interface {
	Check(order *orderbook.BookOrder) error
}

type InstrumentRule struct {
	TickSize   string  `json:"tick_size"`
	MinQty     int64   `json:"min_qty"`
	PriceFloor float64 `json:"price_floor"`
	PriceCeil  float64 `json:"price_ceil"` // 0 = no ceiling
}

// TickSizeRule rejects prices that are not a whole multiple of the
// instrument's tick. Prices arrive as float64, so the check runs on
// decimals to avoid float remainder noise.
type TickSizeRule struct {
	ticks map[string]decimal.Decimal
}

func (r *TickSizeRule) Check(order *orderbook.BookOrder) error {
	tick, ok := r.ticks[order.InstrumentID]
	if !ok || tick.IsZero() {
		return nil
	}
	price := decimal.NewFromFloat(order.Price)
	if !price.Mod(tick).IsZero() {
		return fmt.Errorf("price %s is not a multiple of tick %s", price, tick)
	}
	return nil
}

// MinQtyRule rejects orders below the instrument's minimum size.
type MinQtyRule struct {
	minQty map[string]int64
}

func (r *MinQtyRule) Check(order *orderbook.BookOrder) error {
	min, ok := r.minQty[order.InstrumentID]
	if !ok {
		return nil
	}
	if order.Qty < min {
		return fmt.Errorf("qty %d below minimum %d", order.Qty, min)
	}
	return nil
}

// LimitPriceRule rejects prices outside the instrument's band.
type LimitPriceRule struct {
	floor map[string]float64
	ceil  map[string]float64
}

func (r *LimitPriceRule) Check(order *orderbook.BookOrder) error {
	if floor, ok := r.floor[order.InstrumentID]; ok && order.Price < floor {
		return fmt.Errorf("price %v below floor %v", order.Price, floor)
	}
	if ceil, ok := r.ceil[order.InstrumentID]; ok && ceil > 0 && order.Price > ceil {
		return fmt.Errorf("price %v above ceiling %v", order.Price, ceil)
	}
	return nil
}

// Validator runs every configured rule in order and returns the first
// violation.
type Validator struct {
	rules []Rule
}

func (v *Validator) Check(order *orderbook.BookOrder) error {
	for _, r := range v.rules {
		if err := r.Check(order); err != nil {
			return err
		}
	}
	return nil
}

// NewValidatorFromFile builds a validator from a JSON map of
// instrument id to rule settings.
func NewValidatorFromFile(path string) (*Validator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg map[string]InstrumentRule
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return NewValidator(cfg)
}

func NewValidator(cfg map[string]InstrumentRule) (*Validator, error) {
	tick := &TickSizeRule{ticks: map[string]decimal.Decimal{}}
	minQty := &MinQtyRule{minQty: map[string]int64{}}
	limit := &LimitPriceRule{floor: map[string]float64{}, ceil: map[string]float64{}}

	for instrumentID, rule := range cfg {
		if rule.TickSize != "" {
			d, err := decimal.NewFromString(rule.TickSize)
			if err != nil {
				return nil, fmt.Errorf("instrument %s: bad tick size %q: %w", instrumentID, rule.TickSize, err)
			}
			tick.ticks[instrumentID] = d
		}
		if rule.MinQty > 0 {
			minQty.minQty[instrumentID] = rule.MinQty
		}
		if rule.PriceFloor > 0 || rule.PriceCeil > 0 {
			limit.floor[instrumentID] = rule.PriceFloor
			limit.ceil[instrumentID] = rule.PriceCeil
		}
	}

	return &Validator{rules: []Rule{tick, minQty, limit}}, nil
}

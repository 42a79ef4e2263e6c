package commission

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

type Tier struct {
	Key             string          `json:"key"`
	Name            string          `json:"name"`
	MinVolume       decimal.Decimal `json:"min_volume"`
	NGRPercent      decimal.Decimal `json:"ngr_percent"`
	PurchasePercent decimal.Decimal `json:"purchase_percent"`
}

// Tiers is ordered by ascending MinVolume; the first tier starts at zero.
type Tiers []Tier

var hundred = decimal.NewFromInt(100)

func DefaultTiers() Tiers {
	return Tiers{
		{Key: "bronze", Name: "Bronze", MinVolume: decimal.Zero, NGRPercent: decimal.NewFromInt(15), PurchasePercent: decimal.NewFromInt(10)},
		{Key: "silver", Name: "Silver", MinVolume: decimal.NewFromInt(1000), NGRPercent: decimal.NewFromInt(25), PurchasePercent: decimal.NewFromInt(20)},
		{Key: "gold", Name: "Gold", MinVolume: decimal.NewFromInt(10000), NGRPercent: decimal.NewFromInt(40), PurchasePercent: decimal.NewFromInt(30)},
	}
}

func NewTiers(in []Tier) (Tiers, error) {
	if len(in) == 0 {
		return nil, fmt.Errorf("at least one tier is required")
	}
	out := append(Tiers(nil), in...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].MinVolume.LessThan(out[j].MinVolume) })
	if !out[0].MinVolume.IsZero() {
		return nil, fmt.Errorf("lowest tier %q must start at zero volume", out[0].Key)
	}
	seen := map[string]bool{}
	for i, t := range out {
		if t.Key == "" || seen[t.Key] {
			return nil, fmt.Errorf("tier %d: key must be unique and non-empty", i)
		}
		seen[t.Key] = true
		for _, p := range []decimal.Decimal{t.NGRPercent, t.PurchasePercent} {
			if p.IsNegative() || p.GreaterThan(hundred) {
				return nil, fmt.Errorf("tier %q: percentages must be within 0..100", t.Key)
			}
		}
		if i > 0 && t.MinVolume.Equal(out[i-1].MinVolume) {
			return nil, fmt.Errorf("tier %q: duplicate threshold", t.Key)
		}
	}
	return out, nil
}

func (ts Tiers) Lookup(key string) (Tier, int, bool) {
	for i, t := range ts {
		if t.Key == key {
			return t, i, true
		}
	}
	return Tier{}, -1, false
}

func (ts Tiers) forVolume(volume decimal.Decimal) int {
	idx := 0
	for i, t := range ts {
		if volume.GreaterThanOrEqual(t.MinVolume) {
			idx = i
		}
	}
	return idx
}

type LevelInfo struct {
	Tier      Tier            `json:"tier"`
	Manual    bool            `json:"manual"`
	Volume    decimal.Decimal `json:"volume"`
	Next      *Tier           `json:"next,omitempty"`
	Progress  decimal.Decimal `json:"progress"`
	Remaining decimal.Decimal `json:"remaining"`
}

// Level resolves the tier for a volume. A known manual key pins the tier;
// progress is measured against the tier after the resolved one.
func (ts Tiers) Level(volume decimal.Decimal, manual string) LevelInfo {
	info := LevelInfo{Volume: volume, Progress: hundred, Remaining: decimal.Zero}
	idx := ts.forVolume(volume)
	if manual != "" {
		if _, i, ok := ts.Lookup(manual); ok {
			idx = i
			info.Manual = true
		}
	}
	info.Tier = ts[idx]
	if idx+1 < len(ts) {
		next := ts[idx+1]
		info.Next = &next
		info.Progress = progress(volume, next.MinVolume)
		info.Remaining = decimal.Max(decimal.Zero, next.MinVolume.Sub(volume))
	}
	return info
}

func progress(volume, threshold decimal.Decimal) decimal.Decimal {
	if !threshold.IsPositive() {
		return hundred
	}
	p := volume.Mul(hundred).Div(threshold).Round(2)
	if p.GreaterThan(hundred) {
		return hundred
	}
	if p.IsNegative() {
		return decimal.Zero
	}
	return p
}

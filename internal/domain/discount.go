package domain

import (
	"sort"
)

// CalculateDiscount computes the discount a promotion grants for the given
// cart. The caller is expected to have checked IsEligible first; the
// subtotal is trusted as supplied and never recomputed from the items.
//
// A promotion whose configuration does not match its declared type (for
// example a combo promotion without a combo config) yields zero, never an
// error. Discounts are not clamped to the subtotal; keeping the final price
// non-negative is the caller's responsibility.
func CalculateDiscount(p *Promotion, cart []CartItem, subtotal float64) float64 {
	switch p.DiscountType {
	case DiscountTypePercentage:
		base := subtotal
		if p.restricted() {
			base = EligibleSubtotal(p, cart)
		}
		return base * p.DiscountValue / 100

	case DiscountTypeFixedAmount:
		if p.Combo != nil && p.Combo.MinimumValue > 0 && subtotal < p.Combo.MinimumValue {
			return 0
		}
		return p.DiscountValue

	case DiscountTypeCombo:
		if p.Combo == nil {
			return 0
		}
		return comboDiscount(p, cart, subtotal)

	default:
		return 0
	}
}

func comboDiscount(p *Promotion, cart []CartItem, subtotal float64) float64 {
	switch p.Combo.Kind {
	case ComboKindBuyXGetY:
		return buyXGetYDiscount(p, cart)

	case ComboKindTiered:
		return tieredDiscount(p, cart, subtotal)

	case ComboKindMinimumSpend, ComboKindFirstPurchase:
		if subtotal < p.Combo.MinimumValue {
			return 0
		}
		return p.DiscountValue

	default:
		return 0
	}
}

// buyXGetYDiscount makes the cheapest Get eligible units free once Buy
// eligible units are present. Units are counted one by one, not per line,
// so a single cheap line with quantity 3 can cover all free units.
func buyXGetYDiscount(p *Promotion, cart []CartItem) float64 {
	cfg := p.Combo
	if cfg.Buy <= 0 || cfg.Get <= 0 {
		return 0
	}

	eligible := eligibleItems(p, cart)
	units := 0
	for _, item := range eligible {
		units += item.Quantity
	}
	if units < cfg.Buy {
		return 0
	}

	sort.Slice(eligible, func(i, j int) bool {
		return eligible[i].UnitPrice < eligible[j].UnitPrice
	})

	discount := 0.0
	remaining := cfg.Get
	for _, item := range eligible {
		for q := 0; q < item.Quantity && remaining > 0; q++ {
			discount += item.UnitPrice
			remaining--
		}
		if remaining == 0 {
			break
		}
	}
	return discount
}

// tieredDiscount applies the first bracket containing the total cart
// quantity. The quantity and the discount base are the whole cart even when
// the promotion declares an eligible-service restriction; the percentage
// type restricts its base, this one does not. That asymmetry matches the
// behavior the product currently ships with.
func tieredDiscount(p *Promotion, cart []CartItem, subtotal float64) float64 {
	total := 0
	for _, item := range cart {
		total += item.Quantity
	}

	for _, tier := range p.Combo.Tiers {
		if total >= tier.Min && total <= tier.Max {
			return subtotal * tier.PercentOff / 100
		}
	}
	return 0
}

// eligibleItems returns a copy of the cart items covered by the promotion's
// restriction set, or the whole cart when unrestricted. The copy keeps
// callers free to reorder without touching the input slice.
func eligibleItems(p *Promotion, cart []CartItem) []CartItem {
	if !p.restricted() {
		out := make([]CartItem, len(cart))
		copy(out, cart)
		return out
	}

	set := p.eligibleSet()
	var out []CartItem
	for _, item := range cart {
		if _, ok := set[item.ServiceID]; ok {
			out = append(out, item)
		}
	}
	return out
}

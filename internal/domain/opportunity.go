package domain

import (
	"fmt"
	"math"
	"sort"
)

// Opportunity kind constants.
const (
	OpportunityKindQuantity = "quantity"
	OpportunityKindValue    = "value"
)

// Opportunity describes a promotion the cart almost qualifies for, with a
// ready-to-display nudge message.
type Opportunity struct {
	PromotionID        string  `json:"promotion_id"`
	PromotionName      string  `json:"promotion_name"`
	Kind               string  `json:"kind"`
	Message            string  `json:"message"`
	MissingQuantity    int     `json:"missing_quantity,omitempty"`
	MissingValue       float64 `json:"missing_value,omitempty"`
	BenefitDescription string  `json:"benefit_description"`
}

// FindOpportunity computes the upsell gap for a promotion whose current
// discount is zero. It checks, in priority order: buy-X-get-Y quantity gap,
// tiered-bracket quantity gap, minimum-value gap, then minimum-quantity
// gap, and returns the first one that is "near" enough to be worth showing.
//
// The second return value is the distance-to-unlock used to rank
// opportunities (missing units for quantity gaps, missing currency for
// value gaps). The third is false when the promotion has no near gap.
//
// names maps service IDs to display names for the message label; IDs with
// no resolved name are silently left out of the label.
func FindOpportunity(p *Promotion, cart []CartItem, subtotal float64, names map[string]string) (Opportunity, float64, bool) {
	selected := EligibleQuantity(p, cart)

	if p.DiscountType == DiscountTypeCombo && p.Combo != nil && p.Combo.Kind == ComboKindBuyXGetY {
		required := p.Combo.Buy
		if missing := required - selected; missing > 0 && quantityGapNear(missing, required) {
			return quantityOpportunity(p, names, missing), float64(missing), true
		}
	}

	if p.DiscountType == DiscountTypeCombo && p.Combo != nil && p.Combo.Kind == ComboKindTiered {
		total := 0
		for _, item := range cart {
			total += item.Quantity
		}
		if tier, ok := nextTier(p.Combo.Tiers, total); ok {
			missing := tier.Min - total
			if quantityGapNear(missing, tier.Min) {
				return quantityOpportunity(p, names, missing), float64(missing), true
			}
		}
	}

	if required := effectiveMinimumValue(p); required > 0 {
		compared := subtotal
		if p.restricted() {
			compared = EligibleSubtotal(p, cart)
		}
		if missing := required - compared; missing > 0 && valueGapNear(missing, required) {
			return valueOpportunity(p, missing), missing, true
		}
	}

	if p.MinimumQuantity > 0 && selected < p.MinimumQuantity {
		missing := p.MinimumQuantity - selected
		if quantityGapNear(missing, p.MinimumQuantity) {
			return quantityOpportunity(p, names, missing), float64(missing), true
		}
	}

	return Opportunity{}, 0, false
}

// quantityGapNear reports whether a quantity gap is close enough to nudge:
// missing must not exceed min(3, max(1, ceil(required×0.4))).
func quantityGapNear(missing, required int) bool {
	if missing <= 0 {
		return false
	}
	threshold := int(math.Ceil(float64(required) * 0.4))
	if threshold < 1 {
		threshold = 1
	}
	if threshold > 3 {
		threshold = 3
	}
	return missing <= threshold
}

// valueGapNear reports whether a value gap is close enough to nudge:
// missing must not exceed max(30, required×0.25).
func valueGapNear(missing, required float64) bool {
	if missing <= 0 {
		return false
	}
	threshold := required * 0.25
	if threshold < 30 {
		threshold = 30
	}
	return missing <= threshold
}

// nextTier returns the lowest-minimum tier still above the current total
// quantity, in ascending Min order.
func nextTier(tiers []Tier, total int) (Tier, bool) {
	sorted := make([]Tier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Min < sorted[j].Min
	})

	for _, tier := range sorted {
		if tier.Min > total {
			return tier, true
		}
	}
	return Tier{}, false
}

// effectiveMinimumValue resolves the promotion's minimum spend, preferring
// the promotion-level value over the combo config's.
func effectiveMinimumValue(p *Promotion) float64 {
	if p.MinimumValue > 0 {
		return p.MinimumValue
	}
	if p.Combo != nil {
		return p.Combo.MinimumValue
	}
	return 0
}

func quantityOpportunity(p *Promotion, names map[string]string, missing int) Opportunity {
	return Opportunity{
		PromotionID:     p.ID,
		PromotionName:   p.Name,
		Kind:            OpportunityKindQuantity,
		MissingQuantity: missing,
		Message: fmt.Sprintf("Adicione mais %d %s para desbloquear %s na promoção %q",
			missing, ServiceListLabel(p.EligibleServiceIDs, names), BenefitDescription(p), p.Name),
		BenefitDescription: BenefitDescription(p),
	}
}

func valueOpportunity(p *Promotion, missing float64) Opportunity {
	return Opportunity{
		PromotionID:   p.ID,
		PromotionName: p.Name,
		Kind:          OpportunityKindValue,
		MissingValue:  missing,
		Message: fmt.Sprintf("Faltam %s para desbloquear %s na promoção %q",
			FormatBRL(missing), BenefitDescription(p), p.Name),
		BenefitDescription: BenefitDescription(p),
	}
}

// BenefitDescription renders what a promotion grants, for nudge messages:
// "10% de desconto", "R$ 25,00 de desconto", "2 itens grátis". A tiered
// promotion advertises its best bracket.
func BenefitDescription(p *Promotion) string {
	switch p.DiscountType {
	case DiscountTypePercentage:
		return fmt.Sprintf("%s%% de desconto", FormatNumber(p.DiscountValue))

	case DiscountTypeFixedAmount:
		return fmt.Sprintf("%s de desconto", FormatBRL(p.DiscountValue))

	case DiscountTypeCombo:
		if p.Combo == nil {
			return "desconto"
		}
		switch p.Combo.Kind {
		case ComboKindBuyXGetY:
			if p.Combo.Get == 1 {
				return "1 item grátis"
			}
			return fmt.Sprintf("%d itens grátis", p.Combo.Get)
		case ComboKindTiered:
			best := 0.0
			for _, tier := range p.Combo.Tiers {
				if tier.PercentOff > best {
					best = tier.PercentOff
				}
			}
			return fmt.Sprintf("%s%% de desconto", FormatNumber(best))
		default:
			return fmt.Sprintf("%s de desconto", FormatBRL(p.DiscountValue))
		}

	default:
		return "desconto"
	}
}

// ServiceListLabel renders the eligible-service label for nudge messages:
// one name as-is, two names joined with "ou", three or more collapsed to
// the first two plus a catch-all. With no resolvable names the label falls
// back to a generic term.
func ServiceListLabel(serviceIDs []string, names map[string]string) string {
	var resolved []string
	for _, id := range serviceIDs {
		if name, ok := names[id]; ok && name != "" {
			resolved = append(resolved, name)
		}
	}

	switch len(resolved) {
	case 0:
		return "serviços elegíveis"
	case 1:
		return resolved[0]
	case 2:
		return resolved[0] + " ou " + resolved[1]
	default:
		return resolved[0] + ", " + resolved[1] + " ou outros serviços elegíveis"
	}
}

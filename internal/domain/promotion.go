package domain

import (
	"time"
)

// Discount type constants.
const (
	DiscountTypePercentage  = "percentage"
	DiscountTypeFixedAmount = "fixed_amount"
	DiscountTypeCombo       = "combo"
)

// Combo kind constants. A combo promotion carries exactly one of these
// rule shapes in its ComboConfig.
const (
	ComboKindBuyXGetY      = "buy_x_get_y"
	ComboKindTiered        = "tiered"
	ComboKindMinimumSpend  = "minimum_spend"
	ComboKindFirstPurchase = "first_purchase"
)

// Promotion is a configured discount rule. Promotions are read-only inputs
// to the evaluation engine; only the usage-recording path writes anything,
// and it writes UsageRecords, never Promotions.
type Promotion struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Active      bool       `json:"active"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`

	DiscountType  string  `json:"discount_type"`
	DiscountValue float64 `json:"discount_value"`

	// EligibleServiceIDs restricts the promotion to the listed services.
	// Empty means the whole cart is eligible.
	EligibleServiceIDs []string `json:"eligible_service_ids"`

	// MinimumQuantity is the minimum count of eligible units required.
	// Zero is treated as the default of 1.
	MinimumQuantity int `json:"minimum_quantity"`

	// MinimumValue is an optional minimum eligible spend. Zero means none.
	MinimumValue float64 `json:"minimum_value"`

	// UsesPerClient caps redemptions per client. Zero means unlimited.
	UsesPerClient int `json:"uses_per_client"`

	Combo *ComboConfig `json:"combo_config,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ComboConfig holds the rule shape for combo promotions. Only the fields
// belonging to Kind are meaningful; the engine never reads outside them.
type ComboConfig struct {
	Kind string `json:"kind"`

	// Buy/Get for ComboKindBuyXGetY: once Buy eligible units are in the
	// cart, the cheapest Get eligible units become free.
	Buy int `json:"buy,omitempty"`
	Get int `json:"get,omitempty"`

	// Tiers for ComboKindTiered.
	Tiers []Tier `json:"tiers,omitempty"`

	// MinimumValue gates ComboKindMinimumSpend and ComboKindFirstPurchase,
	// and optionally a fixed_amount promotion.
	MinimumValue float64 `json:"minimum_value,omitempty"`
}

// Tier is a quantity bracket granting a percentage discount when the total
// cart quantity falls inside [Min, Max].
type Tier struct {
	Min        int     `json:"min"`
	Max        int     `json:"max"`
	PercentOff float64 `json:"percent_off"`
}

// CartItem is one selected service line in a budget cart.
type CartItem struct {
	ServiceID string  `json:"service_id"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
}

// UsageRecord marks one redemption of a promotion. At most one record may
// exist per (promotion, order, client) triple.
type UsageRecord struct {
	ID             string    `json:"id"`
	PromotionID    string    `json:"promotion_id"`
	ClientID       string    `json:"client_id"`
	OrderID        string    `json:"order_id"`
	DiscountAmount float64   `json:"discount_amount"`
	CreatedAt      time.Time `json:"created_at"`
}

// ValidDiscountTypes returns the set of valid discount types.
func ValidDiscountTypes() []string {
	return []string{
		DiscountTypePercentage,
		DiscountTypeFixedAmount,
		DiscountTypeCombo,
	}
}

// IsValidDiscountType checks whether t is a valid discount type.
func IsValidDiscountType(t string) bool {
	for _, v := range ValidDiscountTypes() {
		if v == t {
			return true
		}
	}
	return false
}

// ValidComboKinds returns the set of valid combo rule kinds.
func ValidComboKinds() []string {
	return []string{
		ComboKindBuyXGetY,
		ComboKindTiered,
		ComboKindMinimumSpend,
		ComboKindFirstPurchase,
	}
}

// IsValidComboKind checks whether k is a valid combo kind.
func IsValidComboKind(k string) bool {
	for _, v := range ValidComboKinds() {
		if v == k {
			return true
		}
	}
	return false
}

// minimumQuantity returns the promotion's minimum eligible unit count,
// defaulting to 1 when unset.
func (p *Promotion) minimumQuantity() int {
	if p.MinimumQuantity <= 0 {
		return 1
	}
	return p.MinimumQuantity
}

// restricted reports whether the promotion limits itself to a service set.
func (p *Promotion) restricted() bool {
	return len(p.EligibleServiceIDs) > 0
}

// eligibleSet returns the restriction set as a lookup map.
func (p *Promotion) eligibleSet() map[string]struct{} {
	set := make(map[string]struct{}, len(p.EligibleServiceIDs))
	for _, id := range p.EligibleServiceIDs {
		set[id] = struct{}{}
	}
	return set
}

// EligibleQuantity sums the quantities of cart items covered by the
// promotion's restriction set. With no restriction every item counts.
func EligibleQuantity(p *Promotion, cart []CartItem) int {
	if !p.restricted() {
		total := 0
		for _, item := range cart {
			total += item.Quantity
		}
		return total
	}

	set := p.eligibleSet()
	total := 0
	for _, item := range cart {
		if _, ok := set[item.ServiceID]; ok {
			total += item.Quantity
		}
	}
	return total
}

// EligibleSubtotal sums price×quantity over the cart items covered by the
// promotion's restriction set. With no restriction every item counts.
func EligibleSubtotal(p *Promotion, cart []CartItem) float64 {
	if !p.restricted() {
		total := 0.0
		for _, item := range cart {
			total += item.UnitPrice * float64(item.Quantity)
		}
		return total
	}

	set := p.eligibleSet()
	total := 0.0
	for _, item := range cart {
		if _, ok := set[item.ServiceID]; ok {
			total += item.UnitPrice * float64(item.Quantity)
		}
	}
	return total
}

// IsEligible reports whether the cart satisfies the promotion's service
// restriction and minimum quantity. An unrestricted promotion accepts any
// cart.
func IsEligible(p *Promotion, cart []CartItem) bool {
	if !p.restricted() {
		return true
	}
	return EligibleQuantity(p, cart) >= p.minimumQuantity()
}

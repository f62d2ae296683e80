package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidDiscountType(t *testing.T) {
	for _, dt := range ValidDiscountTypes() {
		assert.True(t, IsValidDiscountType(dt), dt)
	}
	assert.False(t, IsValidDiscountType("bogo"))
	assert.False(t, IsValidDiscountType(""))
}

func TestIsValidComboKind(t *testing.T) {
	for _, k := range ValidComboKinds() {
		assert.True(t, IsValidComboKind(k), k)
	}
	assert.False(t, IsValidComboKind("loyalty"))
	assert.False(t, IsValidComboKind(""))
}

func TestEligibleQuantity(t *testing.T) {
	cart := []CartItem{
		{ServiceID: "sofa", UnitPrice: 120, Quantity: 2},
		{ServiceID: "tapete", UnitPrice: 80, Quantity: 3},
		{ServiceID: "cortina", UnitPrice: 60, Quantity: 1},
	}

	t.Run("unrestricted counts the whole cart", func(t *testing.T) {
		p := &Promotion{}
		assert.Equal(t, 6, EligibleQuantity(p, cart))
	})

	t.Run("restricted counts only listed services", func(t *testing.T) {
		p := &Promotion{EligibleServiceIDs: []string{"sofa", "cortina"}}
		assert.Equal(t, 3, EligibleQuantity(p, cart))
	})

	t.Run("no overlap counts zero", func(t *testing.T) {
		p := &Promotion{EligibleServiceIDs: []string{"colchao"}}
		assert.Equal(t, 0, EligibleQuantity(p, cart))
	})
}

func TestEligibleSubtotal(t *testing.T) {
	cart := []CartItem{
		{ServiceID: "sofa", UnitPrice: 120, Quantity: 2},
		{ServiceID: "tapete", UnitPrice: 80, Quantity: 3},
	}

	t.Run("unrestricted sums the whole cart", func(t *testing.T) {
		p := &Promotion{}
		assert.InDelta(t, 480.0, EligibleSubtotal(p, cart), 1e-9)
	})

	t.Run("restricted sums only listed services", func(t *testing.T) {
		p := &Promotion{EligibleServiceIDs: []string{"tapete"}}
		assert.InDelta(t, 240.0, EligibleSubtotal(p, cart), 1e-9)
	})
}

func TestIsEligible(t *testing.T) {
	cart := []CartItem{
		{ServiceID: "sofa", UnitPrice: 120, Quantity: 2},
	}

	t.Run("unrestricted promotion accepts any cart", func(t *testing.T) {
		p := &Promotion{MinimumQuantity: 5}
		assert.True(t, IsEligible(p, cart))
		assert.True(t, IsEligible(p, nil))
	})

	t.Run("restricted promotion needs minimum eligible units", func(t *testing.T) {
		p := &Promotion{EligibleServiceIDs: []string{"sofa"}, MinimumQuantity: 2}
		assert.True(t, IsEligible(p, cart))

		p.MinimumQuantity = 3
		assert.False(t, IsEligible(p, cart))
	})

	t.Run("zero minimum quantity defaults to one", func(t *testing.T) {
		p := &Promotion{EligibleServiceIDs: []string{"tapete"}}
		assert.False(t, IsEligible(p, cart))

		p.EligibleServiceIDs = []string{"sofa"}
		assert.True(t, IsEligible(p, cart))
	})
}

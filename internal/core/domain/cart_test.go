package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCart_AddItemMergesLines(t *testing.T) {
	var cart Cart
	cart.AddItem(CartItem{ItemID: "a", UnitPrice: 10000, Quantity: 1})
	cart.AddItem(CartItem{ItemID: "a", UnitPrice: 10000, Quantity: 2})
	cart.AddItem(CartItem{ItemID: "b", UnitPrice: 5000, Quantity: 1})

	assert.Len(t, cart.Items, 2)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.Equal(t, int64(35000), cart.Subtotal())
}

func TestCart_AddItemIgnoresNonPositiveQuantity(t *testing.T) {
	var cart Cart
	cart.AddItem(CartItem{ItemID: "a", UnitPrice: 10000, Quantity: 0})
	cart.AddItem(CartItem{ItemID: "b", UnitPrice: 10000, Quantity: -1})
	assert.True(t, cart.IsEmpty())
}

func TestCart_SetQuantityRemovesAtZero(t *testing.T) {
	var cart Cart
	cart.AddItem(CartItem{ItemID: "a", UnitPrice: 10000, Quantity: 2})
	cart.AddItem(CartItem{ItemID: "b", UnitPrice: 5000, Quantity: 1})

	cart.SetQuantity("a", -3)
	assert.Len(t, cart.Items, 1)
	assert.Equal(t, "b", cart.Items[0].ItemID)
}

func TestCart_CloneIsIndependent(t *testing.T) {
	var cart Cart
	cart.AddItem(CartItem{ItemID: "a", UnitPrice: 10000, Quantity: 1})

	clone := cart.Clone()
	clone.SetQuantity("a", 5)

	assert.Equal(t, 1, cart.Items[0].Quantity)
	assert.Equal(t, 5, clone.Items[0].Quantity)
}

func TestPricing_DeliveryFee(t *testing.T) {
	pricing := Pricing{FreeDeliveryThreshold: 100000, DeliveryFee: 15000}

	assert.Equal(t, int64(15000), pricing.Fee(99999))
	assert.Equal(t, int64(0), pricing.Fee(100000))
	assert.Equal(t, int64(0), pricing.Fee(250000))

	var cart Cart
	cart.AddItem(CartItem{ItemID: "a", UnitPrice: 40000, Quantity: 2})
	assert.Equal(t, int64(95000), pricing.Total(&cart))
}

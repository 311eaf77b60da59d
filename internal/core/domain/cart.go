package domain

// CartItem is a single line in the cart. Quantity is always >= 1; setting a
// quantity of zero or less removes the line.
type CartItem struct {
	ItemID    string `json:"itemId"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
	Category  string `json:"category,omitempty"`
}

// Cart is an ordered list of items. Totals are always derived from the
// current contents, never stored.
type Cart struct {
	Items []CartItem `json:"items"`
}

func (c *Cart) AddItem(item CartItem) {
	if item.Quantity <= 0 {
		return
	}
	for i := range c.Items {
		if c.Items[i].ItemID == item.ItemID {
			c.Items[i].Quantity += item.Quantity
			return
		}
	}
	c.Items = append(c.Items, item)
}

func (c *Cart) SetQuantity(itemID string, quantity int) {
	for i := range c.Items {
		if c.Items[i].ItemID != itemID {
			continue
		}
		if quantity <= 0 {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
		} else {
			c.Items[i].Quantity = quantity
		}
		return
	}
}

func (c *Cart) Clear() {
	c.Items = nil
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c *Cart) Subtotal() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.UnitPrice * int64(item.Quantity)
	}
	return total
}

// Clone returns a deep copy, used for session snapshots and recovery records.
func (c *Cart) Clone() Cart {
	if len(c.Items) == 0 {
		return Cart{}
	}
	items := make([]CartItem, len(c.Items))
	copy(items, c.Items)
	return Cart{Items: items}
}

// Pricing holds the delivery fee rules: orders at or above the threshold
// ship free, everything else pays the flat fee.
type Pricing struct {
	FreeDeliveryThreshold int64
	DeliveryFee           int64
}

func (p Pricing) Fee(subtotal int64) int64 {
	if subtotal >= p.FreeDeliveryThreshold {
		return 0
	}
	return p.DeliveryFee
}

func (p Pricing) Total(cart *Cart) int64 {
	subtotal := cart.Subtotal()
	return subtotal + p.Fee(subtotal)
}

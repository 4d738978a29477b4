package domain

import (
	"sort"

	"github.com/google/uuid"
)

type CartLine struct {
	ProductID string
	Quantity  int
}

// Cart is the client's selection, handed to CreateOrder as a value.
// Adding a product already in the cart merges the quantities.
type Cart struct {
	lines []CartLine
	index map[string]int
}

func NewCart(lines ...CartLine) Cart {
	var c Cart
	for _, l := range lines {
		c.Add(l.ProductID, l.Quantity)
	}
	return c
}

func (c *Cart) Add(productID string, quantity int) {
	if c.index == nil {
		c.index = make(map[string]int)
	}
	// Non-positive quantities are kept as separate lines so Validate rejects them.
	if i, ok := c.index[productID]; ok && quantity > 0 && c.lines[i].Quantity > 0 {
		c.lines[i].Quantity += quantity
		return
	}
	c.lines = append(c.lines, CartLine{ProductID: productID, Quantity: quantity})
	if quantity > 0 {
		c.index[productID] = len(c.lines) - 1
	}
}

func (c Cart) Len() int { return len(c.lines) }

func (c Cart) Lines() []CartLine {
	out := make([]CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

// ProductIDs returns the distinct product ids in ascending order.
func (c Cart) ProductIDs() []string {
	seen := make(map[string]struct{}, len(c.lines))
	ids := make([]string, 0, len(c.lines))
	for _, l := range c.lines {
		if _, ok := seen[l.ProductID]; ok {
			continue
		}
		seen[l.ProductID] = struct{}{}
		ids = append(ids, l.ProductID)
	}
	sort.Strings(ids)
	return ids
}

func (c Cart) Validate() error {
	if len(c.lines) == 0 {
		return NewValidationError("items", "must not be empty")
	}
	for _, l := range c.lines {
		// Only the canonical lower-case form names a stored product.
		if u, err := uuid.Parse(l.ProductID); err != nil || u.String() != l.ProductID {
			return NewValidationError("items.product_id", "must be a valid id: "+l.ProductID)
		}
		if l.Quantity <= 0 {
			return NewValidationError("items.quantity", "must be a positive integer")
		}
	}
	return nil
}

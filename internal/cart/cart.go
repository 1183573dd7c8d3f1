// Package cart holds the in-memory line items of one order being composed.
// A Cart is owned by exactly one session and is not safe for concurrent use;
// the session layer serializes access.
package cart

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"warunglink/terminal/internal/domain"
)

// ErrLineNotFound is returned by edits addressing a product that is not in
// the cart. Remove is deliberately exempt and stays a no-op.
var ErrLineNotFound = errors.New("line item not found")

// Cart is an ordered sequence of line items keyed by product identifier.
// Insertion order is irrelevant to totals but preserved for display.
type Cart struct {
	lines []domain.LineItem
	index map[int64]int
}

func New() *Cart {
	return &Cart{index: make(map[int64]int)}
}

// Add appends a new line for the inventory item, or increments the quantity
// when a line with the same product id already exists. Always succeeds.
func (c *Cart) Add(item domain.InventoryItem) {
	if pos, ok := c.index[item.ProductID]; ok {
		c.lines[pos].Quantity++
		return
	}

	price := item.SellPrice
	if price.IsNegative() {
		price = decimal.Zero
	}
	c.index[item.ProductID] = len(c.lines)
	c.lines = append(c.lines, domain.LineItem{
		ProductID:       item.ProductID,
		StockID:         item.ID,
		Name:            item.ProductName,
		UnitPrice:       price,
		Quantity:        1,
		DiscountPercent: decimal.Zero,
		StockSnapshot:   item.Quantity,
	})
}

// Remove deletes the line for productID. No-op when absent.
func (c *Cart) Remove(productID int64) {
	pos, ok := c.index[productID]
	if !ok {
		return
	}
	c.lines = append(c.lines[:pos], c.lines[pos+1:]...)
	delete(c.index, productID)
	for i := pos; i < len(c.lines); i++ {
		c.index[c.lines[i].ProductID] = i
	}
}

// SetQuantity replaces the line quantity. Values below 1 are coerced to 1:
// a cart line always represents at least one unit, and garbage input from
// the operator form must never zero out a line. Stock is not checked here;
// overselling is a UI warning, not a cart invariant.
func (c *Cart) SetQuantity(productID int64, qty int) error {
	pos, ok := c.index[productID]
	if !ok {
		return ErrLineNotFound
	}
	if qty < 1 {
		qty = 1
	}
	c.lines[pos].Quantity = qty
	return nil
}

// SetPrice replaces the operator-editable unit price. Negative prices are
// rejected rather than coerced.
func (c *Cart) SetPrice(productID int64, price decimal.Decimal) error {
	pos, ok := c.index[productID]
	if !ok {
		return ErrLineNotFound
	}
	if price.IsNegative() {
		return fmt.Errorf("%w: unit price must not be negative", domain.ErrValidation)
	}
	c.lines[pos].UnitPrice = price
	return nil
}

// SetDiscount replaces the line discount percentage, valid range [0,100].
func (c *Cart) SetDiscount(productID int64, percent decimal.Decimal) error {
	pos, ok := c.index[productID]
	if !ok {
		return ErrLineNotFound
	}
	if percent.IsNegative() || percent.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("%w: discount percent must be within [0,100]", domain.ErrValidation)
	}
	c.lines[pos].DiscountPercent = percent
	return nil
}

// Lines returns a copy of the line items in insertion order.
func (c *Cart) Lines() []domain.LineItem {
	out := make([]domain.LineItem, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) Empty() bool {
	return len(c.lines) == 0
}

func (c *Cart) Len() int {
	return len(c.lines)
}

// Clear resets the cart for the next order.
func (c *Cart) Clear() {
	c.lines = c.lines[:0]
	c.index = make(map[int64]int)
}

// Restore replaces the cart content with previously held lines, e.g. when
// resuming a parked cart.
func (c *Cart) Restore(lines []domain.LineItem) {
	c.lines = make([]domain.LineItem, len(lines))
	copy(c.lines, lines)
	c.index = make(map[int64]int, len(lines))
	for i, line := range c.lines {
		c.index[line.ProductID] = i
	}
}

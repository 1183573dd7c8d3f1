// Package catalog joins the shop-local inventory list with the global
// product list and answers display lookups and keystroke searches for the
// operator grid.
package catalog

import (
	"iter"
	"log"
	"strconv"
	"strings"

	"warunglink/terminal/internal/domain"
)

// FallbackImageURL is served whenever the global catalog has no image for an
// inventory row. Lookup misses are a silent degradation, never an error.
const FallbackImageURL = "/static/img/product-placeholder.png"

// Index is an immutable snapshot of the joined catalog. Build a new Index
// when the upstream data is refreshed; never mutate one in place.
type Index struct {
	items   []domain.InventoryItem
	byStock map[int64]int
	images  map[int64]string
}

func NewIndex(inventory []domain.InventoryItem, products []domain.CatalogProduct) *Index {
	ix := &Index{
		items:   make([]domain.InventoryItem, len(inventory)),
		byStock: make(map[int64]int, len(inventory)),
		images:  make(map[int64]string, len(products)),
	}
	copy(ix.items, inventory)
	for i, item := range ix.items {
		ix.byStock[item.ID] = i
	}
	for _, p := range products {
		if strings.TrimSpace(p.ProductImage) == "" {
			continue
		}
		ix.images[p.ProductID] = p.ProductImage
	}
	return ix
}

// Lookup resolves a shop-inventory row by its stock id.
func (ix *Index) Lookup(stockID int64) (domain.InventoryItem, bool) {
	pos, ok := ix.byStock[stockID]
	if !ok {
		return domain.InventoryItem{}, false
	}
	return ix.items[pos], true
}

func (ix *Index) Len() int {
	return len(ix.items)
}

// ResolveDisplay maps an inventory row to its grid presentation. It never
// fails: a missing global-catalog image degrades to the row's own image or
// the placeholder, and the miss is logged once per call site concern.
func (ix *Index) ResolveDisplay(item domain.InventoryItem) domain.Display {
	image, ok := ix.images[item.ProductID]
	if !ok {
		image = item.ProductImage
		if strings.TrimSpace(image) == "" {
			image = FallbackImageURL
			log.Printf("[catalog] no image for product_id=%d (%s), using placeholder", item.ProductID, item.ProductName)
		}
	}
	return domain.Display{
		ImageURL: image,
		Name:     item.ProductName,
		Price:    item.SellPrice,
	}
}

// Search returns a lazily evaluated, restartable sequence of inventory rows
// matching the query: case-insensitive substring on the product name, or
// substring on the numeric identifiers. The sequence is recomputed on every
// range, which is exactly what per-keystroke search wants; nothing is cached.
// An empty query matches everything.
func (ix *Index) Search(query string) iter.Seq[domain.InventoryItem] {
	needle := strings.ToLower(strings.TrimSpace(query))
	return func(yield func(domain.InventoryItem) bool) {
		for _, item := range ix.items {
			if !matches(item, needle) {
				continue
			}
			if !yield(item) {
				return
			}
		}
	}
}

func matches(item domain.InventoryItem, needle string) bool {
	if needle == "" {
		return true
	}
	if strings.Contains(strings.ToLower(item.ProductName), needle) {
		return true
	}
	return strings.Contains(strconv.FormatInt(item.ProductID, 10), needle) ||
		strings.Contains(strconv.FormatInt(item.ID, 10), needle)
}

// Package catalog holds the product data the storefront sells from.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/klugumair/Luxuryfashion-sub000/internal/cart"
	"github.com/klugumair/Luxuryfashion-sub000/internal/wishlist"
)

var ErrNotFound = errors.New("product not found")

type Product struct {
	ID          string          `yaml:"id" json:"id"`
	Name        string          `yaml:"name" json:"name"`
	Price       decimal.Decimal `yaml:"price" json:"price"`
	Category    string          `yaml:"category" json:"category"`
	Image       string          `yaml:"image" json:"image,omitempty"`
	Description string          `yaml:"description" json:"description,omitempty"`
	Sizes       []string        `yaml:"sizes" json:"sizes,omitempty"`
	Colors      []string        `yaml:"colors" json:"colors,omitempty"`
}

// LineItem builds the cart line for v. Unknown sizes or colors are
// rejected when the product lists its options.
func (p Product) LineItem(v cart.Variant) (cart.LineItem, error) {
	if len(p.Sizes) > 0 && v.Size != "" && !slices.Contains(p.Sizes, v.Size) {
		return cart.LineItem{}, fmt.Errorf("%s: size %q not offered", p.ID, v.Size)
	}
	if len(p.Colors) > 0 && v.Color != "" && !slices.Contains(p.Colors, v.Color) {
		return cart.LineItem{}, fmt.Errorf("%s: color %q not offered", p.ID, v.Color)
	}
	return cart.LineItem{
		ProductID: cart.ProductID(p.ID),
		Variant:   v,
		Name:      p.Name,
		UnitPrice: p.Price,
		Image:     p.Image,
		Category:  p.Category,
	}, nil
}

// DefaultVariant picks the first listed size and color.
func (p Product) DefaultVariant() cart.Variant {
	var v cart.Variant
	if len(p.Sizes) > 0 {
		v.Size = p.Sizes[0]
	}
	if len(p.Colors) > 0 {
		v.Color = p.Colors[0]
	}
	return v
}

func (p Product) WishlistItem() wishlist.Item {
	return wishlist.Item{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Image:     p.Image,
		Category:  p.Category,
	}
}

// Catalog is read-only after construction.
type Catalog struct {
	products []Product
	byID     map[string]int
}

type file struct {
	Products []Product `yaml:"products"`
}

func New(products []Product) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]int, len(products))}
	for _, p := range products {
		p.ID = strings.TrimSpace(p.ID)
		p.Category = strings.ToLower(strings.TrimSpace(p.Category))
		if p.ID == "" {
			return nil, errors.New("catalog: product without id")
		}
		if !p.Price.IsPositive() {
			return nil, fmt.Errorf("catalog: %s: price must be positive", p.ID)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate product id %s", p.ID)
		}
		c.byID[p.ID] = len(c.products)
		c.products = append(c.products, p)
	}
	return c, nil
}

func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return New(f.Products)
}

func LoadFromFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return Parse(data)
}

func (c *Catalog) Get(id string) (Product, error) {
	i, ok := c.byID[id]
	if !ok {
		return Product{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c.products[i], nil
}

func (c *Catalog) All() []Product {
	return slices.Clone(c.products)
}

// ByCategory lists products in category; an empty category lists everything.
func (c *Catalog) ByCategory(category string) []Product {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		return c.All()
	}
	var out []Product
	for _, p := range c.products {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out
}

// Categories in first-seen order.
func (c *Catalog) Categories() []string {
	var out []string
	for _, p := range c.products {
		if !slices.Contains(out, p.Category) {
			out = append(out, p.Category)
		}
	}
	return out
}

func (c *Catalog) Len() int {
	return len(c.products)
}

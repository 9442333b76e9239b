package domain

import (
	"strings"
	"testing"
)

func makeProducts(n int) []Product {
	products := make([]Product, n)
	for i := range products {
		products[i] = Product{Name: "product-" + string(rune('a'+i)), OldPrice: 10, NewPrice: 8, Currency: "USD"}
	}
	return products
}

func TestPagesChunking(t *testing.T) {
	tests := []struct {
		name     string
		products int
		perPage  int
		want     []int
	}{
		{name: "nine products page size four", products: 9, perPage: 4, want: []int{4, 4, 1}},
		{name: "exact multiple", products: 8, perPage: 4, want: []int{4, 4}},
		{name: "fewer than one page", products: 2, perPage: 4, want: []int{2}},
		{name: "page size one", products: 3, perPage: 1, want: []int{1, 1, 1}},
		{name: "single product", products: 1, perPage: 6, want: []int{1}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := Campaign{Products: makeProducts(tc.products), ProductsPerPage: tc.perPage}
			pages := c.Pages()
			if len(pages) != len(tc.want) {
				t.Fatalf("page count = %d, want %d", len(pages), len(tc.want))
			}
			var flat []Product
			for i, page := range pages {
				if len(page) != tc.want[i] {
					t.Fatalf("page %d size = %d, want %d", i, len(page), tc.want[i])
				}
				flat = append(flat, page...)
			}
			if len(flat) != tc.products {
				t.Fatalf("reassembled %d products, want %d", len(flat), tc.products)
			}
			for i, p := range flat {
				if p.Name != c.Products[i].Name {
					t.Fatalf("product %d out of order: got %q want %q", i, p.Name, c.Products[i].Name)
				}
			}
		})
	}
}

func TestDiscountPercentRecomputed(t *testing.T) {
	tests := []struct {
		old, new, supplied float64
		want               int
	}{
		{old: 5.0, new: 3.5, supplied: 99, want: 30},
		{old: 6.0, new: 4.0, supplied: 0, want: 33},
		{old: 200, new: 150, supplied: 10, want: 25},
		{old: 15, new: 10, supplied: 50, want: 33},
		{old: 0, new: 10, supplied: 50, want: 0},
	}
	for _, tc := range tests {
		p := Product{OldPrice: tc.old, NewPrice: tc.new, Discount: tc.supplied}
		if got := p.DiscountPercent(); got != tc.want {
			t.Fatalf("DiscountPercent(old=%v new=%v) = %d, want %d (supplied discount must be ignored)",
				tc.old, tc.new, got, tc.want)
		}
	}
}

func TestNormalizeDefaults(t *testing.T) {
	c := Campaign{SupermarketName: "Interfood", SupermarketLogoURL: "https://example.com/logo.png", Products: makeProducts(1)}
	c.Normalize()
	if c.ProductsPerPage != DefaultProductsPerPage {
		t.Fatalf("ProductsPerPage = %d, want %d", c.ProductsPerPage, DefaultProductsPerPage)
	}
	if c.PhoneNumber != DefaultPhoneNumber || c.Email != DefaultEmail {
		t.Fatalf("contact defaults not applied: phone=%q email=%q", c.PhoneNumber, c.Email)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate after Normalize: %v", err)
	}
}

func TestValidateRejectsBadRequests(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Campaign)
		detail string
	}{
		{name: "missing name", mutate: func(c *Campaign) { c.SupermarketName = " " }, detail: "supermarket_name"},
		{name: "missing logo", mutate: func(c *Campaign) { c.SupermarketLogoURL = "" }, detail: "supermarket_logo_url"},
		{name: "no products", mutate: func(c *Campaign) { c.Products = nil }, detail: "product"},
		{name: "unnamed product", mutate: func(c *Campaign) { c.Products[0].Name = "" }, detail: "products[0]"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := Campaign{
				SupermarketName:    "Interfood",
				SupermarketLogoURL: "https://example.com/logo.png",
				Products:           makeProducts(2),
			}
			c.Normalize()
			tc.mutate(&c)
			err := c.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.detail) {
				t.Fatalf("error %q does not mention %q", err, tc.detail)
			}
		})
	}
}

func TestGridLayout(t *testing.T) {
	tests := []struct {
		count int
		want  string
	}{
		{1, "1x1"},
		{2, "1x2"},
		{3, "1x3"},
		{4, "2x2"},
		{5, "flexible 2x3"},
		{6, "2x3"},
		{7, "2x4"},
		{8, "2x4"},
		{9, "3x3"},
		{12, "3x3"},
	}
	for _, tc := range tests {
		if got := GridLayout(tc.count); !strings.HasPrefix(got, tc.want) {
			t.Fatalf("GridLayout(%d) = %q, want prefix %q", tc.count, got, tc.want)
		}
	}
}

func TestSlug(t *testing.T) {
	c := Campaign{SupermarketName: "  Fresh Mart Berlin "}
	if got := c.Slug(); got != "fresh_mart_berlin" {
		t.Fatalf("Slug() = %q", got)
	}
}

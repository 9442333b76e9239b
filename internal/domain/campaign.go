package domain

import (
	"fmt"
	"math"
	"strings"
)

const (
	DefaultProductsPerPage = 4
	DefaultPhoneNumber     = "01700000000"
	DefaultEmail           = "info@supermarket.com"
)

// Product is one discounted item on the flyer. Immutable once decoded.
type Product struct {
	Name          string  `json:"name"`
	SecondaryName string  `json:"secondary_name"`
	OldPrice      float64 `json:"old_price"`
	NewPrice      float64 `json:"new_price"`
	Discount      float64 `json:"discount"`
	Currency      string  `json:"currency"`
	ImageURL      string  `json:"image_url"`
}

// DiscountPercent is the percentage shown on the flyer, always recomputed
// from the prices. The caller-supplied Discount field is never used here;
// the recomputation wins when the two disagree.
func (p Product) DiscountPercent() int {
	if p.OldPrice <= 0 {
		return 0
	}
	return int(math.Round((p.OldPrice - p.NewPrice) / p.OldPrice * 100))
}

// Campaign is one flyer generation request.
type Campaign struct {
	SupermarketName     string    `json:"supermarket_name"`
	WhyThisCampaign     string    `json:"why_this_campaign"`
	SupermarketAddress  string    `json:"supermarket_address"`
	CampaignStartDate   string    `json:"campaign_start_date"`
	CampaignEndDate     string    `json:"campaign_end_date"`
	SupermarketLogoURL  string    `json:"supermarket_logo_url"`
	Products            []Product `json:"products"`
	ProductsPerPage     int       `json:"products_per_page"`
	TemplateInstruction string    `json:"template_instruction"`
	ThemeStyle          string    `json:"theme_style"`
	PhoneNumber         string    `json:"phone_number"`
	Email               string    `json:"email"`

	// Locale is resolved from the request headers, not the JSON body.
	Locale string `json:"-"`
}

// Normalize fills optional fields with their documented defaults.
func (c *Campaign) Normalize() {
	if c.ProductsPerPage <= 0 {
		c.ProductsPerPage = DefaultProductsPerPage
	}
	if strings.TrimSpace(c.PhoneNumber) == "" {
		c.PhoneNumber = DefaultPhoneNumber
	}
	if strings.TrimSpace(c.Email) == "" {
		c.Email = DefaultEmail
	}
}

// Validate checks the request invariants. Callers should Normalize first.
func (c *Campaign) Validate() error {
	if strings.TrimSpace(c.SupermarketName) == "" {
		return fmt.Errorf("%w: supermarket_name is required", ErrValidation)
	}
	if strings.TrimSpace(c.SupermarketLogoURL) == "" {
		return fmt.Errorf("%w: supermarket_logo_url is required", ErrValidation)
	}
	if len(c.Products) == 0 {
		return fmt.Errorf("%w: at least one product is required", ErrValidation)
	}
	if c.ProductsPerPage < 1 {
		return fmt.Errorf("%w: products_per_page must be >= 1", ErrValidation)
	}
	for i, p := range c.Products {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("%w: products[%d].name is required", ErrValidation, i)
		}
	}
	return nil
}

// Pages partitions the product list into contiguous chunks of at most
// ProductsPerPage, in original order. The last page may be shorter.
func (c *Campaign) Pages() [][]Product {
	size := c.ProductsPerPage
	if size < 1 {
		size = DefaultProductsPerPage
	}
	var pages [][]Product
	for start := 0; start < len(c.Products); start += size {
		end := start + size
		if end > len(c.Products) {
			end = len(c.Products)
		}
		pages = append(pages, c.Products[start:end])
	}
	return pages
}

// Slug derives the scratch directory name for the campaign.
func (c *Campaign) Slug() string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(c.SupermarketName)), " ", "_")
}

// GridLayout maps a page's product count to the layout hint embedded in the
// prompt. The hints are fixed strings the model responds well to.
func GridLayout(productCount int) string {
	switch {
	case productCount <= 1:
		return "1x1 (single large product)"
	case productCount == 2:
		return "1x2 or 2x1 (two products side by side)"
	case productCount == 3:
		return "1x3 or 3x1 (three products in a row)"
	case productCount == 4:
		return "2x2 (four products in a square grid)"
	case productCount == 5:
		return "flexible 2x3 or 3x2 with one larger product"
	case productCount == 6:
		return "2x3 or 3x2 (six products in rectangular grid)"
	case productCount <= 8:
		return "2x4 or 4x2 (eight products maximum)"
	default:
		return "3x3 or flexible grid (arrange efficiently)"
	}
}

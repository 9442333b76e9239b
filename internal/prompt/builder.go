// Package prompt renders the deterministic instruction text sent to the
// image model for each flyer page.
package prompt

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"flyergen/internal/domain"
)

// Role selects the prompt variant for a page.
type Role int

const (
	// RoleFirst is the opening page: the logo is attached as a reference
	// and the model originates the background and theme.
	RoleFirst Role = iota
	// RoleContinuation is every later page: the first page's output is
	// attached as a style reference and must be preserved; the logo is not
	// resent.
	RoleContinuation
)

const headerTemplate = `Create a professional supermarket flyer for %s.
- Theme: %s
- Campaign: %s
- Grid Layout: %s layout with %d products
- Layout instructions: %s
- Address: %s
- Phone number: %s
- Email: %s
- Campaign Period: %s to %s
`

const firstBody = `
CRITICAL: USE ONLY THE EXACT PRICES PROVIDED BELOW - DO NOT MODIFY ANY NUMBERS:

%s

ABSOLUTE REQUIREMENTS FOR PRICE ACCURACY:
1. NEVER change, round, or modify the provided price numbers
2. NEVER create your own price calculations
3. ALWAYS double-check that displayed prices match the provided data exactly
4. Each product MUST show the exact old price and new price as listed

DESIGN REQUIREMENTS:
1. Auto-generate an attractive themed background in supermarket leaflet style; no solid white product card backgrounds.
2. Integrate the attached logo naturally into the themed background; the logo must not sit on a solid white block and must remain readable.
3. Price display per product: name with secondary description, OLD PRICE with strikethrough, NEW PRICE bold and larger, discount as a red circular [X]%% OFF badge.
4. The supermarket address MUST appear in the footer.
5. DO NOT duplicate the same product twice on the flyer.

WARNING: Any deviation from the provided price numbers will result in incorrect flyer information. Use ONLY the exact prices specified above.`

const continuationBody = `
EXACT PRODUCT PRICING TO DISPLAY:

%s

MANDATORY DESIGN RULES:
1. A reference flyer image is attached: PRESERVE its background treatment, color harmony, typography and decorative elements exactly. Maintain visual continuity with the reference design on every element.
2. No solid white product card backgrounds; follow the reference flyer's themed, integrated card style.
3. Price display per product: name with secondary description, OLD PRICE with strikethrough, NEW PRICE bold and larger, discount as a red circular [X]%% OFF badge.
4. The supermarket address MUST appear in the footer.
5. DO NOT modify any of the prices above in any way, and do not duplicate products.

Generate a flyer matching the reference design style with integrated themed backgrounds.`

var titleCaser = cases.Title(language.Und, cases.NoLower)

// Build renders the full prompt for one page. The output is deterministic;
// no model call happens here.
func Build(c domain.Campaign, pageProducts []domain.Product, role Role) string {
	var b strings.Builder

	fmt.Fprintf(&b, headerTemplate,
		titleCaser.String(strings.TrimSpace(c.SupermarketName)),
		c.ThemeStyle,
		c.WhyThisCampaign,
		domain.GridLayout(len(pageProducts)),
		len(pageProducts),
		c.TemplateInstruction,
		c.SupermarketAddress,
		c.PhoneNumber,
		c.Email,
		c.CampaignStartDate,
		c.CampaignEndDate,
	)
	if locale := strings.TrimSpace(c.Locale); locale != "" {
		fmt.Fprintf(&b, "- Primary language: %s (text must be clear and multilingual)\n", locale)
	}

	switch role {
	case RoleFirst:
		fmt.Fprintf(&b, firstBody, FormatProducts(pageProducts))
	default:
		fmt.Fprintf(&b, continuationBody, FormatProducts(pageProducts))
	}

	return b.String()
}

// FormatProducts renders the literal price table embedded in every prompt.
// The discount percentage is always recomputed from the prices, regardless
// of the discount field the caller supplied.
func FormatProducts(products []domain.Product) string {
	lines := make([]string, 0, len(products))
	for _, p := range products {
		lines = append(lines, fmt.Sprintf("- %s - old price: %s %s, new price: %s %s, discount: %d%%",
			p.Name,
			formatPrice(p.OldPrice), p.Currency,
			formatPrice(p.NewPrice), p.Currency,
			p.DiscountPercent(),
		))
	}
	return strings.Join(lines, "\n")
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Package reporting renders the plan comparison sheet offered as a PDF download.
package reporting

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/storyforge/storyforge/pkg/entitlements"
)

var (
	colorPrimary     = [3]int{58, 36, 97}    // Deep plum
	colorAccent      = [3]int{46, 204, 113}  // Green
	colorMuted       = [3]int{127, 140, 141} // Muted text
	colorTextDark    = [3]int{44, 62, 80}    // Dark text
	colorTableHeader = [3]int{58, 36, 97}
	colorTableAlt    = [3]int{245, 241, 250} // Alternating row
	colorHighlight   = [3]int{255, 243, 205} // Current tier column
)

const (
	pageMargin    = 15.0
	capColumnW    = 67.0
	tierColumnW   = 50.0
	rowHeight     = 8.0
	headerHeight  = 10.0
	sheetFontName = "Arial"
)

// ComparisonOptions controls the comparison sheet.
type ComparisonOptions struct {
	// Highlight shades the column of the reader's current tier. Empty for none.
	Highlight   entitlements.Tier
	GeneratedAt time.Time
	Title       string
}

// ComparisonSheet renders a tier by capability table.
type ComparisonSheet struct {
	resolver *entitlements.Resolver
}

// NewComparisonSheet creates a sheet over resolver (DefaultResolver when nil).
func NewComparisonSheet(resolver *entitlements.Resolver) *ComparisonSheet {
	if resolver == nil {
		resolver = entitlements.DefaultResolver()
	}
	return &ComparisonSheet{resolver: resolver}
}

// Generate returns the PDF bytes for the comparison sheet.
func (s *ComparisonSheet) Generate(opts ComparisonOptions) ([]byte, error) {
	if opts.Title == "" {
		opts.Title = "Storyforge Plans"
	}
	if opts.GeneratedAt.IsZero() {
		opts.GeneratedAt = time.Now()
	}
	if opts.Highlight != "" && !opts.Highlight.Valid() {
		return nil, fmt.Errorf("highlight tier: %w: %q", entitlements.ErrUnknownTier, opts.Highlight)
	}

	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, 20)
	pdf.SetTitle(opts.Title, false)
	pdf.AddPage()

	s.writeHeader(pdf, opts)
	s.writeTable(pdf, opts)
	s.writeFooter(pdf, opts)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("PDF output error: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *ComparisonSheet) writeHeader(pdf *fpdf.Fpdf, opts ComparisonOptions) {
	pageWidth, _ := pdf.GetPageSize()

	pdf.SetFillColor(colorPrimary[0], colorPrimary[1], colorPrimary[2])
	pdf.Rect(0, 0, pageWidth, 6, "F")

	pdf.SetY(12)
	pdf.SetFont(sheetFontName, "B", 20)
	pdf.SetTextColor(colorPrimary[0], colorPrimary[1], colorPrimary[2])
	pdf.CellFormat(0, 10, opts.Title, "", 1, "L", false, 0, "")

	pdf.SetFont(sheetFontName, "", 9)
	pdf.SetTextColor(colorMuted[0], colorMuted[1], colorMuted[2])
	pdf.CellFormat(0, 5, "Generated "+opts.GeneratedAt.UTC().Format("January 2, 2006"), "", 1, "L", false, 0, "")
	pdf.Ln(4)
}

func (s *ComparisonSheet) writeTable(pdf *fpdf.Fpdf, opts ComparisonOptions) {
	tiers := entitlements.Tiers()

	pdf.SetFillColor(colorTableHeader[0], colorTableHeader[1], colorTableHeader[2])
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont(sheetFontName, "B", 10)
	pdf.CellFormat(capColumnW, headerHeight, "Feature", "1", 0, "L", true, 0, "")
	for _, tier := range tiers {
		pdf.CellFormat(tierColumnW, headerHeight, entitlements.TierDisplayName(tier), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont(sheetFontName, "", 9)
	for i, capability := range entitlements.Capabilities() {
		alt := i%2 == 1
		s.setRowFill(pdf, alt)
		pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
		pdf.CellFormat(capColumnW, rowHeight, entitlements.CapabilityDisplayName(capability), "1", 0, "L", true, 0, "")

		for _, tier := range tiers {
			value := s.resolver.ValueFor(tier, capability)
			if tier == opts.Highlight {
				pdf.SetFillColor(colorHighlight[0], colorHighlight[1], colorHighlight[2])
			} else {
				s.setRowFill(pdf, alt)
			}
			if on, isFlag := value.Bool(); isFlag && on {
				pdf.SetTextColor(colorAccent[0], colorAccent[1], colorAccent[2])
			} else {
				pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
			}
			pdf.CellFormat(tierColumnW, rowHeight, cellText(value), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
	}
}

func (s *ComparisonSheet) setRowFill(pdf *fpdf.Fpdf, alt bool) {
	if alt {
		pdf.SetFillColor(colorTableAlt[0], colorTableAlt[1], colorTableAlt[2])
		return
	}
	pdf.SetFillColor(255, 255, 255)
}

func (s *ComparisonSheet) writeFooter(pdf *fpdf.Fpdf, opts ComparisonOptions) {
	pdf.Ln(4)
	pdf.SetFont(sheetFontName, "I", 8)
	pdf.SetTextColor(colorMuted[0], colorMuted[1], colorMuted[2])
	note := "Limits apply per account. AI suggestions reset on the first of each month (UTC)."
	if opts.Highlight != "" {
		note = fmt.Sprintf("Highlighted: your current plan (%s). %s", entitlements.TierDisplayName(opts.Highlight), note)
	}
	pdf.MultiCell(0, 4, note, "", "L", false)
}

func cellText(value entitlements.Value) string {
	if on, ok := value.Bool(); ok {
		if on {
			return "Yes"
		}
		return "-"
	}
	n, _ := value.Int()
	switch {
	case n == entitlements.Unlimited:
		return "Unlimited"
	case n == 0:
		return "-"
	default:
		return fmt.Sprintf("%d", n)
	}
}

package adapters

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jung-kurt/gofpdf"

	"bullion/internal/compliance"
)

const profileDateLayout = "02/01/2006"

// PDFProfiles renders AML profile sheets into a directory.
type PDFProfiles struct {
	dir string
}

func NewPDFProfiles(dir string) *PDFProfiles {
	return &PDFProfiles{dir: dir}
}

// FileName returns the document name for a profile:
// aml_profile_<fiscal id>_<YYYY_MM_DD>.pdf.
func FileName(p compliance.Profile) string {
	return fmt.Sprintf("aml_profile_%s_%s.pdf", p.Client.FiscalID, p.GeneratedAt.Format("2006_01_02"))
}

// Generate writes the profile PDF and returns its path.
func (g *PDFProfiles) Generate(ctx context.Context, p compliance.Profile) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(g.dir, 0o750); err != nil {
		return "", fmt.Errorf("create document directory: %w", err)
	}
	path := filepath.Join(g.dir, FileName(p))
	if err := renderProfile(p).OutputFileAndClose(path); err != nil {
		return "", fmt.Errorf("write AML profile %s: %w", p.Number, err)
	}
	return path, nil
}

func renderProfile(p compliance.Profile) *gofpdf.Fpdf {
	c := p.Client
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 20, 15)
	pdf.SetTitle("AML profile "+p.Number, true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, "Anti-money-laundering client profile", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Profile %s - generated %s", p.Number, p.GeneratedAt.Format(profileDateLayout)), "", 1, "C", false, 0, "")
	pdf.Ln(6)

	section := func(title string) {
		pdf.SetFont("Arial", "B", 11)
		pdf.SetFillColor(68, 114, 196)
		pdf.SetTextColor(255, 255, 255)
		pdf.CellFormat(0, 8, title, "", 1, "L", true, 0, "")
		pdf.SetTextColor(0, 0, 0)
		pdf.SetFont("Arial", "", 10)
	}
	row := func(label, value string) {
		if value == "" {
			value = "-"
		}
		pdf.CellFormat(60, 7, label, "B", 0, "L", false, 0, "")
		pdf.CellFormat(0, 7, value, "B", 1, "L", false, 0, "")
	}

	section("Client")
	row("Name", c.FullName())
	row("Fiscal ID", c.FiscalID)
	row("Address", c.Address)
	row("City", c.City)
	pdf.Ln(4)

	section("Identity document")
	row("Type", c.DocumentType)
	row("Number", c.DocumentNumber)
	expiry := ""
	if !c.DocumentExpiry.IsZero() {
		expiry = c.DocumentExpiry.Format(profileDateLayout)
	}
	row("Expiry", expiry)
	pdf.Ln(4)

	section("AML status")
	row("Status", string(c.AMLStatus))
	lastCheck := ""
	if c.LastAMLCheck != nil {
		lastCheck = c.LastAMLCheck.Format(profileDateLayout)
	}
	row("Last check", lastCheck)
	row("Annual cash ceiling", c.AnnualCashCeiling.StringFixed(2))
	year := p.GeneratedAt.Year()
	row(fmt.Sprintf("Cash used in %d", year), c.UsedIn(year).StringFixed(2))
	row("Cash remaining", c.Remaining(year).StringFixed(2))

	pdf.SetY(-30)
	pdf.SetFont("Arial", "I", 8)
	pdf.CellFormat(0, 5, "Document retained under AML record-keeping obligations.", "", 1, "C", false, 0, "")
	return pdf
}

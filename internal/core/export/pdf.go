package export

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
)

// PDFExporter renders documents as PDF tables using gofpdf
type PDFExporter struct{}

// NewPDFExporter creates a new PDF exporter
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Export writes the document as a PDF table
func (p *PDFExporter) Export(doc *Document, writer io.Writer) error {
	if len(doc.Headers) == 0 {
		return fmt.Errorf("no headers provided")
	}

	orientation := "P"
	if doc.Style.Orientation == "landscape" {
		orientation = "L"
	}

	pageSize := doc.Style.PageSize
	if pageSize == "" {
		pageSize = "A4"
	}

	pdf := gofpdf.New(orientation, "mm", pageSize, "")
	pdf.AddPage()

	// gofpdf ships Arial only, custom families fall back to it
	fontFamily := "Arial"
	pdf.SetFont(fontFamily, "", doc.Style.FontSize)

	if doc.Title != "" {
		pdf.SetFont(fontFamily, "B", 14)
		pdf.Cell(0, 10, doc.Title)
		pdf.Ln(12)
	}

	if !doc.GeneratedAt.IsZero() {
		pdf.SetFont(fontFamily, "I", 8)
		pdf.Cell(0, 5, fmt.Sprintf("Generated: %s", doc.GeneratedAt.Format("2006-01-02 15:04:05")))
		pdf.Ln(10)
	}

	pageWidth, pageHeight := pdf.GetPageSize()
	leftMargin, _, rightMargin, bottomMargin := pdf.GetMargins()
	usableWidth := pageWidth - leftMargin - rightMargin
	colWidth := usableWidth / float64(len(doc.Headers))

	drawHeader := func() {
		pdf.SetFont(fontFamily, "B", doc.Style.FontSize)
		if doc.Style.HeaderBgColor != "" {
			r, g, b := hexToRGB(doc.Style.HeaderBgColor)
			pdf.SetFillColor(r, g, b)
			pdf.SetTextColor(255, 255, 255)
		}
		for _, header := range doc.Headers {
			pdf.CellFormat(colWidth, 7, header, "1", 0, "C", doc.Style.HeaderBgColor != "", 0, "")
		}
		pdf.Ln(-1)
		pdf.SetTextColor(0, 0, 0)
		pdf.SetFont(fontFamily, "", doc.Style.FontSize)
	}

	drawHeader()

	for rowIdx, row := range doc.Rows {
		fill := false
		if doc.Style.AlternateRows && rowIdx%2 == 1 {
			r, g, b := hexToRGB(doc.Style.RowBgColor)
			pdf.SetFillColor(r, g, b)
			fill = true
		}

		for _, value := range row {
			pdf.CellFormat(colWidth, 6, fmt.Sprintf("%v", value), "1", 0, "L", fill, 0, "")
		}
		pdf.Ln(-1)

		if pdf.GetY() > pageHeight-bottomMargin-15 {
			pdf.AddPage()
			drawHeader()
		}
	}

	if err := pdf.Output(writer); err != nil {
		return fmt.Errorf("failed to write PDF: %w", err)
	}

	return nil
}

// GetContentType returns the MIME type for PDF files
func (p *PDFExporter) GetContentType() string {
	return "application/pdf"
}

// GetFileExtension returns the file extension for PDF files
func (p *PDFExporter) GetFileExtension() string {
	return ".pdf"
}

// hexToRGB converts a hex color to RGB values
func hexToRGB(hex string) (int, int, int) {
	if len(hex) > 0 && hex[0] == '#' {
		hex = hex[1:]
	}
	if len(hex) != 6 {
		return 255, 255, 255
	}

	var r, g, b int
	fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b)
	return r, g, b
}

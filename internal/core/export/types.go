package export

import (
	"io"
	"strings"
	"time"
)

// Format represents the export file format
type Format string

const (
	FormatPDF   Format = "pdf"
	FormatExcel Format = "excel"
)

// ParseFormat maps a request parameter to a Format
func ParseFormat(s string) (Format, bool) {
	switch strings.ToLower(s) {
	case "pdf":
		return FormatPDF, true
	case "excel", "xlsx":
		return FormatExcel, true
	}
	return "", false
}

// Exporter renders a tabular document in one output format
type Exporter interface {
	Export(doc *Document, writer io.Writer) error
	GetContentType() string
	GetFileExtension() string
}

// Document is a flat table ready for rendering
type Document struct {
	Title       string
	GeneratedAt time.Time

	Headers []string
	Rows    [][]interface{}

	Style Style
}

// Style holds the rendering options shared by both exporters
type Style struct {
	// PDF specific
	Orientation string // "portrait" or "landscape"
	PageSize    string // "A4", "Letter", etc.

	HeaderBgColor string // Hex color
	AlternateRows bool
	RowBgColor    string // Hex color for even rows

	FontFamily string
	FontSize   float64

	// Excel specific
	FreezeHeader bool
	AutoFilter   bool
}

// DefaultStyle returns the house style used for schedule reports
func DefaultStyle() Style {
	return Style{
		Orientation:   "landscape",
		PageSize:      "A4",
		HeaderBgColor: "#4472C4",
		AlternateRows: true,
		RowBgColor:    "#F2F2F2",
		FontFamily:    "Arial",
		FontSize:      9,
		FreezeHeader:  true,
		AutoFilter:    true,
	}
}

// NewDocument builds a Document with the default style
func NewDocument(title string, headers []string, rows [][]interface{}) *Document {
	return &Document{
		Title:       title,
		GeneratedAt: time.Now(),
		Headers:     headers,
		Rows:        rows,
		Style:       DefaultStyle(),
	}
}

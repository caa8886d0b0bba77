package export

import (
	"bytes"
	"fmt"
)

// Service renders documents in the supported download formats
type Service struct {
	exporters map[Format]Exporter
}

// NewService creates a new export service
func NewService() *Service {
	return &Service{
		exporters: map[Format]Exporter{
			FormatPDF:   NewPDFExporter(),
			FormatExcel: NewExcelExporter(),
		},
	}
}

// Export renders the document in the requested format and returns the
// bytes, content type, and file extension
func (s *Service) Export(doc *Document, format Format) ([]byte, string, string, error) {
	exporter, ok := s.exporters[format]
	if !ok {
		return nil, "", "", fmt.Errorf("unsupported export format: %s", format)
	}

	var buf bytes.Buffer
	if err := exporter.Export(doc, &buf); err != nil {
		return nil, "", "", fmt.Errorf("export failed: %w", err)
	}

	return buf.Bytes(), exporter.GetContentType(), exporter.GetFileExtension(), nil
}

package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// ExcelExporter renders documents as .xlsx workbooks using excelize
type ExcelExporter struct {
	sheetName string
}

// NewExcelExporter creates a new Excel exporter
func NewExcelExporter() *ExcelExporter {
	return &ExcelExporter{
		sheetName: "Report",
	}
}

// Export writes the document as an Excel workbook
func (e *ExcelExporter) Export(doc *Document, writer io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", e.sheetName)

	rowIndex := 1
	if doc.Title != "" {
		f.SetCellValue(e.sheetName, fmt.Sprintf("A%d", rowIndex), doc.Title)
		titleStyle, _ := f.NewStyle(&excelize.Style{
			Font: &excelize.Font{
				Bold:   true,
				Size:   14,
				Family: doc.Style.FontFamily,
			},
		})
		f.SetCellStyle(e.sheetName, fmt.Sprintf("A%d", rowIndex), fmt.Sprintf("A%d", rowIndex), titleStyle)
		rowIndex += 2
	}

	headerStyle, err := e.headerStyle(f, doc.Style)
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	headerRow := rowIndex
	for colIndex, header := range doc.Headers {
		cell := columnName(colIndex+1) + strconv.Itoa(rowIndex)
		f.SetCellValue(e.sheetName, cell, header)
		f.SetCellStyle(e.sheetName, cell, cell, headerStyle)
	}
	rowIndex++

	plainStyle, _ := e.rowStyle(f, doc.Style, "")
	stripeStyle := plainStyle
	if doc.Style.AlternateRows {
		stripeStyle, _ = e.rowStyle(f, doc.Style, doc.Style.RowBgColor)
	}

	for rowIdx, row := range doc.Rows {
		for colIndex, value := range row {
			cell := columnName(colIndex+1) + strconv.Itoa(rowIndex)
			f.SetCellValue(e.sheetName, cell, value)
			if rowIdx%2 == 1 {
				f.SetCellStyle(e.sheetName, cell, cell, stripeStyle)
			} else {
				f.SetCellStyle(e.sheetName, cell, cell, plainStyle)
			}
		}
		rowIndex++
	}

	if doc.Style.FreezeHeader {
		f.SetPanes(e.sheetName, &excelize.Panes{
			Freeze:      true,
			XSplit:      0,
			YSplit:      headerRow,
			TopLeftCell: fmt.Sprintf("A%d", headerRow+1),
			ActivePane:  "bottomLeft",
		})
	}

	if doc.Style.AutoFilter && len(doc.Headers) > 0 {
		lastCol := columnName(len(doc.Headers))
		lastRow := headerRow + len(doc.Rows)
		f.AutoFilter(e.sheetName, fmt.Sprintf("A%d:%s%d", headerRow, lastCol, lastRow), nil)
	}

	if err := f.Write(writer); err != nil {
		return fmt.Errorf("failed to write Excel file: %w", err)
	}

	return nil
}

// GetContentType returns the MIME type for Excel files
func (e *ExcelExporter) GetContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// GetFileExtension returns the file extension for Excel files
func (e *ExcelExporter) GetFileExtension() string {
	return ".xlsx"
}

func (e *ExcelExporter) headerStyle(f *excelize.File, style Style) (int, error) {
	return f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold:   true,
			Size:   style.FontSize,
			Family: style.FontFamily,
			Color:  "FFFFFF",
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{stripHash(style.HeaderBgColor)},
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
}

func (e *ExcelExporter) rowStyle(f *excelize.File, style Style, bgColor string) (int, error) {
	rowStyle := &excelize.Style{
		Font: &excelize.Font{
			Size:   style.FontSize,
			Family: style.FontFamily,
		},
	}

	if bgColor != "" && bgColor != "#FFFFFF" {
		rowStyle.Fill = excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{stripHash(bgColor)},
		}
	}

	return f.NewStyle(rowStyle)
}

// columnName converts a column number to an Excel column name (1 -> A, 27 -> AA)
func columnName(col int) string {
	name := ""
	for col > 0 {
		col--
		name = string(rune('A'+(col%26))) + name
		col /= 26
	}
	return name
}

func stripHash(color string) string {
	if len(color) > 0 && color[0] == '#' {
		return color[1:]
	}
	return color
}

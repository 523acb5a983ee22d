package excel

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/kgbuilder/pkg/common"
	"github.com/OFFIS-RIT/kgbuilder/pkg/loader"

	"github.com/xuri/excelize/v2"
)

// maxTextRows caps the rows rendered into the text of one sheet.
const maxTextRows = 2000

// Parser reads .xlsx workbooks. Legacy .xls files are rejected by excelize
// and surface as parse errors.
type Parser struct{}

func NewParser() *Parser { return &Parser{} }

func (p *Parser) Parse(ctx context.Context, file loader.File, content []byte) (*loader.ParsedDocument, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	var sheets []loader.Sheet
	var texts []string
	for _, name := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", name, err)
		}
		sheet, ok := BuildSheet(name, rows)
		if !ok {
			continue
		}
		sheets = append(sheets, sheet)
		texts = append(texts, SheetText(sheet))
	}

	return &loader.ParsedDocument{
		Type:       common.FileTypeExcel,
		Text:       strings.Join(texts, "\n\n"),
		Sheets:     sheets,
		SheetCount: len(sheets),
	}, nil
}

// BuildSheet detects the header of raw rows and turns the rest into records.
// It reports false for sheets without any content.
func BuildSheet(name string, raw [][]string) (loader.Sheet, bool) {
	rows := make([][]string, 0, len(raw))
	width := 0
	for _, r := range raw {
		cells := make([]string, len(r))
		for i, c := range r {
			cells[i] = strings.TrimSpace(c)
		}
		rows = append(rows, cells)
		width = max(width, len(cells))
	}
	for len(rows) > 0 && isEmptyRow(rows[len(rows)-1]) {
		rows = rows[:len(rows)-1]
	}
	if len(rows) == 0 || width == 0 {
		return loader.Sheet{}, false
	}

	var headers []string
	start := 0
	if countContentRows(rows) == 1 {
		headers = columnNames(make([]string, width))
	} else {
		idx := DetectHeaderRow(rows)
		headers = columnNames(padRow(rows[idx], width))
		start = idx + 1
		if start < len(rows) && IsSubHeaderRow(rows[start]) {
			start++
		}
	}

	sheet := loader.Sheet{Name: name, Headers: headers}
	for _, r := range rows[start:] {
		if isEmptyRow(r) {
			continue
		}
		var rec common.Properties
		for i, cell := range r {
			if cell == "" || i >= len(headers) {
				continue
			}
			rec.Set(headers[i], common.String(cell))
		}
		sheet.Rows = append(sheet.Rows, rec)
	}
	return sheet, true
}

// SheetText renders a sheet in the line format the extraction prompt expects.
// Rows are separated by blank lines so that chunking keeps each row whole.
func SheetText(s loader.Sheet) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[Sheet: %s]\n", s.Name)
	fmt.Fprintf(&sb, "表头: %s\n", strings.Join(s.Headers, ", "))
	fmt.Fprintf(&sb, "数据行数: %d\n\n", len(s.Rows))
	for i, row := range s.Rows {
		if i == maxTextRows {
			break
		}
		parts := make([]string, 0, row.Len())
		for _, h := range s.Headers {
			if v := row.Text(h); v != "" {
				parts = append(parts, h+": "+v)
			}
		}
		fmt.Fprintf(&sb, "[行%d] %s\n\n", i+1, strings.Join(parts, " | "))
	}
	if len(s.Rows) > maxTextRows {
		fmt.Fprintf(&sb, "... 还有 %d 行数据 ...\n", len(s.Rows)-maxTextRows)
	}
	return sb.String()
}

// columnNames names blank header cells ColumnN and suffixes duplicates.
func columnNames(cells []string) []string {
	names := make([]string, len(cells))
	seen := make(map[string]int, len(cells))
	for i, c := range cells {
		name := c
		if name == "" {
			name = fmt.Sprintf("Column%d", i+1)
		}
		seen[name]++
		if n := seen[name]; n > 1 {
			name = fmt.Sprintf("%s_%d", name, n)
		}
		names[i] = name
	}
	return names
}

func padRow(r []string, width int) []string {
	if len(r) >= width {
		return r
	}
	out := make([]string, width)
	copy(out, r)
	return out
}

func isEmptyRow(r []string) bool {
	for _, c := range r {
		if c != "" {
			return false
		}
	}
	return true
}

func countContentRows(rows [][]string) int {
	n := 0
	for _, r := range rows {
		if !isEmptyRow(r) {
			n++
		}
	}
	return n
}

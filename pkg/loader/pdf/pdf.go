package pdf

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/kgbuilder/pkg/common"
	"github.com/OFFIS-RIT/kgbuilder/pkg/loader"
	"github.com/OFFIS-RIT/kgbuilder/pkg/logger"

	"github.com/ledongthuc/pdf"
)

// Parser extracts the text layer of PDF files page by page.
type Parser struct {
	ocr bool
}

// NewParser returns a PDF parser. With ocr set, a warning is logged for each
// document because scanned pages are not recognised.
func NewParser(ocr bool) *Parser {
	return &Parser{ocr: ocr}
}

func (p *Parser) Parse(ctx context.Context, file loader.File, content []byte) (doc *loader.ParsedDocument, err error) {
	// ledongthuc/pdf panics on some malformed streams
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}

	total := reader.NumPage()
	pages := make([]string, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			logger.Warn("[Loader] failed to read pdf page", "file", file.Name, "page", i, "err", err)
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}
	if p.ocr {
		logger.Warn("[Loader] PDF OCR requested but not available, using text layer only", "file", file.Name)
	}

	return &loader.ParsedDocument{
		Type:      common.FileTypePDF,
		Text:      strings.Join(pages, "\n"),
		PageCount: total,
	}, nil
}

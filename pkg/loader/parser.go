package loader

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/kgbuilder/internal/util"
	"github.com/OFFIS-RIT/kgbuilder/pkg/common"

	"golang.org/x/sync/singleflight"
)

// DocumentParser reads files from a Source and dispatches them to the parser
// registered for their type. Concurrent parses of the same file share one run.
type DocumentParser struct {
	source  Source
	formats map[common.FileType]FormatParser
	group   singleflight.Group
}

func NewDocumentParser(source Source, formats map[common.FileType]FormatParser) *DocumentParser {
	return &DocumentParser{source: source, formats: formats}
}

// Parse reads and parses file. Every failure is a *ParseError.
func (p *DocumentParser) Parse(ctx context.Context, file File) (*ParsedDocument, error) {
	fail := func(err error) error {
		return &ParseError{FileID: file.ID, Filename: file.Name, FileType: file.Type, Err: err}
	}
	if file.Type == "" {
		t, ok := DetectFileType(file.Name)
		if !ok {
			return nil, fail(fmt.Errorf("unsupported file type"))
		}
		file.Type = t
	}

	key := file.ID + "|" + file.Path
	res, err, _ := p.group.Do(key, func() (any, error) {
		content, err := p.source.ReadFile(ctx, file.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read file: %w", err)
		}
		return p.ParseContent(ctx, file, content)
	})
	if err != nil {
		return nil, fail(err)
	}
	doc := *res.(*ParsedDocument)
	return &doc, nil
}

// ParseContent parses content already in memory.
func (p *DocumentParser) ParseContent(ctx context.Context, file File, content []byte) (*ParsedDocument, error) {
	format, ok := p.formats[file.Type]
	if !ok {
		return nil, fmt.Errorf("no parser for file type %q", file.Type)
	}
	doc, err := format.Parse(ctx, file, content)
	if err != nil {
		return nil, err
	}
	doc.FileID = file.ID
	doc.Filename = file.Name
	doc.Type = file.Type
	doc.Preview = util.Truncate(doc.Text, PreviewLength)
	if doc.LineCount == 0 {
		doc.LineCount = CountLines(doc.Text)
	}
	if doc.SheetCount == 0 {
		doc.SheetCount = len(doc.Sheets)
	}
	return doc, nil
}

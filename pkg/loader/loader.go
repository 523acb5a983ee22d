package loader

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/OFFIS-RIT/kgbuilder/pkg/common"
)

// PreviewLength is the number of characters kept as document preview.
const PreviewLength = 2000

// File identifies a stored document to parse.
type File struct {
	ID   string
	Name string
	Path string
	Type common.FileType
}

// Source reads the raw bytes of a stored document.
type Source interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
}

// FormatParser turns the raw bytes of one file format into text.
// Implementations live in the subpackages of loader.
type FormatParser interface {
	Parse(ctx context.Context, file File, content []byte) (*ParsedDocument, error)
}

// Sheet is a spreadsheet tab with detected headers. Each row maps header to
// cell text in column order; empty cells are omitted.
type Sheet struct {
	Name    string
	Headers []string
	Rows    []common.Properties
}

// ParsedDocument is the normalised output of parsing one file.
type ParsedDocument struct {
	FileID     string
	Filename   string
	Type       common.FileType
	Text       string
	Preview    string
	Sheets     []Sheet
	SheetCount int
	PageCount  int
	LineCount  int
	Encoding   string
}

// ParseError is returned when a file cannot be read or decoded.
type ParseError struct {
	FileID   string
	Filename string
	FileType common.FileType
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s (%s): %v", e.Filename, e.FileType, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// DetectFileType maps a filename to its format family by extension.
func DetectFileType(filename string) (common.FileType, bool) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xls":
		return common.FileTypeExcel, true
	case ".docx", ".doc":
		return common.FileTypeWord, true
	case ".pdf":
		return common.FileTypePDF, true
	case ".txt":
		return common.FileTypeTxt, true
	}
	return "", false
}

// CountLines counts the non-blank lines of text.
func CountLines(text string) int {
	n := 0
	for line := range strings.SplitSeq(text, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}

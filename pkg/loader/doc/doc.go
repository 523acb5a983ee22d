package doc

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/OFFIS-RIT/kgbuilder/pkg/common"
	"github.com/OFFIS-RIT/kgbuilder/pkg/loader"
	"github.com/OFFIS-RIT/kgbuilder/pkg/logger"
)

const docXMLMax = 50 << 20

var controlChars = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F]`)

// Parser extracts text from Word documents. .docx files are read through
// their XML body; anything that fails to parse (including legacy .doc) is
// salvaged from its raw bytes.
type Parser struct{}

func NewParser() *Parser { return &Parser{} }

func (p *Parser) Parse(ctx context.Context, file loader.File, content []byte) (*loader.ParsedDocument, error) {
	text, err := parseDocx(content)
	if err != nil {
		logger.Warn("[Loader] docx parsing failed, falling back to raw text", "file", file.Name, "err", err)
		text = rawText(content)
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("no readable text in word document: %w", err)
		}
	}
	return &loader.ParsedDocument{
		Type: common.FileTypeWord,
		Text: text,
	}, nil
}

// rawText keeps the valid UTF-8 of content without control characters.
func rawText(content []byte) string {
	s := strings.ToValidUTF8(string(content), "")
	return controlChars.ReplaceAllString(s, "")
}

package text

import (
	"bytes"
	"context"
	"strings"
	"unicode/utf8"

	"github.com/OFFIS-RIT/kgbuilder/internal/util"
	"github.com/OFFIS-RIT/kgbuilder/pkg/common"
	"github.com/OFFIS-RIT/kgbuilder/pkg/loader"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
)

// maxReplacementRatio is the share of U+FFFD tolerated in a decoding.
const maxReplacementRatio = 0.05

type candidate struct {
	name string
	enc  encoding.Encoding
}

// candidates are tried in order; latin1 accepts any input and ends the list.
var candidates = []candidate{
	{"utf-8", nil},
	{"gbk", simplifiedchinese.GBK},
	{"gb18030", simplifiedchinese.GB18030},
	{"latin1", charmap.ISO8859_1},
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Parser reads plain text files of unknown encoding.
type Parser struct{}

func NewParser() *Parser { return &Parser{} }

func (p *Parser) Parse(ctx context.Context, file loader.File, content []byte) (*loader.ParsedDocument, error) {
	text, enc := Decode(content)
	text = util.NormalizeNewlines(text)
	return &loader.ParsedDocument{
		Type:      common.FileTypeTxt,
		Text:      text,
		Encoding:  enc,
		LineCount: loader.CountLines(text),
	}, nil
}

// Decode returns content as UTF-8 together with the name of the encoding
// that produced it.
func Decode(content []byte) (string, string) {
	if bytes.HasPrefix(content, utf8BOM) {
		return string(content[len(utf8BOM):]), "utf-8"
	}
	var last string
	for _, c := range candidates {
		var s string
		if c.enc == nil {
			s = decodeUTF8(content)
		} else {
			b, err := c.enc.NewDecoder().Bytes(content)
			if err != nil {
				continue
			}
			s = string(b)
		}
		last = s
		if replacementRatio(s) <= maxReplacementRatio {
			return s, c.name
		}
	}
	return last, "latin1"
}

// decodeUTF8 replaces every invalid byte with U+FFFD, so a run of foreign
// multi-byte text weighs as much as its byte count in the ratio.
func decodeUTF8(content []byte) string {
	if utf8.Valid(content) {
		return string(content)
	}
	var b strings.Builder
	b.Grow(len(content))
	for len(content) > 0 {
		r, size := utf8.DecodeRune(content)
		b.WriteRune(r)
		content = content[size:]
	}
	return b.String()
}

func replacementRatio(s string) float64 {
	total := utf8.RuneCountInString(s)
	if total == 0 {
		return 0
	}
	bad := strings.Count(s, "�")
	return float64(bad) / float64(total)
}

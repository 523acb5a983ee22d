package doc

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

const documentXML = "word/document.xml"

var reBlankLines = regexp.MustCompile(`\n{3,}`)

// parseDocx renders the body of a .docx as text. Paragraphs end in a
// newline and every top-level table row becomes one line of tab separated
// cells, so register-style tables keep one record per line. Deleted and
// moved-away revisions are dropped.
func parseDocx(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("not a docx archive: %w", err)
	}
	f, err := zr.Open(documentXML)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", documentXML, err)
	}
	defer f.Close()
	if info, err := f.Stat(); err == nil && info.Size() > docXMLMax {
		return "", fmt.Errorf("%s too large: %d bytes", documentXML, info.Size())
	}

	var w bodyWriter
	dec := xml.NewDecoder(io.LimitReader(f, docXMLMax))
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("decode %s: %w", documentXML, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			w.start(t.Name.Local)
		case xml.EndElement:
			w.end(t.Name.Local)
		case xml.CharData:
			if w.inText && w.hidden == 0 {
				w.out().Write(t)
			}
		}
	}

	text := reBlankLines.ReplaceAllString(strings.TrimSpace(w.body.String()), "\n\n")
	if text == "" {
		return "", errors.New("docx body contains no text")
	}
	return text, nil
}

// bodyWriter collects the text of a WordprocessingML body. Nested tables
// are flattened into the cell of the outer table.
type bodyWriter struct {
	body   strings.Builder
	cell   strings.Builder
	row    []string
	tables int
	hidden int
	props  int
	inText bool
}

func (w *bodyWriter) out() *strings.Builder {
	if w.tables > 0 {
		return &w.cell
	}
	return &w.body
}

// separator is the whitespace a line break or paragraph end becomes; inside
// a table it must not split the row.
func (w *bodyWriter) separator(outside byte) {
	if w.hidden > 0 {
		return
	}
	if w.tables > 0 {
		w.cell.WriteByte(' ')
		return
	}
	w.body.WriteByte(outside)
}

func (w *bodyWriter) start(name string) {
	switch name {
	case "del", "moveFrom":
		w.hidden++
	case "pPr":
		w.props++
	case "t":
		w.inText = true
	case "tab":
		// tab stops inside paragraph properties share the element name
		if w.props == 0 {
			w.separator('\t')
		}
	case "br", "cr":
		w.separator('\n')
	case "noBreakHyphen":
		if w.hidden == 0 {
			w.out().WriteByte('-')
		}
	case "tbl":
		w.tables++
		if w.tables == 1 && w.body.Len() > 0 && !strings.HasSuffix(w.body.String(), "\n") {
			w.body.WriteByte('\n')
		}
	case "tr":
		if w.tables == 1 {
			w.row = w.row[:0]
		}
	case "tc":
		if w.tables == 1 {
			w.cell.Reset()
		}
	}
}

func (w *bodyWriter) end(name string) {
	switch name {
	case "del", "moveFrom":
		if w.hidden > 0 {
			w.hidden--
		}
	case "pPr":
		if w.props > 0 {
			w.props--
		}
	case "t":
		w.inText = false
	case "p":
		w.separator('\n')
	case "tc":
		if w.tables == 1 {
			w.row = append(w.row, strings.Join(strings.Fields(w.cell.String()), " "))
		}
	case "tr":
		if w.tables == 1 && strings.Join(w.row, "") != "" {
			w.body.WriteString(strings.Join(w.row, "\t"))
			w.body.WriteByte('\n')
		}
	case "tbl":
		if w.tables > 0 {
			w.tables--
		}
		if w.tables == 0 {
			w.body.WriteByte('\n')
		}
	}
}

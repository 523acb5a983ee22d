package graph

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// splitText cuts text into chunks of at most maxRunes characters at blank
// lines. A paragraph longer than maxRunes becomes a chunk of its own. Text
// without any content yields the whole text as the only chunk.
func splitText(text string, maxRunes int) []string {
	var (
		chunks  []string
		current string
	)
	for _, p := range paragraphBreak.Split(text, -1) {
		if utf8.RuneCountInString(current)+utf8.RuneCountInString(p) <= maxRunes {
			if current == "" {
				current = p
			} else {
				current += "\n\n" + p
			}
			continue
		}
		if c := strings.TrimSpace(current); c != "" {
			chunks = append(chunks, c)
		}
		current = p
	}
	if c := strings.TrimSpace(current); c != "" {
		chunks = append(chunks, c)
	}
	if len(chunks) == 0 {
		return []string{text}
	}
	return chunks
}

// combineFiles renders all files into one document, each introduced by its
// name.
func combineFiles(files []ParsedFile) string {
	parts := make([]string, 0, len(files))
	for _, f := range files {
		body := f.Text
		if body == "" {
			body = f.Preview
		}
		parts = append(parts, "[文件: "+f.Filename+"]\n"+body)
	}
	return strings.Join(parts, "\n\n---\n\n")
}

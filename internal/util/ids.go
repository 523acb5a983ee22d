package util

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// NewID returns a fresh record id for tasks, files and ontologies.
func NewID() string {
	return gonanoid.Must()
}

// DraftID builds the id of the idx-th draft item of one extraction run,
// e.g. entity_1718000000000_3. All items of a run share the same stamp.
func DraftID(kind string, stamp time.Time, idx int) string {
	return fmt.Sprintf("%s_%d_%d", kind, stamp.UnixMilli(), idx)
}

// StorageKey names an uploaded file in file storage. The original name is kept
// as a suffix so stored files stay recognisable.
func StorageKey(originalName string) string {
	base := filepath.Base(strings.ReplaceAll(originalName, "\\", "/"))
	base = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\x00':
			return '_'
		}
		return r
	}, base)
	if base == "." || base == "" {
		return uuid.NewString()
	}
	return uuid.NewString() + "_" + base
}

func isNanoid(s string) bool {
	if len(s) != 21 {
		return false
	}
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' || r == '-') {
			return false
		}
	}
	return true
}

package store

import (
	"slices"

	"github.com/OFFIS-RIT/kgbuilder/pkg/common"
)

// AppendSourceFiles returns existing plus every id of add it does not hold
// yet, keeping order.
func AppendSourceFiles(existing, add []string) []string {
	out := slices.Clone(existing)
	for _, id := range add {
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// RemoveSourceFiles returns existing without the ids in remove.
func RemoveSourceFiles(existing, remove []string) []string {
	out := make([]string, 0, len(existing))
	for _, id := range existing {
		if !slices.Contains(remove, id) {
			out = append(out, id)
		}
	}
	return out
}

// NodeProperties returns the properties stored on the node: the written
// properties with name and type set.
func (w EntityWrite) NodeProperties() common.Properties {
	props := w.Properties.Clone()
	props.Set("name", common.String(w.Name))
	props.Set("type", common.String(w.Type))
	return props
}

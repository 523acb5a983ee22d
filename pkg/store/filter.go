package store

const (
	DefaultGraphLimit = 100
	MaxGraphLimit     = 500
	DefaultDepth      = 1
	MaxDepth          = 5
)

// GraphFilter selects nodes for QueryGraph. Keyword matches names and the
// serialised properties; Type matches exactly.
type GraphFilter struct {
	Keyword string
	Type    string
	Limit   int
	Offset  int
}

// Normalize applies the default limit and clamps limit and offset.
func (f GraphFilter) Normalize() GraphFilter {
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultGraphLimit
	case f.Limit > MaxGraphLimit:
		f.Limit = MaxGraphLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// NormalizeDepth clamps a network traversal depth to 1..MaxDepth.
func NormalizeDepth(depth int) int {
	if depth <= 0 {
		return DefaultDepth
	}
	return min(depth, MaxDepth)
}

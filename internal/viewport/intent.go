package viewport

import (
	"encoding/json"
	"fmt"

	"imagery-compare/internal/geo"
)

// Kind identifies what a viewport intent asks the map to do
type Kind int

const (
	KindCenter Kind = iota + 1
	KindFitBounds
)

func (k Kind) String() string {
	switch k {
	case KindCenter:
		return "center"
	case KindFitBounds:
		return "fitBounds"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MarshalJSON encodes the kind by name
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// Intent is a pending instruction to move the map
type Intent struct {
	Kind   Kind           `json:"kind"`
	Center geo.Coordinate `json:"center"`
	Zoom   int            `json:"zoom,omitempty"`
	Bounds geo.Bounds     `json:"bounds"`
	Seq    uint64         `json:"seq"` // Issue order, starts at 1
}

func (i Intent) String() string {
	if i.Kind == KindFitBounds {
		return fmt.Sprintf("fitBounds#%d %v", i.Seq, i.Bounds)
	}
	return fmt.Sprintf("center#%d %s z%d", i.Seq, i.Center, i.Zoom)
}

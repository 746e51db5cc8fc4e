package computation

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// Strategy produces the displayed value for one item
type Strategy interface {
	Compute(item Item) string
}

// RandomStrategy simulates index values: uniform samples in the item's range, a
// random qualitative label, or a sampled percentage put into the item's template.
type RandomStrategy struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomStrategy seeds a RandomStrategy. A zero seed uses the current time.
func NewRandomStrategy(seed int64) *RandomStrategy {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RandomStrategy{rng: rand.New(rand.NewSource(seed))}
}

func (s *RandomStrategy) Compute(item Item) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch item.Kind {
	case ResultLabel:
		if len(item.Labels) == 0 {
			return ""
		}
		return item.Labels[s.rng.Intn(len(item.Labels))]
	case ResultPercent:
		return fmt.Sprintf(item.Template, s.sample(item.Low, item.High))
	default:
		return fmt.Sprintf("%.4f", s.sample(item.Low, item.High))
	}
}

func (s *RandomStrategy) sample(low, high float64) float64 {
	return low + s.rng.Float64()*(high-low)
}

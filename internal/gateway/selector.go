// Package gateway spreads content-addressed fetches across interchangeable
// gateway hosts using weight-proportional random selection.
package gateway

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/patrickwarner/spaceforward/internal/observability"
)

// Gateway is a candidate gateway base URL with its selection weight.
type Gateway struct {
	BaseURL string
	Weight  int
}

// RandomGenerator draws a uniform integer in [0, n).
type RandomGenerator interface {
	Intn(n int) int
}

type mathRand struct{}

// math/rand top-level functions are safe for concurrent use.
func (mathRand) Intn(n int) int { return rand.Intn(n) }

// ErrNoGateways is returned when a Selector is built without usable gateways.
var ErrNoGateways = errors.New("no gateways configured")

// Selector picks a gateway with probability proportional to its weight.
// The gateway list and its prefix sums are fixed at construction; the draw is
// made fresh on every call.
type Selector struct {
	gateways   []Gateway
	cumulative []int
	rng        RandomGenerator
	metrics    observability.MetricsRegistry
}

// NewSelector validates the gateway list and precomputes cumulative weights.
// A nil rng uses math/rand; nil metrics disables selection counting.
func NewSelector(gateways []Gateway, rng RandomGenerator, metrics observability.MetricsRegistry) (*Selector, error) {
	if len(gateways) == 0 {
		return nil, ErrNoGateways
	}
	cumulative := make([]int, len(gateways))
	total := 0
	for i, g := range gateways {
		if g.Weight <= 0 {
			return nil, fmt.Errorf("gateway %s: weight must be positive, got %d", g.BaseURL, g.Weight)
		}
		if g.BaseURL == "" {
			return nil, fmt.Errorf("gateway %d: empty base URL", i)
		}
		total += g.Weight
		cumulative[i] = total
	}
	if rng == nil {
		rng = mathRand{}
	}
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}

	gws := make([]Gateway, len(gateways))
	copy(gws, gateways)
	return &Selector{gateways: gws, cumulative: cumulative, rng: rng, metrics: metrics}, nil
}

// Select returns the base URL of the first gateway whose cumulative weight
// strictly exceeds a draw in [0, totalWeight).
func (s *Selector) Select() string {
	g := s.gateways[s.index(s.rng.Intn(s.total()))]
	s.metrics.IncrementGatewaySelections(g.BaseURL)
	return g.BaseURL
}

// Gateways returns a copy of the configured gateways.
func (s *Selector) Gateways() []Gateway {
	out := make([]Gateway, len(s.gateways))
	copy(out, s.gateways)
	return out
}

func (s *Selector) total() int {
	return s.cumulative[len(s.cumulative)-1]
}

func (s *Selector) index(draw int) int {
	for i, c := range s.cumulative {
		if c > draw {
			return i
		}
	}
	// unreachable for draws in range
	return len(s.cumulative) - 1
}

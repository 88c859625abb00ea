package models

import (
	"fmt"
	"sort"
	"strings"
)

// Network is a supported chain. Each network maps to exactly one indexer endpoint
// and one numeric chain id.
type Network struct {
	Name       string // Canonical name used in logs and metrics (e.g. "polygon").
	ChainID    int    // Numeric chain id appended to platform space links.
	IndexerURL string // GraphQL endpoint of the indexer deployment for this chain.
}

// NetworkTable resolves request network values to networks. Keys are the values
// accepted in the request path, so aliases (e.g. "matic") map to the same Network
// as their canonical name. A NetworkTable is built once at start and never mutated.
type NetworkTable map[string]Network

// Lookup resolves a request network value. Unknown values return ErrUnsupportedNetwork.
func (t NetworkTable) Lookup(name string) (Network, error) {
	n, ok := t[strings.ToLower(name)]
	if !ok {
		return Network{}, fmt.Errorf("%w: %q", ErrUnsupportedNetwork, name)
	}
	return n, nil
}

// Names returns the accepted request network values in sorted order.
func (t NetworkTable) Names() []string {
	names := make([]string, 0, len(t))
	for k := range t {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

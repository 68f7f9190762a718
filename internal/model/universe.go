package model

import "time"

// Provenance records which resolution tier produced a ticker universe.
type Provenance string

const (
	ProvenanceFreshCache Provenance = "fresh-cache"
	ProvenanceRemote     Provenance = "remote"
	ProvenanceStaleCache Provenance = "stale-cache"
	ProvenanceFallback   Provenance = "fallback"
)

// TickerUniverse is the ordered list of symbols to scan.
type TickerUniverse struct {
	Symbols    []string
	FetchedAt  time.Time
	Provenance Provenance
}

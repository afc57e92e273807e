package strategy

// Strategy is the retrieval route chosen for a query.
type Strategy string

// Routing strategy constants.
const (
	// StoreOnly answers from the local document store alone.
	StoreOnly Strategy = "store_only"
	// LiveLookupOnly skips the store and relies on a live web lookup.
	LiveLookupOnly Strategy = "live_lookup_only"
	// Hybrid combines store results with a live web lookup.
	Hybrid Strategy = "hybrid"
)

// IsValid checks if the strategy is one of the supported values.
func (s Strategy) IsValid() bool {
	return s == StoreOnly || s == LiveLookupOnly || s == Hybrid
}

// UsesStore reports whether the strategy reads the local document store.
func (s Strategy) UsesStore() bool {
	return s == StoreOnly || s == Hybrid
}

// UsesLiveLookup reports whether the strategy needs a live web lookup.
func (s Strategy) UsesLiveLookup() bool {
	return s == LiveLookupOnly || s == Hybrid
}

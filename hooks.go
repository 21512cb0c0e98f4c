package swrcache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The cache calls them on hot paths.
type Hooks interface {
	// An entry was deleted by the cache on read.
	// reason ∈ {"corrupt", "value_decode"}
	SelfHeal(storageKey, reason string)

	// The backing store errored on read; the cache reported a miss.
	StoreReadError(storageKey string, err error)

	// The backing store errored on write; the write was dropped.
	StoreWriteError(storageKey string, err error)

	// A background stale-while-revalidate refresh settled with an error.
	RefreshFailed(key string, err error)

	// A revalidation found a refresh for the same key already in flight
	// and joined it instead of fetching again.
	RefreshJoined(key string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) SelfHeal(string, string)       {}
func (NopHooks) StoreReadError(string, error)  {}
func (NopHooks) StoreWriteError(string, error) {}
func (NopHooks) RefreshFailed(string, error)   {}
func (NopHooks) RefreshJoined(string)          {}

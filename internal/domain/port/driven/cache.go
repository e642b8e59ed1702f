package driven

import "context"

// Cache defines the driven port for the summary cache. Delete reports
// whether a value was actually removed; the refresh controller uses that
// signal to decide whether recomputation is due. There is no transactional
// guarantee against concurrent writers: a duplicate recomputation after a
// race is acceptable because aggregation is pure.
type Cache interface {
	Get(ctx context.Context, key string) (any, bool)
	Set(ctx context.Context, key string, value any) error
	// Delete removes the key and reports whether it existed.
	Delete(ctx context.Context, key string) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
}

package artifact

import "context"

// Store defines artifact persistence. Implementations must be thread-safe and
// scope artifacts by session identifier. Short method names (Save/Get/List/
// Delete) mirror the session store for consistency.
type Store interface {
	Save(ctx context.Context, sessionID, name string, data []byte) error
	Get(ctx context.Context, sessionID, name string) ([]byte, error)
	List(ctx context.Context, sessionID string) ([]string, error)
	Delete(ctx context.Context, sessionID, name string) error
}

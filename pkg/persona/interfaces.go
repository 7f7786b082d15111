package persona

import "context"

// Store provides durable persistence for profiles and the interaction log.
type Store interface {
	Close() error

	// GetProfile loads a profile document; found is false for unseen users.
	GetProfile(ctx context.Context, userID string) (profile UserProfile, found bool, err error)
	// UpsertProfile writes the whole profile document for its user.
	UpsertProfile(ctx context.Context, profile UserProfile) error

	// AppendInteraction persists one interaction and trims the per-user log
	// to its retention cap, dropping oldest entries first.
	AppendInteraction(ctx context.Context, in Interaction) error
	// RecentInteractions returns up to limit interactions in append order.
	// Unknown users yield an empty slice, not an error.
	RecentInteractions(ctx context.Context, userID string, limit int) ([]Interaction, error)
	// InteractionCount reports retained (not lifetime) log entries.
	InteractionCount(ctx context.Context, userID string) (int, error)
}

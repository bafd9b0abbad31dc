package sessions

import (
	"context"
	"time"

	"github.com/haasonsaas/agentcore/pkg/models"
)

// Store is the interface for session persistence: the durable Session
// record plus its transcript, so a session can be reconstructed after a
// process restart or on a different cluster node (see DBLocker).
type Store interface {
	// Session CRUD
	Create(ctx context.Context, session *models.Session) error
	Get(ctx context.Context, id string) (*models.Session, error)
	Update(ctx context.Context, session *models.Session) error
	Delete(ctx context.Context, id string) error

	// Session lookup
	GetByKey(ctx context.Context, key string) (*models.Session, error)
	GetOrCreate(ctx context.Context, key string, channel models.ChannelType, channelID string) (*models.Session, error)
	List(ctx context.Context, opts ListOptions) ([]*models.Session, error)

	// IdleSince returns sessions whose LastActivity is older than cutoff,
	// used by the idle-session sweep to close abandoned sessions.
	IdleSince(ctx context.Context, cutoff time.Time) ([]*models.Session, error)

	// Transcript
	AppendMessage(ctx context.Context, sessionID string, msg *models.Message) error
	GetHistory(ctx context.Context, sessionID string, limit int) ([]*models.Message, error)
}

// ListOptions configures session listing.
type ListOptions struct {
	Channel models.ChannelType
	Limit   int
	Offset  int
}

// SessionKey builds a unique session key for a front-end connection.
func SessionKey(channel models.ChannelType, channelID string) string {
	return string(channel) + ":" + channelID
}

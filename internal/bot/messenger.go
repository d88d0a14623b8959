package bot

import (
	"context"

	"github.com/annasalon/booking-assistant/internal/booking"
)

// OutboundMessage is one fully rendered message: localized text plus an
// optional keyboard whose button labels are already resolved.
type OutboundMessage struct {
	UserID   int64
	Text     string
	Keyboard booking.Keyboard
}

// Messenger delivers rendered messages to the user's channel. Implementations
// exist per transport; the worker never knows which one it talks to.
type Messenger interface {
	Send(ctx context.Context, msg OutboundMessage) error
}

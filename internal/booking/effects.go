package booking

import (
	"time"

	"github.com/annasalon/booking-assistant/internal/reminder"
)

// Effect is one element of the ordered side-effect list a transition produces.
// The worker executes effects in order; the machine itself never touches
// storage, messaging, or timers.
type Effect interface{ isEffect() }

// KeyboardKind selects how a keyboard is rendered by the transport.
type KeyboardKind int

const (
	KeyboardNone KeyboardKind = iota
	// KeyboardReply replaces the user's persistent menu keyboard.
	KeyboardReply
	// KeyboardInline attaches selectable buttons carrying callback data.
	KeyboardInline
)

// Button is one selectable option. Label is literal text; LabelKey, when set,
// is resolved through the localization collaborator instead. Data is the
// callback payload for inline buttons.
type Button struct {
	Label    string
	LabelKey string
	Data     string
}

// Keyboard is a grid of buttons attached to an outbound message.
type Keyboard struct {
	Kind KeyboardKind
	Rows [][]Button
}

// SendMessage directs the messaging collaborator to deliver text to the user.
// Key+Args name a localized template; Text carries literal content (generated
// replies, service lists). Exactly one of Key or Text is set.
type SendMessage struct {
	Key      string
	Args     []any
	Text     string
	Keyboard Keyboard
}

// PersistSession requests a full durable snapshot of the session store.
type PersistSession struct{}

// ScheduleReminder requests a one-shot reminder job.
type ScheduleReminder struct {
	FireAt  time.Time
	Payload reminder.Payload
}

func (SendMessage) isEffect()      {}
func (PersistSession) isEffect()   {}
func (ScheduleReminder) isEffect() {}

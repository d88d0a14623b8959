package booking

import (
	"strconv"
	"strings"

	"github.com/annasalon/booking-assistant/internal/session"
)

// Command is the stable menu command set. Core logic dispatches on these, never
// on translated labels; the label-to-command mapping lives at the decode
// boundary.
type Command int

const (
	CommandShowServices Command = iota
	CommandShowPrices
	CommandStartBooking
	CommandCheckAppointments
	CommandCancelAppointment
	CommandHelp
)

// String returns the command's stable identifier.
func (c Command) String() string {
	switch c {
	case CommandShowServices:
		return "show_services"
	case CommandShowPrices:
		return "show_prices"
	case CommandStartBooking:
		return "start_booking"
	case CommandCheckAppointments:
		return "check_appointments"
	case CommandCancelAppointment:
		return "cancel_appointment"
	case CommandHelp:
		return "help"
	default:
		return "unknown"
	}
}

// LabelKey returns the localization key whose translated value is the menu
// button text for this command.
func (c Command) LabelKey() string {
	switch c {
	case CommandShowServices:
		return "services"
	case CommandShowPrices:
		return "prices"
	case CommandStartBooking:
		return "book_service"
	case CommandCheckAppointments:
		return "check_appointments"
	case CommandCancelAppointment:
		return "cancel_appointment"
	case CommandHelp:
		return "help"
	default:
		return ""
	}
}

// MenuCommands lists every menu command in display order.
func MenuCommands() []Command {
	return []Command{
		CommandStartBooking,
		CommandShowServices,
		CommandShowPrices,
		CommandHelp,
		CommandCheckAppointments,
		CommandCancelAppointment,
	}
}

// Event is the closed set of inbound events. Raw text and callback payloads
// are decoded into these variants once, at the boundary; handlers never parse
// strings.
type Event interface{ isEvent() }

// StartEvent is a first-contact or /start command.
type StartEvent struct {
	Name string
}

// MenuEvent is an exact match of a localized menu label.
type MenuEvent struct {
	Command Command
}

// FreeTextEvent is text that matched no menu label. Outside of language
// selection it is answered by the free-form generator, not by the machine.
type FreeTextEvent struct {
	Text string
	Name string
}

// AssistantReplyEvent carries the generated answer for a FreeTextEvent.
// Service is non-empty when a known service name was recognized in the reply,
// which drives a start-booking transition.
type AssistantReplyEvent struct {
	Text    string
	Service string
}

// AssistantFailedEvent reports that the free-form generator was unavailable.
type AssistantFailedEvent struct{}

// PickServiceEvent is a service_ callback.
type PickServiceEvent struct {
	Service string
}

// PickDateEvent is a date_ callback.
type PickDateEvent struct {
	Date session.Date
}

// PickTimeEvent is a time_ callback.
type PickTimeEvent struct {
	Time session.TimeOfDay
}

// ConfirmEvent is a confirm_yes / confirm_no callback.
type ConfirmEvent struct {
	Accepted bool
}

// CancelAppointmentEvent is a cancel_<index> callback selecting an existing
// appointment from the indexed cancellation list.
type CancelAppointmentEvent struct {
	Index int
}

// CancelEvent is an explicit /cancel command.
type CancelEvent struct{}

// InvalidEvent is produced for malformed payloads; it yields a corrective
// message and leaves the state unchanged.
type InvalidEvent struct {
	Raw string
}

func (StartEvent) isEvent()             {}
func (MenuEvent) isEvent()              {}
func (FreeTextEvent) isEvent()          {}
func (AssistantReplyEvent) isEvent()    {}
func (AssistantFailedEvent) isEvent()   {}
func (PickServiceEvent) isEvent()       {}
func (PickDateEvent) isEvent()          {}
func (PickTimeEvent) isEvent()          {}
func (ConfirmEvent) isEvent()           {}
func (CancelAppointmentEvent) isEvent() {}
func (CancelEvent) isEvent()            {}
func (InvalidEvent) isEvent()           {}

// Callback command prefixes forwarded verbatim by the messaging layer.
const (
	prefixService = "service_"
	prefixDate    = "date_"
	prefixTime    = "time_"
	prefixCancel  = "cancel_"
	dataConfirmNo = "confirm_no"
	// DataConfirmYes is the confirmation callback payload.
	DataConfirmYes = "confirm_yes"
)

// DecodeCallback parses a structured callback payload into an event. Malformed
// payloads decode to InvalidEvent, never an error: a bad button press must not
// crash a handler.
func DecodeCallback(data string) Event {
	switch {
	case data == DataConfirmYes:
		return ConfirmEvent{Accepted: true}
	case data == dataConfirmNo:
		return ConfirmEvent{Accepted: false}
	case strings.HasPrefix(data, prefixService):
		service := strings.TrimPrefix(data, prefixService)
		if strings.TrimSpace(service) == "" {
			return InvalidEvent{Raw: data}
		}
		return PickServiceEvent{Service: service}
	case strings.HasPrefix(data, prefixDate):
		date, err := session.ParseDate(strings.TrimPrefix(data, prefixDate))
		if err != nil {
			return InvalidEvent{Raw: data}
		}
		return PickDateEvent{Date: date}
	case strings.HasPrefix(data, prefixTime):
		tod, err := session.ParseTimeOfDay(strings.TrimPrefix(data, prefixTime))
		if err != nil {
			return InvalidEvent{Raw: data}
		}
		return PickTimeEvent{Time: tod}
	case strings.HasPrefix(data, prefixCancel):
		index, err := strconv.Atoi(strings.TrimPrefix(data, prefixCancel))
		if err != nil {
			return InvalidEvent{Raw: data}
		}
		return CancelAppointmentEvent{Index: index}
	default:
		return InvalidEvent{Raw: data}
	}
}

// LabelSource resolves a localization key for a language. Implemented by the
// i18n collaborator.
type LabelSource interface {
	Lookup(key, lang string, args ...any) string
}

// DecodeText maps inbound text to a menu command by exact string equality
// against the user's localized menu labels. Anything else is free text.
func DecodeText(text, lang, name string, labels LabelSource) Event {
	for _, cmd := range MenuCommands() {
		if label := labels.Lookup(cmd.LabelKey(), lang); label != "" && label == text {
			return MenuEvent{Command: cmd}
		}
	}
	return FreeTextEvent{Text: text, Name: name}
}

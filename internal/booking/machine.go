// Package booking implements the conversational booking state machine: a
// deterministic transition function over decoded events that mutates the
// user's session and emits an ordered list of side effects.
package booking

import (
	"fmt"
	"strings"
	"time"

	"github.com/annasalon/booking-assistant/internal/catalog"
	"github.com/annasalon/booking-assistant/internal/observability/metrics"
	"github.com/annasalon/booking-assistant/internal/reminder"
	"github.com/annasalon/booking-assistant/internal/session"
)

// State is the conversational state of one user.
type State int

const (
	StateSelectingLanguage State = iota
	StateChoosing
	StateBookingService
	StateBookingDate
	StateBookingTime
	StateBookingConfirm
)

// String returns the state's stable identifier.
func (s State) String() string {
	switch s {
	case StateSelectingLanguage:
		return "selecting_language"
	case StateChoosing:
		return "choosing"
	case StateBookingService:
		return "booking_service"
	case StateBookingDate:
		return "booking_date"
	case StateBookingTime:
		return "booking_time"
	case StateBookingConfirm:
		return "booking_confirm"
	default:
		return "unknown"
	}
}

// Config tunes the machine's calendar and reminder behavior.
type Config struct {
	// WindowDays is how many days ahead the date keyboard offers.
	WindowDays int
	// Slots is the fixed set of bookable times per day.
	Slots []session.TimeOfDay
	// ReminderLead is how long before the appointment the reminder fires.
	ReminderLead time.Duration
	// Location anchors "today" and slot filtering.
	Location *time.Location
	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// Machine interprets inbound events against a session.
type Machine struct {
	catalog *catalog.Catalog
	cfg     Config
	metrics *metrics.BookingMetrics
}

// NewMachine builds a machine over the given catalog.
func NewMachine(cat *catalog.Catalog, cfg Config, m *metrics.BookingMetrics) *Machine {
	if cat == nil {
		panic("booking: catalog cannot be nil")
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 7
	}
	if len(cfg.Slots) == 0 {
		cfg.Slots = HourlySlots(9, 18)
	}
	if cfg.ReminderLead <= 0 {
		cfg.ReminderLead = 24 * time.Hour
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Machine{catalog: cat, cfg: cfg, metrics: m}
}

// HourlySlots builds the slot grid for hourly appointments in [open, close].
func HourlySlots(open, close int) []session.TimeOfDay {
	var slots []session.TimeOfDay
	for h := open; h <= close; h++ {
		slots = append(slots, session.TimeOfDay{Hour: h})
	}
	return slots
}

// Handle computes one transition: it mutates sess in place and returns the new
// state plus the ordered side effects the caller must execute. It never
// performs I/O itself.
func (m *Machine) Handle(state State, sess *session.Session, ev Event) (State, []Effect) {
	sess.Touch(m.cfg.Clock())

	next, effects := m.dispatch(state, sess, ev)
	m.metrics.ObserveTransition(next.String())
	return next, effects
}

func (m *Machine) dispatch(state State, sess *session.Session, ev Event) (State, []Effect) {
	switch e := ev.(type) {
	case StartEvent:
		return m.handleStart(e)
	case FreeTextEvent:
		if state == StateSelectingLanguage {
			return m.handleLanguagePick(sess, e)
		}
		// Free text outside language selection is answered by the
		// assistant; the worker converts it before it reaches here.
		return m.stay(state, SendMessage{Key: "invalid_input"})
	case MenuEvent:
		return m.handleMenu(state, sess, e.Command)
	case AssistantReplyEvent:
		return m.handleAssistantReply(state, sess, e)
	case AssistantFailedEvent:
		return m.stay(state, SendMessage{Key: "assistant_unavailable"})
	case PickServiceEvent:
		return m.handlePickService(state, sess, e)
	case PickDateEvent:
		return m.handlePickDate(state, sess, e)
	case PickTimeEvent:
		return m.handlePickTime(state, sess, e)
	case ConfirmEvent:
		return m.handleConfirm(state, sess, e)
	case CancelAppointmentEvent:
		return m.handleCancelAppointment(state, sess, e)
	case CancelEvent:
		sess.ClearSelection()
		return StateChoosing, []Effect{PersistSession{}, SendMessage{Key: "booking_cancelled"}}
	case InvalidEvent:
		return m.stay(state, SendMessage{Key: "invalid_input"})
	default:
		return m.stay(state, SendMessage{Key: "invalid_input"})
	}
}

// stay keeps the current state, persisting only the interaction timestamp.
func (m *Machine) stay(state State, msg SendMessage) (State, []Effect) {
	return state, []Effect{PersistSession{}, msg}
}

func (m *Machine) handleStart(_ StartEvent) (State, []Effect) {
	keyboard := Keyboard{Kind: KeyboardReply, Rows: [][]Button{
		{{Label: "🇺🇸 English"}, {Label: "🇷🇺 Русский"}},
	}}
	return StateSelectingLanguage, []Effect{
		PersistSession{},
		SendMessage{Key: "select_language", Keyboard: keyboard},
	}
}

func (m *Machine) handleLanguagePick(sess *session.Session, e FreeTextEvent) (State, []Effect) {
	if strings.Contains(e.Text, "English") {
		sess.Language = "en"
	} else {
		sess.Language = "ru"
	}

	return StateChoosing, []Effect{
		PersistSession{},
		SendMessage{Key: "welcome", Args: []any{e.Name}, Keyboard: m.menuKeyboard()},
	}
}

func (m *Machine) menuKeyboard() Keyboard {
	return Keyboard{Kind: KeyboardReply, Rows: [][]Button{
		{{LabelKey: "book_service"}, {LabelKey: "services"}},
		{{LabelKey: "prices"}, {LabelKey: "help"}},
		{{LabelKey: "check_appointments"}},
		{{LabelKey: "cancel_appointment"}},
	}}
}

func (m *Machine) handleMenu(state State, sess *session.Session, cmd Command) (State, []Effect) {
	switch cmd {
	case CommandShowServices:
		var lines []string
		for _, svc := range m.catalog.Services() {
			lines = append(lines, "- "+svc.Name)
		}
		return m.stay(state, SendMessage{Text: strings.Join(lines, "\n")})
	case CommandShowPrices:
		var lines []string
		for _, svc := range m.catalog.Services() {
			lines = append(lines, fmt.Sprintf("%s: %s", svc.Name, svc.PriceFrom))
		}
		return m.stay(state, SendMessage{Text: strings.Join(lines, "\n")})
	case CommandStartBooking:
		return StateBookingService, []Effect{
			PersistSession{},
			SendMessage{Key: "select_service", Keyboard: m.serviceKeyboard()},
		}
	case CommandCheckAppointments:
		if len(sess.Appointments) == 0 {
			return m.stay(state, SendMessage{Key: "no_appointments"})
		}
		return m.stay(state, SendMessage{Key: "appointments_list", Args: []any{appointmentLines(sess.Appointments)}})
	case CommandCancelAppointment:
		if len(sess.Appointments) == 0 {
			return m.stay(state, SendMessage{Key: "no_appointments_to_cancel"})
		}
		return m.stay(state, SendMessage{
			Key:      "select_appointment_to_cancel",
			Keyboard: cancelKeyboard(sess.Appointments),
		})
	case CommandHelp:
		return m.stay(state, SendMessage{Key: "help_text"})
	default:
		return m.stay(state, SendMessage{Key: "invalid_input"})
	}
}

func (m *Machine) handleAssistantReply(state State, sess *session.Session, e AssistantReplyEvent) (State, []Effect) {
	effects := []Effect{PersistSession{}, SendMessage{Text: e.Text}}

	if e.Service == "" {
		return state, effects
	}
	if _, ok := m.catalog.Get(e.Service); !ok {
		return state, effects
	}

	// A recognized service name in the generated answer starts the booking
	// flow for that service.
	sess.SelectedService = e.Service
	effects = append(effects, SendMessage{Key: "select_date", Keyboard: m.dateKeyboard()})
	return StateBookingDate, effects
}

func (m *Machine) handlePickService(state State, sess *session.Session, e PickServiceEvent) (State, []Effect) {
	if state != StateBookingService {
		return m.stay(state, SendMessage{Key: "invalid_input"})
	}
	svc, ok := m.catalog.Get(e.Service)
	if !ok {
		return m.stay(state, SendMessage{Key: "invalid_input"})
	}

	sess.SelectedService = svc.Name
	return StateBookingDate, []Effect{
		PersistSession{},
		SendMessage{Key: "select_date", Keyboard: m.dateKeyboard()},
	}
}

func (m *Machine) handlePickDate(state State, sess *session.Session, e PickDateEvent) (State, []Effect) {
	if state != StateBookingDate {
		return m.stay(state, SendMessage{Key: "invalid_input"})
	}

	date := e.Date
	sess.SelectedDate = &date
	return StateBookingTime, []Effect{
		PersistSession{},
		SendMessage{Key: "select_time", Keyboard: m.timeKeyboard(date)},
	}
}

func (m *Machine) handlePickTime(state State, sess *session.Session, e PickTimeEvent) (State, []Effect) {
	if state != StateBookingTime || sess.SelectedDate == nil {
		return m.stay(state, SendMessage{Key: "invalid_input"})
	}

	if sess.HasConflict(*sess.SelectedDate, e.Time) {
		m.metrics.ObserveConflict()
		return m.stay(state, SendMessage{
			Key:  "appointment_conflict",
			Args: []any{sess.SelectedDate.String(), e.Time.String()},
		})
	}

	tod := e.Time
	sess.SelectedTime = &tod
	confirmKeyboard := Keyboard{Kind: KeyboardInline, Rows: [][]Button{
		{{LabelKey: "confirm", Data: DataConfirmYes}, {LabelKey: "cancel", Data: dataConfirmNo}},
	}}
	return StateBookingConfirm, []Effect{
		PersistSession{},
		SendMessage{
			Key:      "booking_confirmation",
			Args:     []any{sess.SelectedService, sess.SelectedDate.String(), tod.String()},
			Keyboard: confirmKeyboard,
		},
	}
}

func (m *Machine) handleConfirm(state State, sess *session.Session, e ConfirmEvent) (State, []Effect) {
	if state != StateBookingConfirm {
		return m.stay(state, SendMessage{Key: "invalid_input"})
	}

	if !e.Accepted {
		sess.ClearSelection()
		return StateChoosing, []Effect{PersistSession{}, SendMessage{Key: "booking_cancelled"}}
	}

	if sess.SelectedDate == nil || sess.SelectedTime == nil {
		sess.ClearSelection()
		return StateChoosing, []Effect{PersistSession{}, SendMessage{Key: "invalid_input"}}
	}

	date := *sess.SelectedDate
	tod := *sess.SelectedTime

	// The slot was checked when picked, but the round trip to the user
	// leaves a window: re-check before committing.
	if sess.HasConflict(date, tod) {
		m.metrics.ObserveConflict()
		return StateBookingTime, []Effect{
			PersistSession{},
			SendMessage{Key: "appointment_conflict", Args: []any{date.String(), tod.String()}},
		}
	}

	sess.AddAppointment(session.Appointment{
		Service: sess.SelectedService,
		Date:    date,
		Time:    tod,
	})

	fireAt := date.At(tod, m.cfg.Location).Add(-m.cfg.ReminderLead)
	effects := []Effect{
		PersistSession{},
		ScheduleReminder{
			FireAt: fireAt,
			Payload: reminder.Payload{
				UserID:  sess.UserID,
				Service: sess.SelectedService,
				Time:    tod.String(),
			},
		},
		SendMessage{Key: "booking_confirmed", Args: []any{date.String(), tod.String()}},
	}

	sess.ClearSelection()
	return StateChoosing, effects
}

func (m *Machine) handleCancelAppointment(state State, sess *session.Session, e CancelAppointmentEvent) (State, []Effect) {
	if state != StateChoosing {
		return m.stay(state, SendMessage{Key: "invalid_input"})
	}
	if e.Index < 0 || e.Index >= len(sess.Appointments) {
		return m.stay(state, SendMessage{Key: "invalid_selection"})
	}

	// Remove by value equality, not by position, so a stale index from a
	// superseded list cannot delete the wrong appointment silently.
	appt := sess.Appointments[e.Index]
	if !sess.RemoveAppointment(appt) {
		return m.stay(state, SendMessage{Key: "invalid_selection"})
	}

	return StateChoosing, []Effect{
		PersistSession{},
		SendMessage{
			Key:  "appointment_cancelled",
			Args: []any{appt.Service, appt.Date.String(), appt.Time.String()},
		},
	}
}

func (m *Machine) serviceKeyboard() Keyboard {
	var rows [][]Button
	for _, svc := range m.catalog.Services() {
		rows = append(rows, []Button{{
			Label: fmt.Sprintf("%s (%s)", svc.Name, svc.PriceFrom),
			Data:  prefixService + svc.Name,
		}})
	}
	return Keyboard{Kind: KeyboardInline, Rows: rows}
}

// dateKeyboard offers the next WindowDays days starting today.
func (m *Machine) dateKeyboard() Keyboard {
	now := m.cfg.Clock().In(m.cfg.Location)
	var rows [][]Button
	for i := 0; i < m.cfg.WindowDays; i++ {
		day := now.AddDate(0, 0, i)
		date := session.DateOf(day)
		rows = append(rows, []Button{{
			Label: day.Format("Monday, Jan 02"),
			Data:  prefixDate + date.String(),
		}})
	}
	return Keyboard{Kind: KeyboardInline, Rows: rows}
}

// timeKeyboard offers the slot grid for date, three per row. For today, slots
// at or before the current hour are omitted.
func (m *Machine) timeKeyboard(date session.Date) Keyboard {
	now := m.cfg.Clock().In(m.cfg.Location)
	today := session.DateOf(now)

	var row []Button
	var rows [][]Button
	for _, slot := range m.cfg.Slots {
		if date == today && slot.Hour <= now.Hour() {
			continue
		}
		row = append(row, Button{Label: slot.String(), Data: prefixTime + slot.String()})
		if len(row) == 3 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return Keyboard{Kind: KeyboardInline, Rows: rows}
}

func appointmentLines(appts []session.Appointment) string {
	var lines []string
	for _, appt := range appts {
		lines = append(lines, fmt.Sprintf("- %s on %s at %s", appt.Service, appt.Date, appt.Time))
	}
	return strings.Join(lines, "\n")
}

func cancelKeyboard(appts []session.Appointment) Keyboard {
	var rows [][]Button
	for i, appt := range appts {
		rows = append(rows, []Button{{
			Label: fmt.Sprintf("%s on %s at %s", appt.Service, appt.Date, appt.Time),
			Data:  fmt.Sprintf("%s%d", prefixCancel, i),
		}})
	}
	return Keyboard{Kind: KeyboardInline, Rows: rows}
}

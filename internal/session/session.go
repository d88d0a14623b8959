// Package session holds the per-user conversational and booking state and its
// durable JSON snapshot store. A session is created lazily on first contact,
// mutated in place by the booking flow, and persisted in full on every
// mutation.
package session

import (
	"errors"
	"fmt"
	"time"
)

// ErrBadDate indicates a date payload that is not a valid ISO calendar date.
var ErrBadDate = errors.New("session: invalid date")

// ErrBadTime indicates a time payload that is not a valid wall-clock time.
var ErrBadTime = errors.New("session: invalid time")

// Date is a calendar date with no time component.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses an ISO "YYYY-MM-DD" date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrBadDate, s)
	}
	return DateOf(t), nil
}

// DateOf truncates t to its calendar date.
func DateOf(t time.Time) Date {
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// String renders the date in ISO form.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// At combines the date with a time of day in the given location.
func (d Date) At(tod TimeOfDay, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(d.Year, d.Month, d.Day, tod.Hour, tod.Minute, 0, 0, loc)
}

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool {
	return d == Date{}
}

// MarshalJSON encodes the date as an ISO string.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON decodes an ISO date string.
func (d *Date) UnmarshalJSON(data []byte) error {
	s, err := unquote(data)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBadDate, data)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// TimeOfDay is a wall-clock time drawn from the salon's slot grid.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay accepts "HH:MM" (callback payloads) or "HH:MM:SS" (the
// persisted wire form).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
		}
	}
	return TimeOfDay{}, fmt.Errorf("%w: %q", ErrBadTime, s)
}

// String renders the display form "HH:MM".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Wire renders the persisted form "HH:MM:SS".
func (t TimeOfDay) Wire() string {
	return fmt.Sprintf("%02d:%02d:00", t.Hour, t.Minute)
}

// MarshalJSON encodes the time in its "HH:MM:SS" wire form.
func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.Wire() + `"`), nil
}

// UnmarshalJSON decodes either wire or display form.
func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	s, err := unquote(data)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBadTime, data)
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func unquote(data []byte) (string, error) {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return "", errors.New("not a JSON string")
	}
	return string(data[1 : len(data)-1]), nil
}

// Appointment is a confirmed booking. Immutable once created; removal is by
// value equality, never by position.
type Appointment struct {
	Service string    `json:"service"`
	Date    Date      `json:"date"`
	Time    TimeOfDay `json:"time"`
}

// Session is one user's conversational and booking state.
type Session struct {
	UserID          int64         `json:"userId"`
	Language        string        `json:"language"`
	SelectedService string        `json:"selectedService"`
	SelectedDate    *Date         `json:"selectedDate"`
	SelectedTime    *TimeOfDay    `json:"selectedTime"`
	LastInteraction time.Time     `json:"lastInteraction"`
	Appointments    []Appointment `json:"appointments"`
}

// NewSession creates a default session for a first-contact user.
func NewSession(userID int64, language string) *Session {
	return &Session{
		UserID:          userID,
		Language:        language,
		LastInteraction: time.Now().UTC(),
		Appointments:    []Appointment{},
	}
}

// HasConflict reports whether an existing appointment occupies the proposed
// (date, time) slot. Pure linear scan; no cross-user checking.
func (s *Session) HasConflict(date Date, tod TimeOfDay) bool {
	for _, appt := range s.Appointments {
		if appt.Date == date && appt.Time == tod {
			return true
		}
	}
	return false
}

// AddAppointment appends a confirmed appointment in booking order.
func (s *Session) AddAppointment(appt Appointment) {
	s.Appointments = append(s.Appointments, appt)
}

// RemoveAppointment deletes the first appointment equal to appt in all of
// (service, date, time). Returns false when no appointment matches.
func (s *Session) RemoveAppointment(appt Appointment) bool {
	for i, existing := range s.Appointments {
		if existing == appt {
			s.Appointments = append(s.Appointments[:i], s.Appointments[i+1:]...)
			return true
		}
	}
	return false
}

// ClearSelection resets the transient booking fields together, keeping the
// both-set-or-both-unset invariant for date and time.
func (s *Session) ClearSelection() {
	s.SelectedService = ""
	s.SelectedDate = nil
	s.SelectedTime = nil
}

// Touch records user activity.
func (s *Session) Touch(now time.Time) {
	s.LastInteraction = now.UTC()
}

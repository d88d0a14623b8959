package bot

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annasalon/booking-assistant/internal/assistant"
	"github.com/annasalon/booking-assistant/internal/booking"
	"github.com/annasalon/booking-assistant/internal/catalog"
	"github.com/annasalon/booking-assistant/internal/i18n"
	"github.com/annasalon/booking-assistant/internal/reminder"
	"github.com/annasalon/booking-assistant/internal/session"
	"github.com/annasalon/booking-assistant/pkg/logging"
)

type captureMessenger struct {
	mu   sync.Mutex
	sent []OutboundMessage
}

func (m *captureMessenger) Send(_ context.Context, msg OutboundMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *captureMessenger) messages() []OutboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]OutboundMessage(nil), m.sent...)
}

type fakeAssistant struct {
	reply assistant.Reply
	err   error
}

func (f *fakeAssistant) Generate(context.Context, int64, string, string) (assistant.Reply, error) {
	return f.reply, f.err
}

func newTestWorker(t *testing.T, opts ...WorkerOption) (*Worker, *captureMessenger, *session.Store) {
	t.Helper()

	store := session.NewStore(filepath.Join(t.TempDir(), "sessions.json"), "en", logging.Default())
	require.NoError(t, store.LoadAll())

	machine := booking.NewMachine(catalog.Default(), booking.Config{
		Location: time.UTC,
		Clock:    func() time.Time { return time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC) },
	}, nil)

	messenger := &captureMessenger{}
	worker := NewWorker(NewMemoryQueue(8), messenger, machine, store, i18n.New(), logging.Default(), opts...)
	return worker, messenger, store
}

func TestProcessStartAsksForLanguage(t *testing.T) {
	worker, messenger, _ := newTestWorker(t)

	worker.Process(context.Background(), Update{UserID: 7, Name: "Alice", Start: true})

	msgs := messenger.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, int64(7), msgs[0].UserID)
	assert.Contains(t, msgs[0].Text, "language")
}

func TestProcessFullBookingFlow(t *testing.T) {
	worker, messenger, store := newTestWorker(t)
	ctx := context.Background()

	worker.Process(ctx, Update{UserID: 7, Name: "Alice", Start: true})
	worker.Process(ctx, Update{UserID: 7, Text: "🇺🇸 English"})
	worker.Process(ctx, Update{UserID: 7, Text: "Book Service"})
	worker.Process(ctx, Update{UserID: 7, CallbackData: "service_Manicure"})
	worker.Process(ctx, Update{UserID: 7, CallbackData: "date_2025-06-10"})
	worker.Process(ctx, Update{UserID: 7, CallbackData: "time_14:00"})
	worker.Process(ctx, Update{UserID: 7, CallbackData: "confirm_yes"})

	snap := store.Snapshot(7)
	require.Len(t, snap.Appointments, 1)
	assert.Equal(t, "Manicure", snap.Appointments[0].Service)
	assert.Equal(t, "en", snap.Language)

	msgs := messenger.messages()
	require.NotEmpty(t, msgs)
	last := msgs[len(msgs)-1]
	assert.Contains(t, last.Text, "confirmed")
}

func TestProcessRendersMenuLabelsInUserLanguage(t *testing.T) {
	worker, messenger, _ := newTestWorker(t)
	ctx := context.Background()

	worker.Process(ctx, Update{UserID: 7, Name: "Анна", Start: true})
	worker.Process(ctx, Update{UserID: 7, Name: "Анна", Text: "🇷🇺 Русский"})

	msgs := messenger.messages()
	require.Len(t, msgs, 2)
	welcome := msgs[1]
	assert.Contains(t, welcome.Text, "Анна")

	require.Equal(t, booking.KeyboardReply, welcome.Keyboard.Kind)
	var labels []string
	for _, row := range welcome.Keyboard.Rows {
		for _, btn := range row {
			labels = append(labels, btn.Label)
		}
	}
	assert.Contains(t, labels, i18n.New().Lookup("book_service", "ru"))
}

func TestProcessFreeTextGoesToAssistant(t *testing.T) {
	fake := &fakeAssistant{reply: assistant.Reply{Text: "We open at nine."}}
	worker, messenger, _ := newTestWorker(t, WithAssistant(fake))

	worker.Process(context.Background(), Update{UserID: 7, Text: "when do you open?"})

	msgs := messenger.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "We open at nine.", msgs[0].Text)
}

func TestProcessAssistantBookingIntentStartsFlow(t *testing.T) {
	fake := &fakeAssistant{reply: assistant.Reply{Text: "Let's book your manicure!", BookService: "Manicure"}}
	worker, messenger, store := newTestWorker(t, WithAssistant(fake))

	worker.Process(context.Background(), Update{UserID: 7, Text: "I want a manicure"})

	snap := store.Snapshot(7)
	assert.Equal(t, "Manicure", snap.SelectedService)

	msgs := messenger.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Let's book your manicure!", msgs[0].Text)
	assert.Equal(t, booking.KeyboardInline, msgs[1].Keyboard.Kind)
}

func TestProcessAssistantFailureFallsBack(t *testing.T) {
	fake := &fakeAssistant{err: errors.New("model down")}
	worker, messenger, _ := newTestWorker(t, WithAssistant(fake))

	worker.Process(context.Background(), Update{UserID: 7, Text: "hello?"})

	msgs := messenger.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, i18n.New().Lookup("assistant_unavailable", "en"), msgs[0].Text)
}

func TestProcessWithoutAssistantRejectsFreeText(t *testing.T) {
	worker, messenger, _ := newTestWorker(t)

	worker.Process(context.Background(), Update{UserID: 7, Text: "random chatter"})

	msgs := messenger.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, i18n.New().Lookup("invalid_input", "en"), msgs[0].Text)
}

func TestProcessCancelCommandAbandonsBooking(t *testing.T) {
	worker, messenger, store := newTestWorker(t)
	ctx := context.Background()

	worker.Process(ctx, Update{UserID: 7, Name: "Alice", Start: true})
	worker.Process(ctx, Update{UserID: 7, Name: "Alice", Text: "🇺🇸 English"})
	worker.Process(ctx, Update{UserID: 7, Text: "Book Service"})
	worker.Process(ctx, Update{UserID: 7, CallbackData: "service_Manicure"})
	worker.Process(ctx, Update{UserID: 7, CallbackData: "date_2025-06-10"})

	worker.Process(ctx, Update{UserID: 7, Text: "/cancel"})

	snap := store.Snapshot(7)
	assert.Empty(t, snap.SelectedService)
	assert.Nil(t, snap.SelectedDate)
	assert.Nil(t, snap.SelectedTime)
	assert.Empty(t, snap.Appointments)

	msgs := messenger.messages()
	require.NotEmpty(t, msgs)
	assert.Equal(t, i18n.New().Lookup("booking_cancelled", "en"), msgs[len(msgs)-1].Text)

	// The flow is truly abandoned: a stale time pick no longer advances.
	worker.Process(ctx, Update{UserID: 7, CallbackData: "time_14:00"})
	msgs = messenger.messages()
	assert.Equal(t, i18n.New().Lookup("invalid_input", "en"), msgs[len(msgs)-1].Text)
}

func TestDeliverReminderLocalizes(t *testing.T) {
	worker, messenger, store := newTestWorker(t)
	require.NoError(t, store.Update(7, func(sess *session.Session) { sess.Language = "ru" }))

	err := worker.DeliverReminder(context.Background(), reminder.Payload{UserID: 7, Service: "Manicure", Time: "14:00"})
	require.NoError(t, err)

	msgs := messenger.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, i18n.New().Lookup("reminder", "ru", "Manicure", "14:00"), msgs[0].Text)
}

func TestRunConsumesQueueAndStopsOnCancel(t *testing.T) {
	store := session.NewStore(filepath.Join(t.TempDir(), "sessions.json"), "en", logging.Default())
	require.NoError(t, store.LoadAll())
	machine := booking.NewMachine(catalog.Default(), booking.Config{Location: time.UTC}, nil)
	messenger := &captureMessenger{}
	queue := NewMemoryQueue(8)
	worker := NewWorker(queue, messenger, machine, store, i18n.New(), logging.Default(), WithConcurrency(2))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	require.NoError(t, queue.Send(ctx, Update{UserID: 7, Name: "Alice", Start: true}))
	require.Eventually(t, func() bool {
		return len(messenger.messages()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}

func TestMemoryQueueBatchesAndTimesOut(t *testing.T) {
	queue := NewMemoryQueue(8)
	ctx := context.Background()

	require.NoError(t, queue.Send(ctx, Update{UserID: 1}))
	require.NoError(t, queue.Send(ctx, Update{UserID: 2}))

	updates, err := queue.Receive(ctx, 10, 1)
	require.NoError(t, err)
	require.Len(t, updates, 2)
	assert.NotEmpty(t, updates[0].ID)
	assert.False(t, updates[0].ReceivedAt.IsZero())

	updates, err = queue.Receive(ctx, 10, 1)
	require.NoError(t, err)
	assert.Empty(t, updates)
}

package bot

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/annasalon/booking-assistant/internal/assistant"
	"github.com/annasalon/booking-assistant/internal/booking"
	"github.com/annasalon/booking-assistant/internal/i18n"
	"github.com/annasalon/booking-assistant/internal/observability/metrics"
	"github.com/annasalon/booking-assistant/internal/reminder"
	"github.com/annasalon/booking-assistant/internal/session"
	"github.com/annasalon/booking-assistant/pkg/logging"
)

// cancelCommand abandons an in-progress booking from any state.
const cancelCommand = "/cancel"

// Assistant generates free-text answers. Implemented by assistant.Service;
// abstracted so worker tests can substitute a fake.
type Assistant interface {
	Generate(ctx context.Context, userID int64, text, lang string) (assistant.Reply, error)
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithAssistant enables free-text answering. Without it, unrecognized text
// gets the canned invalid-input reply.
func WithAssistant(a Assistant) WorkerOption {
	return func(w *Worker) { w.assistant = a }
}

// WithScheduler enables appointment reminders.
func WithScheduler(s *reminder.Scheduler) WorkerOption {
	return func(w *Worker) { w.scheduler = s }
}

// WithMetrics attaches booking metrics.
func WithMetrics(m *metrics.BookingMetrics) WorkerOption {
	return func(w *Worker) { w.metrics = m }
}

// WithConcurrency sets the number of consuming goroutines.
func WithConcurrency(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.concurrency = n
		}
	}
}

// Worker consumes inbound updates, drives the booking machine, and executes
// the resulting effects. Handling is serialized per user: each user has a
// mutex held for their whole update, so a slow assistant call stalls only that
// user while the pool keeps serving everyone else.
type Worker struct {
	queue        Queue
	messenger    Messenger
	machine      *booking.Machine
	store        *session.Store
	translations *i18n.Translations
	logger       *logging.Logger

	assistant   Assistant
	scheduler   *reminder.Scheduler
	metrics     *metrics.BookingMetrics
	concurrency int

	mu    sync.Mutex
	users map[int64]*userState
}

type userState struct {
	mu    sync.Mutex
	state booking.State
}

// NewWorker builds a worker pool. queue, messenger, machine, store, and
// translations are required.
func NewWorker(queue Queue, messenger Messenger, machine *booking.Machine, store *session.Store, translations *i18n.Translations, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if queue == nil {
		panic("bot: queue cannot be nil")
	}
	if messenger == nil {
		panic("bot: messenger cannot be nil")
	}
	if machine == nil {
		panic("bot: machine cannot be nil")
	}
	if store == nil {
		panic("bot: session store cannot be nil")
	}
	if translations == nil {
		panic("bot: translations cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	w := &Worker{
		queue:        queue,
		messenger:    messenger,
		machine:      machine,
		store:        store,
		translations: translations,
		logger:       logger,
		concurrency:  4,
		users:        make(map[int64]*userState),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run consumes updates until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.consume(ctx)
		}()
	}
	wg.Wait()
	return ctx.Err()
}

func (w *Worker) consume(ctx context.Context) {
	for {
		updates, err := w.queue.Receive(ctx, 10, 5)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			w.logger.Error("failed to receive updates", "error", err)
			continue
		}
		for _, upd := range updates {
			w.Process(ctx, upd)
		}
	}
}

// Process handles one update end to end: decode, resolve free text through
// the assistant, step the machine under the store lock, then execute effects.
func (w *Worker) Process(ctx context.Context, upd Update) {
	us := w.userState(upd.UserID)
	us.mu.Lock()
	defer us.mu.Unlock()

	lang := w.store.Language(upd.UserID)
	ev := w.decode(upd, us.state, lang)

	// The assistant call runs before the store lock is taken so one user's
	// completion wait never blocks anyone else's booking step.
	if free, ok := ev.(booking.FreeTextEvent); ok && us.state != booking.StateSelectingLanguage {
		ev = w.resolveFreeText(ctx, upd.UserID, free, lang)
	}

	var (
		nextState booking.State
		effects   []booking.Effect
	)
	err := w.store.Apply(upd.UserID, func(sess *session.Session) bool {
		nextState, effects = w.machine.Handle(us.state, sess, ev)
		return hasPersist(effects)
	})
	if err != nil {
		// In-memory state is authoritative; the failed snapshot write is
		// retried on the next persisting step.
		w.metrics.ObservePersistFailure()
		w.logger.Error("failed to persist session", "user_id", upd.UserID, "error", err)
	}
	us.state = nextState

	// Language may have just changed; render with the fresh value.
	lang = w.store.Language(upd.UserID)
	for _, eff := range effects {
		switch e := eff.(type) {
		case booking.SendMessage:
			msg := w.render(upd.UserID, lang, e)
			if err := w.messenger.Send(ctx, msg); err != nil {
				w.logger.Error("failed to send message", "user_id", upd.UserID, "error", err)
			}
		case booking.ScheduleReminder:
			if w.scheduler == nil {
				continue
			}
			w.scheduler.ScheduleOnce(ctx, e.FireAt, e.Payload)
		}
	}
}

func (w *Worker) decode(upd Update, state booking.State, lang string) booking.Event {
	switch {
	case upd.Start:
		return booking.StartEvent{Name: upd.Name}
	case upd.CallbackData != "":
		return booking.DecodeCallback(upd.CallbackData)
	case strings.TrimSpace(upd.Text) == cancelCommand:
		// Explicit abandon, honored in any state.
		return booking.CancelEvent{}
	default:
		return booking.DecodeText(upd.Text, lang, upd.Name, w.translations)
	}
}

func (w *Worker) resolveFreeText(ctx context.Context, userID int64, free booking.FreeTextEvent, lang string) booking.Event {
	if w.assistant == nil {
		return free
	}

	reply, err := w.assistant.Generate(ctx, userID, free.Text, lang)
	if err != nil {
		w.logger.Warn("assistant unavailable", "user_id", userID, "error", err)
		return booking.AssistantFailedEvent{}
	}
	return booking.AssistantReplyEvent{Text: reply.Text, Service: reply.BookService}
}

// DeliverReminder is the reminder scheduler's delivery callback: it localizes
// the reminder text for the user and sends it through the messenger.
func (w *Worker) DeliverReminder(ctx context.Context, payload reminder.Payload) error {
	lang := w.store.Language(payload.UserID)
	text := w.translations.Lookup("reminder", lang, payload.Service, payload.Time)
	return w.messenger.Send(ctx, OutboundMessage{UserID: payload.UserID, Text: text})
}

func (w *Worker) render(userID int64, lang string, msg booking.SendMessage) OutboundMessage {
	text := msg.Text
	if msg.Key != "" {
		text = w.translations.Lookup(msg.Key, lang, msg.Args...)
	}

	kb := msg.Keyboard
	if kb.Kind != booking.KeyboardNone {
		rows := make([][]booking.Button, len(kb.Rows))
		for i, row := range kb.Rows {
			rows[i] = make([]booking.Button, len(row))
			for j, btn := range row {
				if btn.LabelKey != "" {
					btn.Label = w.translations.Lookup(btn.LabelKey, lang)
				}
				rows[i][j] = btn
			}
		}
		kb.Rows = rows
	}

	return OutboundMessage{UserID: userID, Text: text, Keyboard: kb}
}

func (w *Worker) userState(userID int64) *userState {
	w.mu.Lock()
	defer w.mu.Unlock()

	us, ok := w.users[userID]
	if !ok {
		us = &userState{state: booking.StateChoosing}
		w.users[userID] = us
	}
	return us
}

func hasPersist(effects []booking.Effect) bool {
	for _, eff := range effects {
		if _, ok := eff.(booking.PersistSession); ok {
			return true
		}
	}
	return false
}

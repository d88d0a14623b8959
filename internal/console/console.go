// Package console is a terminal chat adapter for local runs: it feeds typed
// lines into the update queue and prints the bot's replies, standing in for a
// real messaging channel.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/annasalon/booking-assistant/internal/booking"
	"github.com/annasalon/booking-assistant/internal/bot"
	"github.com/annasalon/booking-assistant/pkg/logging"
)

// Adapter bridges a terminal to the bot: stdin lines become updates, outbound
// messages are printed. It implements bot.Messenger.
type Adapter struct {
	queue  bot.Queue
	in     io.Reader
	logger *logging.Logger

	userID int64
	name   string

	mu  sync.Mutex
	out io.Writer
}

// NewAdapter builds a console adapter for a single local user.
func NewAdapter(queue bot.Queue, in io.Reader, out io.Writer, userID int64, name string, logger *logging.Logger) *Adapter {
	if queue == nil {
		panic("console: queue cannot be nil")
	}
	if in == nil || out == nil {
		panic("console: in and out cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if name == "" {
		name = "Guest"
	}
	return &Adapter{
		queue:  queue,
		in:     in,
		out:    out,
		logger: logger,
		userID: userID,
		name:   name,
	}
}

// Send prints one rendered message. Inline button callback payloads are shown
// next to their labels so they can be typed back with /cb.
func (a *Adapter) Send(_ context.Context, msg bot.OutboundMessage) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	fmt.Fprintf(a.out, "\nAnna: %s\n", msg.Text)
	for _, row := range msg.Keyboard.Rows {
		for _, btn := range row {
			switch msg.Keyboard.Kind {
			case booking.KeyboardInline:
				fmt.Fprintf(a.out, "  [%s] -> /cb %s\n", btn.Label, btn.Data)
			case booking.KeyboardReply:
				fmt.Fprintf(a.out, "  [%s]\n", btn.Label)
			}
		}
	}
	return nil
}

// Run reads lines until EOF or ctx cancellation and enqueues them as updates.
// "/start" begins a conversation; "/cb <data>" simulates a button press;
// anything else is plain text.
func (a *Adapter) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	scanner := bufio.NewScanner(a.in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		upd := bot.Update{UserID: a.userID, Name: a.name}
		switch {
		case line == "/start":
			upd.Start = true
		case strings.HasPrefix(line, "/cb "):
			upd.CallbackData = strings.TrimSpace(strings.TrimPrefix(line, "/cb "))
		default:
			upd.Text = line
		}

		if err := a.queue.Send(ctx, upd); err != nil {
			return fmt.Errorf("console: failed to enqueue update: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("console: input read failed: %w", err)
	}
	return nil
}

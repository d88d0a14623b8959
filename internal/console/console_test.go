package console

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annasalon/booking-assistant/internal/booking"
	"github.com/annasalon/booking-assistant/internal/bot"
	"github.com/annasalon/booking-assistant/pkg/logging"
)

func TestRunTranslatesLinesToUpdates(t *testing.T) {
	queue := bot.NewMemoryQueue(8)
	in := strings.NewReader("/start\nhello there\n/cb service_Manicure\n\n")
	adapter := NewAdapter(queue, in, &bytes.Buffer{}, 7, "Alice", logging.Default())

	require.NoError(t, adapter.Run(context.Background()))

	ctx := context.Background()
	updates, err := queue.Receive(ctx, 10, 1)
	require.NoError(t, err)
	require.Len(t, updates, 3)

	assert.True(t, updates[0].Start)
	assert.Equal(t, int64(7), updates[0].UserID)
	assert.Equal(t, "Alice", updates[0].Name)

	assert.Equal(t, "hello there", updates[1].Text)
	assert.Equal(t, "service_Manicure", updates[2].CallbackData)
}

func TestSendPrintsTextAndButtons(t *testing.T) {
	var out bytes.Buffer
	adapter := NewAdapter(bot.NewMemoryQueue(1), strings.NewReader(""), &out, 7, "Alice", logging.Default())

	err := adapter.Send(context.Background(), bot.OutboundMessage{
		UserID: 7,
		Text:   "Please select a service:",
		Keyboard: booking.Keyboard{Kind: booking.KeyboardInline, Rows: [][]booking.Button{
			{{Label: "Manicure (733 P)", Data: "service_Manicure"}},
		}},
	})

	require.NoError(t, err)
	assert.Contains(t, out.String(), "Please select a service:")
	assert.Contains(t, out.String(), "/cb service_Manicure")
}

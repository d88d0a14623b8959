package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annasalon/booking-assistant/internal/catalog"
	"github.com/annasalon/booking-assistant/pkg/logging"
)

type fakeLLM struct {
	reply string
	err   error
	last  LLMRequest
}

func (f *fakeLLM) Complete(_ context.Context, req LLMRequest) (LLMResponse, error) {
	f.last = req
	if f.err != nil {
		return LLMResponse{}, f.err
	}
	return LLMResponse{Text: f.reply}, nil
}

func newHistoryStore(t *testing.T) *HistoryStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewHistoryStore(client)
}

func TestGenerateReturnsAnswer(t *testing.T) {
	llm := &fakeLLM{reply: "We open at nine every day."}
	svc := NewService(llm, nil, catalog.Default(), logging.Default())

	reply, err := svc.Generate(context.Background(), 7, "when do you open?", "en")

	require.NoError(t, err)
	assert.Equal(t, "We open at nine every day.", reply.Text)
	assert.Empty(t, reply.BookService)
}

func TestGenerateDetectsBookingIntentInAnswer(t *testing.T) {
	llm := &fakeLLM{reply: "A manicure sounds great, let's pick a day!"}
	svc := NewService(llm, nil, catalog.Default(), logging.Default())

	reply, err := svc.Generate(context.Background(), 7, "I'd like my nails done please", "en")

	require.NoError(t, err)
	assert.Equal(t, "Manicure", reply.BookService)
}

func TestGenerateDetectsFirstCatalogMatch(t *testing.T) {
	answer := "We could do a pedicure and a manicure back to back."
	llm := &fakeLLM{reply: answer}
	svc := NewService(llm, nil, catalog.Default(), logging.Default())

	// Both services appear in the answer; catalog order decides.
	reply, err := svc.Generate(context.Background(), 7, "what do you suggest?", "en")

	require.NoError(t, err)
	var want string
	for _, name := range catalog.Default().Names() {
		if strings.Contains(strings.ToLower(answer), strings.ToLower(name)) {
			want = name
			break
		}
	}
	require.NotEmpty(t, want)
	assert.Equal(t, want, reply.BookService)
}

func TestGenerateWrapsFailures(t *testing.T) {
	llm := &fakeLLM{err: errors.New("quota exceeded")}
	svc := NewService(llm, nil, catalog.Default(), logging.Default())

	_, err := svc.Generate(context.Background(), 7, "hello", "en")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestGenerateRejectsEmptyInput(t *testing.T) {
	svc := NewService(&fakeLLM{reply: "hi"}, nil, catalog.Default(), logging.Default())

	_, err := svc.Generate(context.Background(), 7, "   ", "en")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestGenerateIncludesPersonaAndLanguage(t *testing.T) {
	llm := &fakeLLM{reply: "Привет!"}
	svc := NewService(llm, nil, catalog.Default(), logging.Default())

	_, err := svc.Generate(context.Background(), 7, "привет", "ru")

	require.NoError(t, err)
	require.Len(t, llm.last.System, 1)
	assert.Contains(t, llm.last.System[0], "Anna")
	assert.Contains(t, llm.last.System[0], "Russian")
	assert.Contains(t, llm.last.System[0], "Manicure")
}

func TestGenerateReplaysHistory(t *testing.T) {
	history := newHistoryStore(t)
	llm := &fakeLLM{reply: "It lasts about two weeks."}
	svc := NewService(llm, history, catalog.Default(), logging.Default())

	_, err := svc.Generate(context.Background(), 7, "tell me about gel polish", "en")
	require.NoError(t, err)

	llm.reply = "You can book any weekday."
	_, err = svc.Generate(context.Background(), 7, "and when can I come?", "en")
	require.NoError(t, err)

	// Second call sees both turns of the first exchange plus its own text.
	require.Len(t, llm.last.Messages, 3)
	assert.Equal(t, ChatRoleUser, llm.last.Messages[0].Role)
	assert.Equal(t, "tell me about gel polish", llm.last.Messages[0].Content)
	assert.Equal(t, ChatRoleAssistant, llm.last.Messages[1].Role)
	assert.Equal(t, "and when can I come?", llm.last.Messages[2].Content)
}

func TestGenerateSurvivesHistoryOutage(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	history := NewHistoryStore(client)
	mr.Close()

	llm := &fakeLLM{reply: "Still here!"}
	svc := NewService(llm, history, catalog.Default(), logging.Default())

	reply, err := svc.Generate(context.Background(), 7, "hello?", "en")

	require.NoError(t, err)
	assert.Equal(t, "Still here!", reply.Text)
}

func TestHistoryStoreAppendListClear(t *testing.T) {
	store := newHistoryStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, 7, HistoryMessage{Role: ChatRoleUser, Body: "hi"}))
	require.NoError(t, store.Append(ctx, 7, HistoryMessage{Role: ChatRoleAssistant, Body: "hello!"}))

	msgs, err := store.List(ctx, 7, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hi", msgs[0].Body)
	assert.NotEmpty(t, msgs[0].ID)
	assert.False(t, msgs[0].Timestamp.IsZero())

	msgs, err = store.List(ctx, 7, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello!", msgs[0].Body)

	require.NoError(t, store.Clear(ctx, 7))
	msgs, err = store.List(ctx, 7, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestHistoryStoreTrimsToCap(t *testing.T) {
	store := newHistoryStore(t)
	store.maxMessages = 3
	ctx := context.Background()

	for _, body := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, store.Append(ctx, 7, HistoryMessage{Role: ChatRoleUser, Body: body}))
	}

	msgs, err := store.List(ctx, 7, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "c", msgs[0].Body)
	assert.Equal(t, "e", msgs[2].Body)
}

func TestNilHistoryStoreIsNoOp(t *testing.T) {
	var store *HistoryStore

	require.NoError(t, store.Append(context.Background(), 7, HistoryMessage{Body: "x"}))
	msgs, err := store.List(context.Background(), 7, 0)
	require.NoError(t, err)
	assert.Nil(t, msgs)
	require.NoError(t, store.Clear(context.Background(), 7))
}

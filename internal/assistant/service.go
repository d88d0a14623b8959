package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/annasalon/booking-assistant/internal/catalog"
	"github.com/annasalon/booking-assistant/internal/observability/metrics"
	"github.com/annasalon/booking-assistant/pkg/logging"
)

// ErrUnavailable is returned when no answer could be generated; the caller
// falls back to a canned localized message.
var ErrUnavailable = errors.New("assistant: unavailable")

const personaPrompt = `You are Anna, the friendly virtual administrator of a beauty salon.
You answer questions about the salon's services, prices, and general beauty care.
Keep answers short, warm, and practical. Never invent services the salon does not offer.
If the customer asks to book something, tell them you will start the booking right away.
Reply in %s.%s`

// Reply is one generated answer. BookService is non-empty when the customer's
// message mentioned a catalog service, signaling the caller to start the
// booking flow for it.
type Reply struct {
	Text        string
	BookService string
}

// Option configures a Service.
type Option func(*Service)

// WithTimeout caps how long one generation may take.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithHistoryLimit caps how many past turns are replayed to the model.
func WithHistoryLimit(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.historyLimit = n
		}
	}
}

// WithMetrics attaches booking metrics.
func WithMetrics(m *metrics.BookingMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// Service produces assistant answers: per-user history in, one completion out.
type Service struct {
	llm     LLMClient
	history *HistoryStore
	catalog *catalog.Catalog
	logger  *logging.Logger
	metrics *metrics.BookingMetrics

	timeout      time.Duration
	historyLimit int64
}

// NewService builds the assistant. llm and cat are required; history may be
// nil, in which case the assistant answers without cross-turn memory.
func NewService(llm LLMClient, history *HistoryStore, cat *catalog.Catalog, logger *logging.Logger, opts ...Option) *Service {
	if llm == nil {
		panic("assistant: llm client cannot be nil")
	}
	if cat == nil {
		panic("assistant: catalog cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	s := &Service{
		llm:          llm,
		history:      history,
		catalog:      cat,
		logger:       logger,
		timeout:      30 * time.Second,
		historyLimit: 40,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate answers one free-text message. History persistence is best-effort:
// a Redis failure degrades to a memoryless answer, never to an error.
func (s *Service) Generate(ctx context.Context, userID int64, text, lang string) (Reply, error) {
	if strings.TrimSpace(text) == "" {
		return Reply{}, fmt.Errorf("%w: empty message", ErrUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	messages := s.loadHistory(ctx, userID)
	messages = append(messages, ChatMessage{Role: ChatRoleUser, Content: text})

	resp, err := s.llm.Complete(ctx, LLMRequest{
		System:      []string{fmt.Sprintf(personaPrompt, languageName(lang), s.catalogSummary())},
		Messages:    messages,
		MaxTokens:   512,
		Temperature: 0.6,
	})
	if err != nil {
		s.metrics.ObserveAssistantFailure()
		s.logger.Error("assistant generation failed", "user_id", userID, "error", err)
		return Reply{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if strings.TrimSpace(resp.Text) == "" {
		s.metrics.ObserveAssistantFailure()
		return Reply{}, fmt.Errorf("%w: empty completion", ErrUnavailable)
	}

	s.recordTurn(ctx, userID, ChatRoleUser, text)
	s.recordTurn(ctx, userID, ChatRoleAssistant, resp.Text)

	// Booking intent is read off the generated answer: if the model names a
	// catalog service, the caller starts the booking flow for it.
	reply := Reply{Text: resp.Text}
	if svc, ok := s.catalog.Detect(resp.Text); ok {
		reply.BookService = svc.Name
	}
	return reply, nil
}

func (s *Service) loadHistory(ctx context.Context, userID int64) []ChatMessage {
	past, err := s.history.List(ctx, userID, s.historyLimit)
	if err != nil {
		s.logger.Warn("failed to load chat history", "user_id", userID, "error", err)
		return nil
	}

	messages := make([]ChatMessage, 0, len(past)+1)
	for _, msg := range past {
		role := ChatRoleUser
		if msg.Role == ChatRoleAssistant {
			role = ChatRoleAssistant
		}
		messages = append(messages, ChatMessage{Role: role, Content: msg.Body})
	}
	return messages
}

func (s *Service) recordTurn(ctx context.Context, userID int64, role, body string) {
	if err := s.history.Append(ctx, userID, HistoryMessage{Role: role, Body: body}); err != nil {
		s.logger.Warn("failed to record chat turn", "user_id", userID, "role", role, "error", err)
	}
}

// catalogSummary folds the service list into the system prompt so the model
// only talks about what the salon actually offers.
func (s *Service) catalogSummary() string {
	var b strings.Builder
	b.WriteString("\n\nThe salon offers exactly these services:\n")
	for _, svc := range s.catalog.Services() {
		fmt.Fprintf(&b, "- %s (%s, from %s)\n", svc.Name, svc.Category, svc.PriceFrom)
	}
	return b.String()
}

func languageName(lang string) string {
	if lang == "ru" {
		return "Russian"
	}
	return "English"
}

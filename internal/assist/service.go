// Package assist assembles prompts from message history and saved context,
// calls a generative backend and parses what comes back.
package assist

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/matheus3301/replykit/internal/bus"
	"github.com/matheus3301/replykit/internal/chatdb"
	"github.com/matheus3301/replykit/internal/logging"
	"github.com/matheus3301/replykit/internal/store"
)

var (
	// ErrGenerationFailed wraps every backend or parse failure of
	// suggestion generation.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrInvalidInput marks requests rejected before any lookup.
	ErrInvalidInput = errors.New("invalid input")
)

const (
	defaultSuggestionCount = 3
	defaultTemperature     = 0.8
)

// ContextSource is the read side of the context store used here.
type ContextSource interface {
	GetContactContext(ctx context.Context, phone string) (*store.ContactContext, error)
	ActiveUserContext(ctx context.Context) ([]store.UserContextEntry, error)
}

// MessageSource is the read side of the message store used here.
type MessageSource interface {
	GetThread(ctx context.Context, identifier string, limit int) ([]chatdb.Message, error)
	GetFullHistory(ctx context.Context, identifier string) ([]chatdb.Message, error)
}

// Options tunes generation.
type Options struct {
	SuggestionCount int
	Temperature     float64
}

// Service runs suggestion generation and style analysis.
type Service struct {
	contexts ContextSource
	messages MessageSource
	names    chatdb.Names
	llm      Completer
	bus      *bus.Bus
	log      *zap.Logger
	opts     Options
}

// NewService wires a service. names, b and log may be nil.
func NewService(contexts ContextSource, messages MessageSource, names chatdb.Names, llm Completer, b *bus.Bus, log *zap.Logger, opts Options) *Service {
	if opts.SuggestionCount <= 0 {
		opts.SuggestionCount = defaultSuggestionCount
	}
	if opts.Temperature <= 0 {
		opts.Temperature = defaultTemperature
	}
	return &Service{
		contexts: contexts,
		messages: messages,
		names:    names,
		llm:      llm,
		bus:      b,
		log:      logging.OrNop(log),
		opts:     opts,
	}
}

// SuggestRequest is the input to GenerateSuggestions.
type SuggestRequest struct {
	Identifier        string          `json:"contact_phone"`
	Messages          []RecentMessage `json:"recent_messages"`
	AdditionalContext string          `json:"additional_context,omitempty"`
}

// Suggestions is the ordered list of candidate replies.
type Suggestions struct {
	Suggestions []string `json:"suggestions"`
}

// SuggestionsGenerated is the payload of suggest.generated events.
type SuggestionsGenerated struct {
	Identifier string `json:"contact_phone"`
	Count      int    `json:"count"`
	Shape      string `json:"shape"`
}

// GenerateSuggestions asks the backend for reply candidates. Only the
// newest ten supplied messages are used. Backend and parse failures come
// back wrapping ErrGenerationFailed and are not retried.
func (s *Service) GenerateSuggestions(ctx context.Context, req SuggestRequest) (*Suggestions, error) {
	id := strings.TrimSpace(req.Identifier)
	if id == "" {
		return nil, fmt.Errorf("%w: contact identifier is required", ErrInvalidInput)
	}

	contact, err := s.contexts.GetContactContext(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load contact context: %w", err)
	}
	status, err := s.contexts.ActiveUserContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("load user context: %w", err)
	}

	system, user := buildSuggestionPrompt(promptInput{
		Identifier: id,
		Name:       s.contactName(ctx, id, contact),
		Contact:    contact,
		Status:     status,
		Messages:   req.Messages,
		Additional: req.AdditionalContext,
		Count:      s.opts.SuggestionCount,
	})
	temp := s.opts.Temperature
	raw, err := s.llm.Complete(ctx, Request{System: system, User: user, Temperature: &temp, JSON: true})
	if err != nil {
		s.log.Error("suggestion backend failed", zap.String("contact", id), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	shape, out, err := decodeSuggestions(raw)
	if err != nil {
		s.log.Error("suggestion response unparseable", zap.String("contact", id), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	s.log.Info("suggestions generated", zap.String("contact", id), zap.Int("count", len(out)), zap.Stringer("shape", shape))
	s.bus.Emit(bus.KindSuggestionsGenerated, SuggestionsGenerated{Identifier: id, Count: len(out), Shape: shape.String()})
	return &Suggestions{Suggestions: out}, nil
}

// contactName prefers the name saved in the contact context, then the
// contact directory. It returns "" when neither knows the identifier.
func (s *Service) contactName(ctx context.Context, id string, contact *store.ContactContext) string {
	if contact != nil && contact.Name != "" {
		return contact.Name
	}
	if s.names == nil {
		return ""
	}
	if err := s.names.Load(ctx); err != nil {
		s.log.Warn("contact directory unavailable", zap.Error(err))
	}
	if name, ok := s.names.Lookup(id); ok {
		return name
	}
	return ""
}

// SuggestForThread loads the newest messages of a thread and generates
// suggestions for them. Messages with no readable text are skipped.
func (s *Service) SuggestForThread(ctx context.Context, identifier, additional string) (*Suggestions, error) {
	if strings.TrimSpace(identifier) == "" {
		return nil, fmt.Errorf("%w: contact identifier is required", ErrInvalidInput)
	}
	msgs, err := s.messages.GetThread(ctx, identifier, transcriptWindow)
	if err != nil {
		return nil, err
	}
	recent := make([]RecentMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.Text == nil {
			continue
		}
		recent = append(recent, RecentMessage{Text: *m.Text, IsFromMe: m.IsFromMe, Timestamp: m.Date})
	}
	return s.GenerateSuggestions(ctx, SuggestRequest{Identifier: identifier, Messages: recent, AdditionalContext: additional})
}

// AnalyzeStyle measures the counterparty's own messages and asks the
// backend for a formality label. A backend failure only costs the label:
// the metrics are always returned. The error result is reserved for a
// message store that cannot be read.
func (s *Service) AnalyzeStyle(ctx context.Context, identifier string) (*StyleResult, error) {
	if strings.TrimSpace(identifier) == "" {
		return nil, fmt.Errorf("%w: contact identifier is required", ErrInvalidInput)
	}
	history, err := s.messages.GetFullHistory(ctx, identifier)
	if err != nil {
		return nil, err
	}

	var theirs []string
	for _, m := range history {
		if !m.IsFromMe && m.Body() != "" {
			theirs = append(theirs, m.Body())
		}
	}
	if len(theirs) == 0 {
		return &StyleResult{Formality: store.Neutral, Analysis: analysisNotEnoughData}, nil
	}

	avg, freq := Metrics(theirs)
	res := &StyleResult{AvgMessageLength: avg, EmojiFrequency: freq}

	raw, err := s.llm.Complete(ctx, Request{System: styleSystemPrompt, User: styleSample(theirs), JSON: true})
	if err == nil {
		res.Formality, res.Analysis, err = parseStyleReply(raw)
	}
	if err != nil {
		s.log.Warn("style analysis fell back to neutral", zap.String("contact", identifier), zap.Error(err))
		res.Formality, res.Analysis = store.Neutral, analysisFallback
	}

	s.bus.Emit(bus.KindStyleAnalyzed, map[string]any{"contact_phone": identifier, "formality": res.Formality})
	return res, nil
}

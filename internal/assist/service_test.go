package assist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheus3301/replykit/internal/bus"
	"github.com/matheus3301/replykit/internal/chatdb"
	"github.com/matheus3301/replykit/internal/store"
)

type fakeContexts struct {
	contact *store.ContactContext
	active  []store.UserContextEntry
	err     error
}

func (f *fakeContexts) GetContactContext(context.Context, string) (*store.ContactContext, error) {
	return f.contact, f.err
}

func (f *fakeContexts) ActiveUserContext(context.Context) ([]store.UserContextEntry, error) {
	return f.active, f.err
}

type fakeMessages struct {
	thread    []chatdb.Message
	history   []chatdb.Message
	err       error
	lastLimit int
}

func (f *fakeMessages) GetThread(_ context.Context, _ string, limit int) ([]chatdb.Message, error) {
	f.lastLimit = limit
	return f.thread, f.err
}

func (f *fakeMessages) GetFullHistory(context.Context, string) ([]chatdb.Message, error) {
	return f.history, f.err
}

type fakeCompleter struct {
	reply    string
	err      error
	requests []Request
}

func (f *fakeCompleter) Complete(_ context.Context, req Request) (string, error) {
	f.requests = append(f.requests, req)
	return f.reply, f.err
}

func text(s string) *string { return &s }

func newTestService(c *fakeContexts, m *fakeMessages, llm *fakeCompleter, b *bus.Bus) *Service {
	return NewService(c, m, nil, llm, b, nil, Options{})
}

func TestGenerateSuggestionsUsesLastTenMessages(t *testing.T) {
	llm := &fakeCompleter{reply: `{"suggestions": ["a", "b", "c"]}`}
	svc := newTestService(&fakeContexts{}, &fakeMessages{}, llm, nil)

	var msgs []RecentMessage
	for i := 1; i <= 15; i++ {
		msgs = append(msgs, RecentMessage{Text: fmt.Sprintf("msg-%02d", i), IsFromMe: i%2 == 0})
	}
	res, err := svc.GenerateSuggestions(context.Background(), SuggestRequest{Identifier: "+15551234567", Messages: msgs})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, res.Suggestions)

	require.Len(t, llm.requests, 1)
	user := llm.requests[0].User
	for i := 1; i <= 5; i++ {
		assert.NotContains(t, user, fmt.Sprintf("msg-%02d", i))
	}
	for i := 6; i <= 15; i++ {
		assert.Contains(t, user, fmt.Sprintf("msg-%02d", i))
	}
	assert.Contains(t, user, "Them: msg-07")
	assert.Contains(t, user, "You: msg-08")
	assert.Equal(t, 10, strings.Count(user, "msg-"))
}

func TestGenerateSuggestionsPromptSections(t *testing.T) {
	end := time.Now().Add(time.Hour)
	contexts := &fakeContexts{
		contact: &store.ContactContext{Name: "Priya", Formality: store.Casual, BackgroundContext: "College roommate"},
		active: []store.UserContextEntry{
			{Content: "On vacation until Friday", EndAt: &end},
			{Content: "Feeling sick"},
		},
	}
	llm := &fakeCompleter{reply: `["ok"]`}
	svc := newTestService(contexts, &fakeMessages{}, llm, nil)

	_, err := svc.GenerateSuggestions(context.Background(), SuggestRequest{
		Identifier:        "+15551234567",
		Messages:          []RecentMessage{{Text: "dinner?"}, {Text: "maybe", IsFromMe: true}},
		AdditionalContext: "I already ate",
	})
	require.NoError(t, err)

	req := llm.requests[0]
	assert.True(t, req.JSON)
	require.NotNil(t, req.Temperature)
	assert.InDelta(t, 0.8, *req.Temperature, 1e-9)
	assert.Contains(t, req.System, "response to Priya")
	assert.Contains(t, req.System, "CONTACT CONTEXT:\nCollege roommate")
	assert.Contains(t, req.System, "FORMALITY LEVEL: casual")
	assert.Contains(t, req.System, "YOUR CURRENT STATUS:\n- On vacation until Friday\n- Feeling sick")
	assert.Contains(t, req.System, "ADDITIONAL CONTEXT:\nI already ate")
	assert.Contains(t, req.System, "Generate 3 response options")
	assert.Contains(t, req.User, "Priya: dinner?\nYou: maybe")
}

func TestGenerateSuggestionsOmitsAbsentSections(t *testing.T) {
	llm := &fakeCompleter{reply: `["ok"]`}
	svc := newTestService(&fakeContexts{}, &fakeMessages{}, llm, nil)

	_, err := svc.GenerateSuggestions(context.Background(), SuggestRequest{
		Identifier: "+15551234567",
		Messages:   []RecentMessage{{Text: "hi"}},
	})
	require.NoError(t, err)

	req := llm.requests[0]
	assert.Contains(t, req.System, "response to +15551234567")
	for _, header := range []string{"CONTACT CONTEXT", "FORMALITY LEVEL", "YOUR CURRENT STATUS", "ADDITIONAL CONTEXT"} {
		assert.NotContains(t, req.System, header)
	}
	assert.Contains(t, req.User, "Them: hi")
}

type fakeNames struct {
	names map[string]string
	loads int
}

func (f *fakeNames) Load(context.Context) error {
	f.loads++
	return nil
}

func (f *fakeNames) Lookup(id string) (string, bool) {
	name, ok := f.names[id]
	return name, ok
}

func TestGenerateSuggestionsUsesDirectoryName(t *testing.T) {
	names := &fakeNames{names: map[string]string{"+15551234567": "Alice"}}
	llm := &fakeCompleter{reply: `["ok"]`}
	svc := NewService(&fakeContexts{}, &fakeMessages{}, names, llm, nil, nil, Options{})

	_, err := svc.GenerateSuggestions(context.Background(), SuggestRequest{
		Identifier: "+15551234567",
		Messages:   []RecentMessage{{Text: "hey"}, {Text: "hi!", IsFromMe: true}},
	})
	require.NoError(t, err)

	req := llm.requests[0]
	assert.Equal(t, 1, names.loads)
	assert.Contains(t, req.System, "response to Alice")
	assert.Contains(t, req.User, "Alice: hey\nYou: hi!")
}

func TestGenerateSuggestionsSavedNameBeatsDirectory(t *testing.T) {
	names := &fakeNames{names: map[string]string{"+15551234567": "Alice Smith"}}
	contexts := &fakeContexts{contact: &store.ContactContext{Name: "Ali"}}
	llm := &fakeCompleter{reply: `["ok"]`}
	svc := NewService(contexts, &fakeMessages{}, names, llm, nil, nil, Options{})

	_, err := svc.GenerateSuggestions(context.Background(), SuggestRequest{
		Identifier: "+15551234567",
		Messages:   []RecentMessage{{Text: "hey"}},
	})
	require.NoError(t, err)
	assert.Contains(t, llm.requests[0].User, "Ali: hey")
	assert.Zero(t, names.loads)
}

func TestGenerateSuggestionsUnknownToDirectory(t *testing.T) {
	names := &fakeNames{names: map[string]string{}}
	llm := &fakeCompleter{reply: `["ok"]`}
	svc := NewService(&fakeContexts{}, &fakeMessages{}, names, llm, nil, nil, Options{})

	_, err := svc.GenerateSuggestions(context.Background(), SuggestRequest{
		Identifier: "+15551234567",
		Messages:   []RecentMessage{{Text: "hey"}},
	})
	require.NoError(t, err)
	assert.Contains(t, llm.requests[0].System, "response to +15551234567")
	assert.Contains(t, llm.requests[0].User, "Them: hey")
}

func TestGenerateSuggestionsFailures(t *testing.T) {
	ctx := context.Background()
	req := SuggestRequest{Identifier: "+1", Messages: []RecentMessage{{Text: "hi"}}}

	backendDown := newTestService(&fakeContexts{}, &fakeMessages{}, &fakeCompleter{err: errors.New("503")}, nil)
	_, err := backendDown.GenerateSuggestions(ctx, req)
	assert.ErrorIs(t, err, ErrGenerationFailed)

	garbage := newTestService(&fakeContexts{}, &fakeMessages{}, &fakeCompleter{reply: "I cannot help"}, nil)
	_, err = garbage.GenerateSuggestions(ctx, req)
	assert.ErrorIs(t, err, ErrGenerationFailed)

	llm := &fakeCompleter{reply: `["x"]`}
	noID := newTestService(&fakeContexts{}, &fakeMessages{}, llm, nil)
	_, err = noID.GenerateSuggestions(ctx, SuggestRequest{Identifier: " "})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Empty(t, llm.requests)

	storeDown := newTestService(&fakeContexts{err: errors.New("disk")}, &fakeMessages{}, llm, nil)
	_, err = storeDown.GenerateSuggestions(ctx, req)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrGenerationFailed)
}

func TestGenerateSuggestionsEmitsEvent(t *testing.T) {
	b := bus.New()
	events, cancel := b.Subscribe("suggest.", 1)
	defer cancel()

	svc := newTestService(&fakeContexts{}, &fakeMessages{}, &fakeCompleter{reply: `{"responses": ["a", "b"]}`}, b)
	_, err := svc.GenerateSuggestions(context.Background(), SuggestRequest{Identifier: "+1"})
	require.NoError(t, err)

	evt := <-events
	assert.Equal(t, bus.KindSuggestionsGenerated, evt.Kind)
	assert.Equal(t, SuggestionsGenerated{Identifier: "+1", Count: 2, Shape: "responses field"}, evt.Payload)
}

func TestSuggestForThread(t *testing.T) {
	msgs := &fakeMessages{thread: []chatdb.Message{
		{Text: text("are you coming?"), Date: 1},
		{Text: nil, Date: 2},
		{Text: text("on my way"), IsFromMe: true, Date: 3},
	}}
	llm := &fakeCompleter{reply: `["great"]`}
	svc := newTestService(&fakeContexts{}, msgs, llm, nil)

	res, err := svc.SuggestForThread(context.Background(), "+1", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"great"}, res.Suggestions)
	assert.Equal(t, transcriptWindow, msgs.lastLimit)
	assert.Contains(t, llm.requests[0].User, "Them: are you coming?\nYou: on my way")
}

func TestSuggestForThreadStoreUnavailable(t *testing.T) {
	unavailable := &chatdb.UnavailableError{Path: "chat.db", Err: errors.New("authorization denied")}
	svc := newTestService(&fakeContexts{}, &fakeMessages{err: unavailable}, &fakeCompleter{}, nil)

	_, err := svc.SuggestForThread(context.Background(), "+1", "")
	assert.ErrorIs(t, err, chatdb.ErrUnavailable)
}

func history() []chatdb.Message {
	return []chatdb.Message{
		{Text: text("Hello 😀"), Date: 1},
		{Text: text("this one is mine and long"), IsFromMe: true, Date: 2},
		{Text: text("Sure ☀"), Date: 3},
		{Text: text("ok"), Date: 4},
	}
}

func TestAnalyzeStyleWithBackend(t *testing.T) {
	llm := &fakeCompleter{reply: `{"formality": "casual", "analysis": "Short and friendly."}`}
	svc := newTestService(&fakeContexts{}, &fakeMessages{history: history()}, llm, nil)

	res, err := svc.AnalyzeStyle(context.Background(), "+1")
	require.NoError(t, err)
	assert.Equal(t, &StyleResult{Formality: store.Casual, AvgMessageLength: 5, EmojiFrequency: 0.67, Analysis: "Short and friendly."}, res)

	require.Len(t, llm.requests, 1)
	assert.Equal(t, "Hello 😀\nSure ☀\nok", llm.requests[0].User)
	assert.NotContains(t, llm.requests[0].User, "mine")
}

func TestAnalyzeStyleBackendFailureKeepsMetrics(t *testing.T) {
	for name, llm := range map[string]*fakeCompleter{
		"backend error": {err: errors.New("timeout")},
		"bad json":      {reply: "casual, I think"},
	} {
		t.Run(name, func(t *testing.T) {
			svc := newTestService(&fakeContexts{}, &fakeMessages{history: history()}, llm, nil)
			res, err := svc.AnalyzeStyle(context.Background(), "+1")
			require.NoError(t, err)
			assert.Equal(t, store.Neutral, res.Formality)
			assert.Equal(t, 5, res.AvgMessageLength)
			assert.InDelta(t, 0.67, res.EmojiFrequency, 1e-9)
			assert.Equal(t, analysisFallback, res.Analysis)
		})
	}
}

func TestAnalyzeStyleNotEnoughData(t *testing.T) {
	llm := &fakeCompleter{}
	msgs := &fakeMessages{history: []chatdb.Message{{Text: text("only me"), IsFromMe: true}}}
	svc := newTestService(&fakeContexts{}, msgs, llm, nil)

	res, err := svc.AnalyzeStyle(context.Background(), "+1")
	require.NoError(t, err)
	assert.Equal(t, &StyleResult{Formality: store.Neutral, Analysis: "Not enough data"}, res)
	assert.Empty(t, llm.requests)
}

func TestAnalyzeStyleStoreError(t *testing.T) {
	svc := newTestService(&fakeContexts{}, &fakeMessages{err: errors.New("locked")}, &fakeCompleter{}, nil)
	_, err := svc.AnalyzeStyle(context.Background(), "+1")
	assert.Error(t, err)
}

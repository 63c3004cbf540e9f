package api_test

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/matheus3301/replykit/internal/api"
	"github.com/matheus3301/replykit/internal/assist"
	"github.com/matheus3301/replykit/internal/bus"
	"github.com/matheus3301/replykit/internal/chatdb"
	"github.com/matheus3301/replykit/internal/chatdb/chatdbtest"
	"github.com/matheus3301/replykit/internal/client"
	"github.com/matheus3301/replykit/internal/directory"
	"github.com/matheus3301/replykit/internal/status"
	"github.com/matheus3301/replykit/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type scriptedCompleter struct {
	mu    sync.Mutex
	reply string
	err   error
	last  assist.Request
}

func (s *scriptedCompleter) Complete(_ context.Context, req assist.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = req
	return s.reply, s.err
}

func (s *scriptedCompleter) lastRequest() assist.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

type staticSource struct{ recs []directory.Record }

func (s staticSource) Name() string { return "static" }

func (s staticSource) Records(context.Context) ([]directory.Record, error) { return s.recs, nil }

type harness struct {
	client *client.Client
	bus    *bus.Bus
	llm    *scriptedCompleter
}

func newHarness(t *testing.T, chatPath string) *harness {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "context.db"))
	require.NoError(t, err)
	_, err = db.Migrate()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	b := bus.New()
	dir := directory.New(func() []directory.Source {
		return []directory.Source{staticSource{recs: []directory.Record{{First: "Dana", Last: "Cruz", Phone: "(555) 000-0001"}}}}
	}, status.NewMachine(b), b, nil)
	messages := chatdb.New(chatPath, dir, nil)
	t.Cleanup(func() { _ = messages.Close() })

	llm := &scriptedCompleter{reply: `{"suggestions": ["Sounds good", "Can't today", "Tomorrow?"]}`}
	svc := assist.NewService(db, messages, dir, llm, b, nil, assist.Options{})

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	api.RegisterAssistantServer(srv, api.NewAssistant(messages, db, svc, dir, b, nil))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	c := client.NewFromConn(conn)
	t.Cleanup(func() { _ = c.Close() })

	return &harness{client: c, bus: b, llm: llm}
}

func seedChat(t *testing.T) *chatdbtest.Fixture {
	f := chatdbtest.New(t)
	dana := f.Chat("Book Club", "+15550000001")
	sam := f.Chat("", "+15550000002")
	f.Message(dana, chatdbtest.Msg{Text: "are we still on?", Date: 725_760_000_123_456_789})
	f.Message(sam, chatdbtest.Msg{Text: "ok 👍", FromMe: true, Read: true, Date: 100})
	f.Message(sam, chatdbtest.Msg{Text: "see you ☀", Date: 200, Read: true})
	return f
}

func TestThreadsAndMessagesRoundTrip(t *testing.T) {
	h := newHarness(t, seedChat(t).Path)
	ctx := context.Background()

	threads, err := h.client.ListThreads(ctx)
	require.NoError(t, err)
	require.Len(t, threads.Threads, 2)

	first := threads.Threads[0]
	assert.Equal(t, "+15550000001", first.Identifier)
	assert.Equal(t, "Dana Cruz", first.DisplayName)
	assert.Equal(t, int64(725_760_000_123_456_789), first.LastMessageAt, "nanosecond timestamps survive the wire")
	assert.True(t, first.Unread)
	assert.Nil(t, first.Context)

	msgs, err := h.client.GetThread(ctx, "+15550000002", 10)
	require.NoError(t, err)
	require.Len(t, msgs.Messages, 2)
	assert.Equal(t, "ok 👍", msgs.Messages[0].Body())
	assert.True(t, msgs.Messages[0].IsFromMe)

	contacts, err := h.client.SearchContacts(ctx, "book", 0)
	require.NoError(t, err)
	require.Len(t, contacts.Contacts, 1)
	assert.Equal(t, "Book Club", contacts.Contacts[0].DisplayName)

	dirStatus, err := h.client.DirectoryStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, "LOADED", dirStatus.State)
	assert.Equal(t, 1, dirStatus.Entries)
}

func TestContextLifecycle(t *testing.T) {
	h := newHarness(t, seedChat(t).Path)
	ctx := context.Background()

	name := "Dana"
	formality := store.Casual
	saved, err := h.client.SaveContactContext(ctx, store.ContactContextUpdate{PhoneNumber: "+15550000001", Name: &name, Formality: &formality})
	require.NoError(t, err)
	require.NotNil(t, saved.Context)
	assert.Equal(t, "Dana", saved.Context.Name)

	updated, err := h.client.UpdateBackground(ctx, "+15550000001", "Neighbour, has a dog")
	require.NoError(t, err)
	assert.Equal(t, "Dana", updated.Context.Name)
	assert.Equal(t, "Neighbour, has a dog", updated.Context.BackgroundContext)

	_, err = h.client.UpdateBackground(ctx, "+19999999999", "x")
	assert.Equal(t, codes.NotFound, grpcstatus.Code(err))

	withCtx, err := h.client.GetContactWithContext(ctx, "+15550000001")
	require.NoError(t, err)
	require.NotNil(t, withCtx.Contact)
	assert.Equal(t, "Book Club", withCtx.Contact.DisplayName)
	assert.Equal(t, store.Casual, withCtx.Context.Formality)

	history, err := h.client.GetContextHistory(ctx, "+15550000001", 0)
	require.NoError(t, err)
	require.Len(t, history.History, 1)

	bad := store.Formality("loud")
	_, err = h.client.SaveContactContext(ctx, store.ContactContextUpdate{PhoneNumber: "+1", Formality: &bad})
	assert.Equal(t, codes.InvalidArgument, grpcstatus.Code(err))

	past := time.Now().Add(-time.Hour)
	_, err = h.client.AddUserContext(ctx, store.NewUserContext{Type: "status", Content: "was away", EndAt: &past})
	require.NoError(t, err)
	added, err := h.client.AddUserContext(ctx, store.NewUserContext{Type: "status", Content: "at the gym"})
	require.NoError(t, err)

	active, err := h.client.ListUserContext(ctx)
	require.NoError(t, err)
	require.Len(t, active.Entries, 1)
	assert.Equal(t, "at the gym", active.Entries[0].Content)

	all, err := h.client.ListAllUserContext(ctx)
	require.NoError(t, err)
	assert.Len(t, all.Entries, 2)

	del, err := h.client.DeleteUserContext(ctx, added.Entry.ID)
	require.NoError(t, err)
	assert.True(t, del.Success)
	_, err = h.client.DeleteUserContext(ctx, added.Entry.ID)
	require.NoError(t, err)
}

func TestSuggestionsAndStyle(t *testing.T) {
	h := newHarness(t, seedChat(t).Path)
	ctx := context.Background()

	res, err := h.client.SuggestForThread(ctx, "+15550000002", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Sounds good", "Can't today", "Tomorrow?"}, res.Suggestions)

	_, err = h.client.SuggestForThread(ctx, "+15550000001", "")
	require.NoError(t, err)
	assert.Contains(t, h.llm.lastRequest().User, "Dana Cruz: are we still on?", "directory name labels the transcript")

	res, err = h.client.GenerateSuggestions(ctx, assist.SuggestRequest{
		Identifier: "+15550000002",
		Messages:   []assist.RecentMessage{{Text: "lunch?", Timestamp: 725_760_000_000_000_001}},
	})
	require.NoError(t, err)
	assert.Len(t, res.Suggestions, 3)

	h.llm.mu.Lock()
	h.llm.err = errors.New("quota exceeded")
	h.llm.mu.Unlock()
	_, err = h.client.SuggestForThread(ctx, "+15550000002", "")
	assert.Equal(t, codes.Unavailable, grpcstatus.Code(err))

	style, err := h.client.AnalyzeStyle(ctx, "+15550000002")
	require.NoError(t, err, "style analysis degrades instead of failing")
	assert.Equal(t, store.Neutral, style.Formality)
	assert.Equal(t, 9, style.AvgMessageLength)
	assert.InDelta(t, 1.0, style.EmojiFrequency, 1e-9)
}

func TestUnavailableStoreMapsToFailedPrecondition(t *testing.T) {
	h := newHarness(t, filepath.Join(t.TempDir(), "no", "chat.db"))

	_, err := h.client.ListContacts(context.Background())
	require.Error(t, err)
	assert.Equal(t, codes.FailedPrecondition, grpcstatus.Code(err))
	assert.Contains(t, grpcstatus.Convert(err).Message(), "Full Disk Access")

	_, err = h.client.GetThread(context.Background(), "", 0)
	assert.Equal(t, codes.InvalidArgument, grpcstatus.Code(err))
}

func TestWatchEventsRelaysBus(t *testing.T) {
	h := newHarness(t, seedChat(t).Path)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan api.EventMessage, 1)
	done := make(chan error, 1)
	go func() {
		done <- h.client.WatchEvents(ctx, "usercontext.", func(evt api.EventMessage) error {
			got <- evt
			return errors.New("stop")
		})
	}()

	require.Eventually(t, func() bool { return h.bus.Subscribers() > 0 }, 2*time.Second, 10*time.Millisecond)
	_, err := h.client.AddUserContext(ctx, store.NewUserContext{Type: "mood", Content: "sleepy"})
	require.NoError(t, err)

	select {
	case evt := <-got:
		assert.Equal(t, bus.KindUserContextAdded, evt.Kind)
		payload, ok := evt.Payload.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "sleepy", payload["content"])
	case <-ctx.Done():
		t.Fatal("no event relayed")
	}
	assert.EqualError(t, <-done, "stop")
	cancel()
}

// Package api exposes the message store, context store and suggestion
// pipeline over gRPC.
package api

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/matheus3301/replykit/internal/assist"
	"github.com/matheus3301/replykit/internal/bus"
	"github.com/matheus3301/replykit/internal/chatdb"
	"github.com/matheus3301/replykit/internal/directory"
	"github.com/matheus3301/replykit/internal/logging"
	"github.com/matheus3301/replykit/internal/store"
)

const watchBuffer = 256

// Assistant implements AssistantServer.
type Assistant struct {
	messages  *chatdb.Store
	contexts  *store.DB
	assist    *assist.Service
	directory *directory.Cache
	bus       *bus.Bus
	log       *zap.Logger
}

// NewAssistant creates the service.
func NewAssistant(messages *chatdb.Store, contexts *store.DB, svc *assist.Service, dir *directory.Cache, b *bus.Bus, log *zap.Logger) *Assistant {
	return &Assistant{
		messages:  messages,
		contexts:  contexts,
		assist:    svc,
		directory: dir,
		bus:       b,
		log:       logging.OrNop(log),
	}
}

func requirePhone(phone string) error {
	if strings.TrimSpace(phone) == "" {
		return grpcstatus.Error(codes.InvalidArgument, "phone_number is required")
	}
	return nil
}

func (a *Assistant) ListContacts(ctx context.Context, _ *Empty) (*ContactsResponse, error) {
	contacts, err := a.messages.ListContacts(ctx)
	if err != nil {
		return nil, toStatus("list contacts", err)
	}
	return &ContactsResponse{Contacts: contacts}, nil
}

func (a *Assistant) SearchContacts(ctx context.Context, req *SearchContactsRequest) (*ContactsResponse, error) {
	contacts, err := a.messages.SearchContacts(ctx, req.Query, req.Limit)
	if err != nil {
		return nil, toStatus("search contacts", err)
	}
	return &ContactsResponse{Contacts: contacts}, nil
}

func (a *Assistant) ListThreads(ctx context.Context, _ *Empty) (*ThreadsResponse, error) {
	previews, err := a.messages.ListThreadPreviews(ctx)
	if err != nil {
		return nil, toStatus("list threads", err)
	}
	threads := make([]Thread, 0, len(previews))
	for _, p := range previews {
		cc, err := a.contexts.GetContactContext(ctx, p.Identifier)
		if err != nil {
			return nil, toStatus("list threads", err)
		}
		threads = append(threads, Thread{ThreadPreview: p, Context: cc})
	}
	return &ThreadsResponse{Threads: threads}, nil
}

func (a *Assistant) GetThread(ctx context.Context, req *ThreadRequest) (*MessagesResponse, error) {
	if err := requirePhone(req.PhoneNumber); err != nil {
		return nil, err
	}
	msgs, err := a.messages.GetThread(ctx, req.PhoneNumber, req.Limit)
	if err != nil {
		return nil, toStatus("get thread", err)
	}
	return &MessagesResponse{Messages: msgs}, nil
}

func (a *Assistant) GetHistory(ctx context.Context, req *ContactRequest) (*MessagesResponse, error) {
	if err := requirePhone(req.PhoneNumber); err != nil {
		return nil, err
	}
	msgs, err := a.messages.GetFullHistory(ctx, req.PhoneNumber)
	if err != nil {
		return nil, toStatus("get history", err)
	}
	return &MessagesResponse{Messages: msgs}, nil
}

func (a *Assistant) GetContactWithContext(ctx context.Context, req *ContactRequest) (*ContactWithContextResponse, error) {
	if err := requirePhone(req.PhoneNumber); err != nil {
		return nil, err
	}
	contact, err := a.messages.FindContact(ctx, req.PhoneNumber)
	if err != nil {
		return nil, toStatus("get contact", err)
	}
	cc, err := a.contexts.GetContactContext(ctx, req.PhoneNumber)
	if err != nil {
		return nil, toStatus("get contact", err)
	}
	return &ContactWithContextResponse{Contact: contact, Context: cc}, nil
}

func (a *Assistant) ListContactContexts(ctx context.Context, _ *Empty) (*ContactContextsResponse, error) {
	list, err := a.contexts.ListContactContexts(ctx)
	if err != nil {
		return nil, toStatus("list contact contexts", err)
	}
	return &ContactContextsResponse{Contexts: list}, nil
}

func (a *Assistant) SaveContactContext(ctx context.Context, req *store.ContactContextUpdate) (*ContactContextResponse, error) {
	cc, err := a.contexts.SaveContactContext(ctx, *req)
	if err != nil {
		return nil, toStatus("save contact context", err)
	}
	a.log.Info("contact context saved", zap.String("contact", cc.PhoneNumber))
	a.bus.Emit(bus.KindContextSaved, cc)
	return &ContactContextResponse{Context: cc}, nil
}

func (a *Assistant) UpdateBackground(ctx context.Context, req *UpdateBackgroundRequest) (*ContactContextResponse, error) {
	if err := requirePhone(req.PhoneNumber); err != nil {
		return nil, err
	}
	cc, err := a.contexts.UpdateBackground(ctx, req.PhoneNumber, req.BackgroundContext)
	if err != nil {
		return nil, toStatus("update background", err)
	}
	if cc == nil {
		return nil, grpcstatus.Errorf(codes.NotFound, "no context saved for %q", req.PhoneNumber)
	}
	a.bus.Emit(bus.KindContextSaved, cc)
	return &ContactContextResponse{Context: cc}, nil
}

func (a *Assistant) GetContextHistory(ctx context.Context, req *ContextHistoryRequest) (*ContextHistoryResponse, error) {
	if err := requirePhone(req.PhoneNumber); err != nil {
		return nil, err
	}
	cc, err := a.contexts.GetContactContext(ctx, req.PhoneNumber)
	if err != nil {
		return nil, toStatus("get context history", err)
	}
	if cc == nil {
		return &ContextHistoryResponse{}, nil
	}
	history, err := a.contexts.ContextHistory(ctx, cc.ID, req.Limit)
	if err != nil {
		return nil, toStatus("get context history", err)
	}
	return &ContextHistoryResponse{History: history}, nil
}

func (a *Assistant) ListUserContext(ctx context.Context, _ *Empty) (*UserContextResponse, error) {
	entries, err := a.contexts.ActiveUserContext(ctx)
	if err != nil {
		return nil, toStatus("list user context", err)
	}
	return &UserContextResponse{Entries: entries}, nil
}

func (a *Assistant) ListAllUserContext(ctx context.Context, _ *Empty) (*UserContextResponse, error) {
	entries, err := a.contexts.AllUserContext(ctx)
	if err != nil {
		return nil, toStatus("list all user context", err)
	}
	return &UserContextResponse{Entries: entries}, nil
}

func (a *Assistant) AddUserContext(ctx context.Context, req *store.NewUserContext) (*UserContextEntryResponse, error) {
	entry, err := a.contexts.AddUserContext(ctx, *req)
	if err != nil {
		return nil, toStatus("add user context", err)
	}
	a.bus.Emit(bus.KindUserContextAdded, entry)
	return &UserContextEntryResponse{Entry: entry}, nil
}

func (a *Assistant) DeleteUserContext(ctx context.Context, req *DeleteUserContextRequest) (*SuccessResponse, error) {
	if err := a.contexts.DeleteUserContext(ctx, req.ID); err != nil {
		return nil, toStatus("delete user context", err)
	}
	a.bus.Emit(bus.KindUserContextDeleted, req)
	return &SuccessResponse{Success: true}, nil
}

func (a *Assistant) GenerateSuggestions(ctx context.Context, req *assist.SuggestRequest) (*assist.Suggestions, error) {
	out, err := a.assist.GenerateSuggestions(ctx, *req)
	if err != nil {
		return nil, toStatus("generate suggestions", err)
	}
	return out, nil
}

func (a *Assistant) SuggestForThread(ctx context.Context, req *SuggestForThreadRequest) (*assist.Suggestions, error) {
	out, err := a.assist.SuggestForThread(ctx, req.PhoneNumber, req.AdditionalContext)
	if err != nil {
		return nil, toStatus("suggest for thread", err)
	}
	return out, nil
}

func (a *Assistant) AnalyzeStyle(ctx context.Context, req *ContactRequest) (*assist.StyleResult, error) {
	out, err := a.assist.AnalyzeStyle(ctx, req.PhoneNumber)
	if err != nil {
		return nil, toStatus("analyze style", err)
	}
	return out, nil
}

func (a *Assistant) DirectoryStatus(_ context.Context, _ *Empty) (*DirectoryStatusResponse, error) {
	return &DirectoryStatusResponse{State: string(a.directory.State()), Entries: a.directory.Len()}, nil
}

func (a *Assistant) RebuildDirectory(ctx context.Context, _ *Empty) (*DirectoryStatusResponse, error) {
	if err := a.directory.Rebuild(ctx); err != nil {
		return nil, toStatus("rebuild directory", err)
	}
	return a.DirectoryStatus(ctx, nil)
}

// WatchEvents relays bus events until the client goes away.
func (a *Assistant) WatchEvents(req *WatchRequest, stream EventStream) error {
	ch, unsub := a.bus.Subscribe(req.Prefix, watchBuffer)
	defer unsub()

	for {
		select {
		case evt := <-ch:
			if err := stream.Send(&EventMessage{
				ID:         evt.ID,
				Kind:       evt.Kind,
				OccurredAt: evt.Timestamp,
				Payload:    evt.Payload,
			}); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}

package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/matheus3301/replykit/internal/assist"
	"github.com/matheus3301/replykit/internal/store"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "replykit.v1.Assistant"

// AssistantServer is the server API for the Assistant service. Every
// message travels as a google.protobuf.Struct built from the Go types in
// this package.
type AssistantServer interface {
	ListContacts(context.Context, *Empty) (*ContactsResponse, error)
	SearchContacts(context.Context, *SearchContactsRequest) (*ContactsResponse, error)
	ListThreads(context.Context, *Empty) (*ThreadsResponse, error)
	GetThread(context.Context, *ThreadRequest) (*MessagesResponse, error)
	GetHistory(context.Context, *ContactRequest) (*MessagesResponse, error)
	GetContactWithContext(context.Context, *ContactRequest) (*ContactWithContextResponse, error)
	ListContactContexts(context.Context, *Empty) (*ContactContextsResponse, error)
	SaveContactContext(context.Context, *store.ContactContextUpdate) (*ContactContextResponse, error)
	UpdateBackground(context.Context, *UpdateBackgroundRequest) (*ContactContextResponse, error)
	GetContextHistory(context.Context, *ContextHistoryRequest) (*ContextHistoryResponse, error)
	ListUserContext(context.Context, *Empty) (*UserContextResponse, error)
	ListAllUserContext(context.Context, *Empty) (*UserContextResponse, error)
	AddUserContext(context.Context, *store.NewUserContext) (*UserContextEntryResponse, error)
	DeleteUserContext(context.Context, *DeleteUserContextRequest) (*SuccessResponse, error)
	GenerateSuggestions(context.Context, *assist.SuggestRequest) (*assist.Suggestions, error)
	SuggestForThread(context.Context, *SuggestForThreadRequest) (*assist.Suggestions, error)
	AnalyzeStyle(context.Context, *ContactRequest) (*assist.StyleResult, error)
	DirectoryStatus(context.Context, *Empty) (*DirectoryStatusResponse, error)
	RebuildDirectory(context.Context, *Empty) (*DirectoryStatusResponse, error)
	WatchEvents(*WatchRequest, EventStream) error
}

// EventStream is the server side of WatchEvents.
type EventStream interface {
	Send(*EventMessage) error
	Context() context.Context
}

// RegisterAssistantServer registers srv on s.
func RegisterAssistantServer(s grpc.ServiceRegistrar, srv AssistantServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// FullMethod returns the gRPC path of a method.
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// ServiceDesc describes the Assistant service for grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AssistantServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("ListContacts", AssistantServer.ListContacts),
		unary("SearchContacts", AssistantServer.SearchContacts),
		unary("ListThreads", AssistantServer.ListThreads),
		unary("GetThread", AssistantServer.GetThread),
		unary("GetHistory", AssistantServer.GetHistory),
		unary("GetContactWithContext", AssistantServer.GetContactWithContext),
		unary("ListContactContexts", AssistantServer.ListContactContexts),
		unary("SaveContactContext", AssistantServer.SaveContactContext),
		unary("UpdateBackground", AssistantServer.UpdateBackground),
		unary("GetContextHistory", AssistantServer.GetContextHistory),
		unary("ListUserContext", AssistantServer.ListUserContext),
		unary("ListAllUserContext", AssistantServer.ListAllUserContext),
		unary("AddUserContext", AssistantServer.AddUserContext),
		unary("DeleteUserContext", AssistantServer.DeleteUserContext),
		unary("GenerateSuggestions", AssistantServer.GenerateSuggestions),
		unary("SuggestForThread", AssistantServer.SuggestForThread),
		unary("AnalyzeStyle", AssistantServer.AnalyzeStyle),
		unary("DirectoryStatus", AssistantServer.DirectoryStatus),
		unary("RebuildDirectory", AssistantServer.RebuildDirectory),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchEvents",
			Handler:       watchEventsHandler,
			ServerStreams: true,
		},
	},
	Metadata: "replykit/v1/assistant.proto",
}

func unary[Req, Resp any](name string, call func(AssistantServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			handler := func(ctx context.Context, raw any) (any, error) {
				req := new(Req)
				if err := Decode(raw.(*structpb.Struct), req); err != nil {
					return nil, grpcstatus.Errorf(codes.InvalidArgument, "%s: %v", name, err)
				}
				resp, err := call(srv.(AssistantServer), ctx, req)
				if err != nil {
					return nil, err
				}
				return Encode(resp)
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			return interceptor(ctx, in, info, handler)
		},
	}
}

type eventStream struct {
	grpc.ServerStream
}

func (s *eventStream) Send(m *EventMessage) error {
	out, err := Encode(m)
	if err != nil {
		return err
	}
	return s.ServerStream.SendMsg(out)
}

func watchEventsHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	req := new(WatchRequest)
	if err := Decode(in, req); err != nil {
		return grpcstatus.Errorf(codes.InvalidArgument, "WatchEvents: %v", err)
	}
	return srv.(AssistantServer).WatchEvents(req, &eventStream{stream})
}

// Package client is the typed gRPC client for the replykit daemon.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/matheus3301/replykit/internal/api"
	"github.com/matheus3301/replykit/internal/assist"
	"github.com/matheus3301/replykit/internal/store"
)

// Client wraps the gRPC connection to the daemon.
type Client struct {
	conn *grpc.ClientConn
}

// New dials the daemon's Unix domain socket.
func New(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	return &Client{conn: conn}, nil
}

// NewFromConn wraps an existing connection.
func NewFromConn(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func invoke[Resp any](ctx context.Context, c *Client, method string, req any) (*Resp, error) {
	in, err := api.Encode(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, api.FullMethod(method), in, out); err != nil {
		return nil, err
	}
	resp := new(Resp)
	if err := api.Decode(out, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

var empty = &api.Empty{}

func (c *Client) ListContacts(ctx context.Context) (*api.ContactsResponse, error) {
	return invoke[api.ContactsResponse](ctx, c, "ListContacts", empty)
}

func (c *Client) SearchContacts(ctx context.Context, query string, limit int) (*api.ContactsResponse, error) {
	return invoke[api.ContactsResponse](ctx, c, "SearchContacts", &api.SearchContactsRequest{Query: query, Limit: limit})
}

func (c *Client) ListThreads(ctx context.Context) (*api.ThreadsResponse, error) {
	return invoke[api.ThreadsResponse](ctx, c, "ListThreads", empty)
}

func (c *Client) GetThread(ctx context.Context, phone string, limit int) (*api.MessagesResponse, error) {
	return invoke[api.MessagesResponse](ctx, c, "GetThread", &api.ThreadRequest{PhoneNumber: phone, Limit: limit})
}

func (c *Client) GetHistory(ctx context.Context, phone string) (*api.MessagesResponse, error) {
	return invoke[api.MessagesResponse](ctx, c, "GetHistory", &api.ContactRequest{PhoneNumber: phone})
}

func (c *Client) GetContactWithContext(ctx context.Context, phone string) (*api.ContactWithContextResponse, error) {
	return invoke[api.ContactWithContextResponse](ctx, c, "GetContactWithContext", &api.ContactRequest{PhoneNumber: phone})
}

func (c *Client) ListContactContexts(ctx context.Context) (*api.ContactContextsResponse, error) {
	return invoke[api.ContactContextsResponse](ctx, c, "ListContactContexts", empty)
}

func (c *Client) SaveContactContext(ctx context.Context, u store.ContactContextUpdate) (*api.ContactContextResponse, error) {
	return invoke[api.ContactContextResponse](ctx, c, "SaveContactContext", &u)
}

func (c *Client) UpdateBackground(ctx context.Context, phone, background string) (*api.ContactContextResponse, error) {
	return invoke[api.ContactContextResponse](ctx, c, "UpdateBackground", &api.UpdateBackgroundRequest{PhoneNumber: phone, BackgroundContext: background})
}

func (c *Client) GetContextHistory(ctx context.Context, phone string, limit int) (*api.ContextHistoryResponse, error) {
	return invoke[api.ContextHistoryResponse](ctx, c, "GetContextHistory", &api.ContextHistoryRequest{PhoneNumber: phone, Limit: limit})
}

func (c *Client) ListUserContext(ctx context.Context) (*api.UserContextResponse, error) {
	return invoke[api.UserContextResponse](ctx, c, "ListUserContext", empty)
}

func (c *Client) ListAllUserContext(ctx context.Context) (*api.UserContextResponse, error) {
	return invoke[api.UserContextResponse](ctx, c, "ListAllUserContext", empty)
}

func (c *Client) AddUserContext(ctx context.Context, in store.NewUserContext) (*api.UserContextEntryResponse, error) {
	return invoke[api.UserContextEntryResponse](ctx, c, "AddUserContext", &in)
}

func (c *Client) DeleteUserContext(ctx context.Context, id int64) (*api.SuccessResponse, error) {
	return invoke[api.SuccessResponse](ctx, c, "DeleteUserContext", &api.DeleteUserContextRequest{ID: id})
}

func (c *Client) GenerateSuggestions(ctx context.Context, req assist.SuggestRequest) (*assist.Suggestions, error) {
	return invoke[assist.Suggestions](ctx, c, "GenerateSuggestions", &req)
}

func (c *Client) SuggestForThread(ctx context.Context, phone, additional string) (*assist.Suggestions, error) {
	return invoke[assist.Suggestions](ctx, c, "SuggestForThread", &api.SuggestForThreadRequest{PhoneNumber: phone, AdditionalContext: additional})
}

func (c *Client) AnalyzeStyle(ctx context.Context, phone string) (*assist.StyleResult, error) {
	return invoke[assist.StyleResult](ctx, c, "AnalyzeStyle", &api.ContactRequest{PhoneNumber: phone})
}

func (c *Client) DirectoryStatus(ctx context.Context) (*api.DirectoryStatusResponse, error) {
	return invoke[api.DirectoryStatusResponse](ctx, c, "DirectoryStatus", empty)
}

func (c *Client) RebuildDirectory(ctx context.Context) (*api.DirectoryStatusResponse, error) {
	return invoke[api.DirectoryStatusResponse](ctx, c, "RebuildDirectory", empty)
}

// WatchEvents streams events whose kind starts with prefix to fn until ctx
// ends, the daemon closes the stream or fn returns an error.
func (c *Client) WatchEvents(ctx context.Context, prefix string, fn func(api.EventMessage) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := c.conn.NewStream(ctx, &api.ServiceDesc.Streams[0], api.FullMethod("WatchEvents"))
	if err != nil {
		return err
	}
	in, err := api.Encode(&api.WatchRequest{Prefix: prefix})
	if err != nil {
		return err
	}
	if err := stream.SendMsg(in); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		out := new(structpb.Struct)
		if err := stream.RecvMsg(out); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		var evt api.EventMessage
		if err := api.Decode(out, &evt); err != nil {
			return err
		}
		if err := fn(evt); err != nil {
			return err
		}
	}
}

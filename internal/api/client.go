package api

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client is a typed client for the control service.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to the daemon's Unix domain socket. The connection is
// established lazily on the first call.
func Dial(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(Codec{})),
	)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	return &Client{conn: conn}, nil
}

// NewClient wraps an existing connection. The connection must use Codec.
func NewClient(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func invoke[Req, Resp any](ctx context.Context, c *Client, method string, req *Req) (*Resp, error) {
	resp := new(Resp)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, req, resp, grpc.ForceCodec(Codec{})); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) ListClients(ctx context.Context) (*ListClientsResponse, error) {
	return invoke[ListClientsRequest, ListClientsResponse](ctx, c, "ListClients", &ListClientsRequest{})
}

func (c *Client) Open(ctx context.Context, req *OpenRequest) (*OpenResponse, error) {
	return invoke[OpenRequest, OpenResponse](ctx, c, "Open", req)
}

func (c *Client) StartAuth(ctx context.Context, req *StartAuthRequest) (*ClientResponse, error) {
	return invoke[StartAuthRequest, ClientResponse](ctx, c, "StartAuth", req)
}

func (c *Client) SubmitAuth(ctx context.Context, req *SubmitAuthRequest) (*ClientResponse, error) {
	return invoke[SubmitAuthRequest, ClientResponse](ctx, c, "SubmitAuth", req)
}

func (c *Client) Logout(ctx context.Context, req *LogoutRequest) (*ClientResponse, error) {
	return invoke[LogoutRequest, ClientResponse](ctx, c, "Logout", req)
}

func (c *Client) Contacts(ctx context.Context, req *ContactsRequest) (*ContactsResponse, error) {
	return invoke[ContactsRequest, ContactsResponse](ctx, c, "Contacts", req)
}

func (c *Client) Chats(ctx context.Context, req *ChatsRequest) (*ChatsResponse, error) {
	return invoke[ChatsRequest, ChatsResponse](ctx, c, "Chats", req)
}

func (c *Client) History(ctx context.Context, req *HistoryRequest) (*HistoryResponse, error) {
	return invoke[HistoryRequest, HistoryResponse](ctx, c, "History", req)
}

func (c *Client) Send(ctx context.Context, req *SendRequest) (*SendResponse, error) {
	return invoke[SendRequest, SendResponse](ctx, c, "Send", req)
}

func (c *Client) Edit(ctx context.Context, req *EditRequest) (*ChangeResponse, error) {
	return invoke[EditRequest, ChangeResponse](ctx, c, "Edit", req)
}

func (c *Client) Delete(ctx context.Context, req *DeleteRequest) (*ChangeResponse, error) {
	return invoke[DeleteRequest, ChangeResponse](ctx, c, "Delete", req)
}

// Watch streams events to fn until ctx is done, the server ends the stream,
// or fn returns an error. A clean end of stream returns nil.
func (c *Client) Watch(ctx context.Context, req *WatchRequest, fn func(*Event) error) error {
	stream, err := c.conn.NewStream(ctx, &ServiceDesc.Streams[0], "/"+ServiceName+"/Watch", grpc.ForceCodec(Codec{}))
	if err != nil {
		return err
	}
	if err := stream.SendMsg(req); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		evt := new(Event)
		if err := stream.RecvMsg(evt); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := fn(evt); err != nil {
			return err
		}
	}
}

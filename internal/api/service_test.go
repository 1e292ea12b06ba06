package api

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/matheus3301/omnichat/internal/app"
	"github.com/matheus3301/omnichat/internal/client"
	"github.com/matheus3301/omnichat/internal/domain"
	"github.com/matheus3301/omnichat/internal/provider"
	"github.com/matheus3301/omnichat/internal/provider/mock"
)

const mockID = "mock-client-1"

// serve runs the control service for a hub holding one mock client and
// returns a connected client.
func serve(t *testing.T) (*Client, *app.Hub) {
	t.Helper()
	hub := app.New(client.NewRegistry(), zap.NewNop())
	hub.Add(client.New(mockID, "Mock Provider", mock.New(zap.NewNop()), zap.NewNop()))

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.ForceServerCodec(Codec{}))
	Register(srv, NewService(hub, zap.NewNop()))
	go func() { _ = srv.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(Codec{})),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		srv.Stop()
		require.NoError(t, hub.Shutdown(context.Background()))
	})
	return NewClient(conn), hub
}

func requireCode(t *testing.T, err error, want codes.Code) {
	t.Helper()
	require.Error(t, err)
	st, ok := grpcstatus.FromError(err)
	require.True(t, ok, "not a status error: %v", err)
	require.Equal(t, want, st.Code(), st.Message())
}

func TestListClients(t *testing.T) {
	c, _ := serve(t)
	resp, err := c.ListClients(context.Background())
	require.NoError(t, err)
	require.Len(t, resp.Clients, 1)
	require.Equal(t, mockID, resp.Clients[0].ID)
	require.Equal(t, mock.ID, resp.Clients[0].ProviderID)
	require.False(t, resp.Clients[0].Active)
	require.Equal(t, domain.AuthOffline, resp.Clients[0].AuthStatus)
}

func TestOpenAndConverse(t *testing.T) {
	c, _ := serve(t)
	ctx := context.Background()

	open, err := c.Open(ctx, &OpenRequest{ClientID: mockID})
	require.NoError(t, err)
	require.Equal(t, app.ScreenContacts, open.Screen)
	require.True(t, open.Client.Active)
	require.Equal(t, domain.AuthAuthenticated, open.Client.AuthStatus)

	contacts, err := c.Contacts(ctx, &ContactsRequest{})
	require.NoError(t, err)
	require.Len(t, contacts.Contacts, 2)

	chats, err := c.Chats(ctx, &ChatsRequest{ClientID: mockID})
	require.NoError(t, err)
	require.Len(t, chats.Chats, 2)

	contactID := contacts.Contacts[0].ID
	sent, err := c.Send(ctx, &SendRequest{ContactID: contactID, Payload: domain.OutboundPayload{Text: "hi"}})
	require.NoError(t, err)
	require.Empty(t, sent.Error)
	require.Equal(t, "hi", sent.Message.Content)
	require.Equal(t, domain.StatusSent, sent.Message.Status)

	require.Eventually(t, func() bool {
		hist, err := c.History(ctx, &HistoryRequest{ContactID: contactID})
		if err != nil {
			return false
		}
		for _, m := range hist.Messages {
			if m.Content == "Mock reply received" {
				return true
			}
		}
		return false
	}, 3*time.Second, 50*time.Millisecond)

	edited, err := c.Edit(ctx, &EditRequest{ContactID: contactID, MessageID: sent.Message.ID, Content: "hello"})
	require.NoError(t, err)
	require.True(t, edited.OK)

	deleted, err := c.Delete(ctx, &DeleteRequest{ContactID: contactID, MessageID: sent.Message.ID})
	require.NoError(t, err)
	require.True(t, deleted.OK)
}

func TestErrorsMapToCodes(t *testing.T) {
	c, _ := serve(t)
	ctx := context.Background()

	_, err := c.Open(ctx, &OpenRequest{ClientID: "nope"})
	requireCode(t, err, codes.NotFound)

	_, err = c.Edit(ctx, &EditRequest{ContactID: "c1", MessageID: "m1", Content: "x"})
	requireCode(t, err, codes.FailedPrecondition)

	_, err = c.Send(ctx, &SendRequest{ClientID: "nope", ContactID: "c1"})
	requireCode(t, err, codes.NotFound)
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{app.ErrNotOwnMessage, codes.PermissionDenied},
		{provider.ErrNotReady, codes.Unavailable},
		{provider.ErrUnsupported, codes.Unimplemented},
		{provider.ErrInvalidPhoneNumber, codes.InvalidArgument},
		{provider.ErrReplyTargetNotFound, codes.NotFound},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{grpcstatus.Error(codes.Aborted, "kept"), codes.Aborted},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, grpcstatus.Code(toStatus(tt.err)), tt.err.Error())
	}
	require.NoError(t, toStatus(nil))
}

func TestWatchStreamsClientEvents(t *testing.T) {
	c, _ := serve(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events := make(chan *Event, 64)
	done := make(chan error, 1)
	go func() {
		done <- c.Watch(ctx, &WatchRequest{ClientID: mockID}, func(e *Event) error {
			events <- e
			return nil
		})
	}()

	// Watch subscribes once the request arrives.
	time.Sleep(100 * time.Millisecond)
	_, err := c.Open(ctx, &OpenRequest{ClientID: mockID})
	require.NoError(t, err)

	for {
		select {
		case e := <-events:
			if e.Kind != string(domain.ClientConnected) {
				continue
			}
			require.Equal(t, mockID, e.ClientID)
			var payload domain.ClientEvent
			require.NoError(t, json.Unmarshal(e.Payload, &payload))
			require.Equal(t, mock.ID, payload.ProviderID)
			cancel()
			<-done
			return
		case err := <-done:
			t.Fatalf("watch ended early: %v", err)
		case <-ctx.Done():
			t.Fatal("timeout waiting for client:connected")
		}
	}
}

func TestWatchUnknownClient(t *testing.T) {
	c, _ := serve(t)
	err := c.Watch(context.Background(), &WatchRequest{ClientID: "nope"}, func(*Event) error { return nil })
	requireCode(t, err, codes.NotFound)
}

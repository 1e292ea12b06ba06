package client

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/matheus3301/omnichat/internal/bus"
	"github.com/matheus3301/omnichat/internal/domain"
	"github.com/matheus3301/omnichat/internal/provider"
	"github.com/matheus3301/omnichat/internal/provider/mock"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// bareAdapter implements only the required adapter surface.
type bareAdapter struct {
	connectErr error
	history    []domain.ChatMessage
}

func (bareAdapter) ID() string                          { return "bare" }
func (bareAdapter) Capabilities() provider.Capabilities { return provider.Capabilities{} }
func (a bareAdapter) Connect(context.Context, provider.Scope) error {
	return a.connectErr
}
func (bareAdapter) Disconnect(context.Context, provider.Scope) error {
	return errors.New("already gone")
}
func (bareAdapter) ListContacts(context.Context, provider.Scope) []domain.Contact { return nil }
func (bareAdapter) ListChats(context.Context, provider.Scope) []domain.Conversation {
	return []domain.Conversation{{ID: "c1", Name: "One"}}
}
func (a bareAdapter) LoadHistory(context.Context, provider.Scope, string) ([]domain.ChatMessage, error) {
	return a.history, nil
}
func (bareAdapter) SendMessage(_ context.Context, _ provider.Scope, contactID string, p domain.OutboundPayload) (domain.ChatMessage, error) {
	return domain.ChatMessage{ID: "m1", ContactID: contactID, Content: p.Text}, nil
}
func (bareAdapter) StartAuth(context.Context, provider.Scope, domain.AuthMethod) error { return nil }
func (bareAdapter) SubmitAuth(context.Context, provider.Scope, domain.AuthSubmission) error {
	return nil
}

func record[T any](b *bus.Bus, topic bus.Topic[T]) *[]T {
	var got []T
	bus.On(b, topic, func(v T) { got = append(got, v) })
	return &got
}

func TestConnectEmitsConnected(t *testing.T) {
	c := New("mock-client-1", "Mock", mock.New(zap.NewNop()), zap.NewNop())
	connected := record(c.Bus(), domain.ClientConnected)
	completed := record(c.Bus(), domain.AuthCompleted)

	require.NoError(t, c.Connect(context.Background()))
	require.NoError(t, c.Disconnect(context.Background()))

	require.Equal(t, []domain.ClientEvent{{ClientID: "mock-client-1", ProviderID: "mock"}}, *connected)
	require.Len(t, *completed, 1)
}

func TestConnectFailureEmitsError(t *testing.T) {
	c := New("bare-1", "Bare", bareAdapter{connectErr: errors.New("boom")}, zap.NewNop())
	errs := record(c.Bus(), domain.ClientErrored)
	connected := record(c.Bus(), domain.ClientConnected)

	err := c.Connect(context.Background())
	require.ErrorContains(t, err, "boom")
	require.Len(t, *errs, 1)
	require.Equal(t, "boom", (*errs)[0].Message)
	require.Empty(t, *connected)
}

func TestDisconnectAlwaysEmits(t *testing.T) {
	c := New("bare-1", "Bare", bareAdapter{}, zap.NewNop())
	disconnected := record(c.Bus(), domain.ClientDisconnected)

	require.Error(t, c.Disconnect(context.Background()))
	require.Len(t, *disconnected, 1)
}

func TestReadsPublishEvents(t *testing.T) {
	history := []domain.ChatMessage{{ID: "h1", Content: "old"}}
	c := New("bare-1", "Bare", bareAdapter{history: history}, zap.NewNop())
	chats := record(c.Bus(), domain.ChatsUpdated)
	contacts := record(c.Bus(), domain.ContactsUpdated)
	hist := record(c.Bus(), domain.ChatHistory)
	sent := record(c.Bus(), domain.MessageSent)

	ctx := context.Background()
	c.ListChats(ctx)
	c.ListContacts(ctx)
	_, err := c.LoadHistory(ctx, "c1")
	require.NoError(t, err)
	msg, err := c.SendMessage(ctx, "c1", domain.OutboundPayload{Text: "hi"})
	require.NoError(t, err)

	require.Len(t, *chats, 1)
	require.Equal(t, "c1", (*chats)[0].Chats[0].ID)
	require.Len(t, *contacts, 1)
	require.Equal(t, history, (*hist)[0].Messages)
	require.Equal(t, msg, (*sent)[0].Message)
	require.Equal(t, "c1", (*sent)[0].ContactID)
}

func TestOptionalCapabilities(t *testing.T) {
	ctx := context.Background()

	bare := New("bare-1", "Bare", bareAdapter{}, zap.NewNop())
	ok, err := bare.EditMessage(ctx, "c1", "m1", "x")
	require.NoError(t, err)
	require.False(t, ok)
	ok, err = bare.DeleteMessage(ctx, "c1", "m1")
	require.NoError(t, err)
	require.False(t, ok)

	m := New("mock-1", "Mock", mock.New(zap.NewNop()), zap.NewNop())
	ok, err = m.EditMessage(ctx, "c1", "m1", "x")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = m.DeleteMessage(ctx, "c1", "m1")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestLogoutEmitsOnce(t *testing.T) {
	ctx := context.Background()
	for _, c := range []*Client{
		New("bare-1", "Bare", bareAdapter{}, zap.NewNop()),
		New("mock-1", "Mock", mock.New(zap.NewNop()), zap.NewNop()),
	} {
		logouts := record(c.Bus(), domain.AuthLoggedOut)
		require.NoError(t, c.Logout(ctx))
		require.Len(t, *logouts, 1, c.ID())
	}
}

func TestDestroyDropsListeners(t *testing.T) {
	c := New("bare-1", "Bare", bareAdapter{}, zap.NewNop())
	chats := record(c.Bus(), domain.ChatsUpdated)

	c.Destroy()
	c.ListChats(context.Background())
	require.Empty(t, *chats)
}

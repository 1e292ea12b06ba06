package whatsapp

import (
	"context"
	"sync"

	"github.com/matheus3301/omnichat/internal/backend"
)

type sendOutcome struct {
	res backend.SendResult
	err error
}

type fakeClient struct {
	mu sync.Mutex

	events    chan backend.Event
	closeOnce sync.Once
	destroyed bool
	loggedOut bool

	initErr error
	onInit  func(c *fakeClient)

	contacts    []backend.RawContact
	contactsErr error
	chats       []backend.RawChat
	byID        map[string]backend.RawContact
	messages    map[string][]backend.RawMessage

	sends     []backend.Outgoing
	outcomes  []sendOutcome
	edits     []string
	revokes   []bool
	revokeErr map[bool]error
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		events:    make(chan backend.Event, 32),
		byID:      map[string]backend.RawContact{},
		messages:  map[string][]backend.RawMessage{},
		revokeErr: map[bool]error{},
	}
}

func (f *fakeClient) emit(ev backend.Event) { f.events <- ev }

func (f *fakeClient) Initialize(context.Context) error {
	if f.initErr != nil {
		return f.initErr
	}
	if f.onInit != nil {
		f.onInit(f)
	}
	return nil
}

func (f *fakeClient) Events() <-chan backend.Event { return f.events }

func (f *fakeClient) Destroy(context.Context) error {
	f.closeOnce.Do(func() {
		f.mu.Lock()
		f.destroyed = true
		f.mu.Unlock()
		close(f.events)
	})
	return nil
}

func (f *fakeClient) Logout(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loggedOut = true
	return nil
}

func (f *fakeClient) Contacts(context.Context) ([]backend.RawContact, error) {
	return f.contacts, f.contactsErr
}

func (f *fakeClient) Chats(context.Context) ([]backend.RawChat, error) { return f.chats, nil }

func (f *fakeClient) ContactByID(_ context.Context, id string) (backend.RawContact, error) {
	c, ok := f.byID[id]
	if !ok {
		return backend.RawContact{}, backend.ErrNotFound
	}
	return c, nil
}

func (f *fakeClient) FormattedNumber(_ context.Context, id string) (string, error) {
	return "+" + id, nil
}

func (f *fakeClient) FetchMessages(_ context.Context, chatID string, limit int) ([]backend.RawMessage, error) {
	msgs := f.messages[chatID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func (f *fakeClient) MessageByID(_ context.Context, id backend.MessageID) (backend.RawMessage, error) {
	for _, m := range f.messages[id.Chat] {
		if m.ID == id {
			return m, nil
		}
	}
	return backend.RawMessage{}, backend.ErrNotFound
}

func (f *fakeClient) QuotedMessage(context.Context, backend.RawMessage) (backend.RawMessage, error) {
	return backend.RawMessage{}, backend.ErrNotFound
}

func (f *fakeClient) Send(_ context.Context, chatID string, out backend.Outgoing) (backend.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, out)
	if len(f.outcomes) > 0 {
		o := f.outcomes[0]
		f.outcomes = f.outcomes[1:]
		return o.res, o.err
	}
	return backend.SendResult{
		ID:       backend.MessageID{FromMe: true, Chat: chatID, ID: "SENT"},
		HasMedia: out.Media != nil,
	}, nil
}

func (f *fakeClient) Edit(_ context.Context, id backend.MessageID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, id.ID+"="+content)
	return nil
}

func (f *fakeClient) Revoke(_ context.Context, _ backend.MessageID, forEveryone bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revokes = append(f.revokes, forEveryone)
	return f.revokeErr[forEveryone]
}

type fakeModule struct {
	mu      sync.Mutex
	clients []*fakeClient
	next    func() *fakeClient
	opts    []backend.Options
}

func (m *fakeModule) NewClient(opts backend.Options) (backend.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.next()
	m.clients = append(m.clients, c)
	m.opts = append(m.opts, opts)
	return c, nil
}

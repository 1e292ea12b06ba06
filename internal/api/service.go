package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/matheus3301/omnichat/internal/app"
	"github.com/matheus3301/omnichat/internal/bus"
	"github.com/matheus3301/omnichat/internal/client"
	"github.com/matheus3301/omnichat/internal/provider"
)

const watchBuffer = 256

// Service implements ControlServer over a hub. Commands naming a client make
// it the active one first.
type Service struct {
	hub    *app.Hub
	logger *zap.Logger
}

var _ ControlServer = (*Service)(nil)

// NewService creates the control service.
func NewService(hub *app.Hub, logger *zap.Logger) *Service {
	return &Service{hub: hub, logger: logger}
}

// activate makes id the active client and returns it. An empty id selects
// the current active client.
func (s *Service) activate(id string) (*client.Client, error) {
	reg := s.hub.Registry()
	if id == "" {
		c, ok := reg.Active()
		if !ok {
			return nil, toStatus(app.ErrNoActiveClient)
		}
		return c, nil
	}
	if !reg.SetActive(id) {
		return nil, toStatus(fmt.Errorf("%w: %s", app.ErrUnknownClient, id))
	}
	c, _ := reg.Get(id)
	return c, nil
}

func (s *Service) state(id string) (ClientState, error) {
	v, ok := s.hub.Client(id)
	if !ok {
		return ClientState{}, toStatus(fmt.Errorf("%w: %s", app.ErrUnknownClient, id))
	}
	active, _ := s.hub.Active()
	st, err := clientState(v, active.ID == id)
	if err != nil {
		return ClientState{}, toStatus(err)
	}
	return st, nil
}

func (s *Service) ListClients(context.Context, *ListClientsRequest) (*ListClientsResponse, error) {
	active, _ := s.hub.Active()
	resp := &ListClientsResponse{Clients: []ClientState{}}
	for _, v := range s.hub.Clients() {
		st, err := clientState(v, v.ID == active.ID)
		if err != nil {
			return nil, toStatus(err)
		}
		resp.Clients = append(resp.Clients, st)
	}
	return resp, nil
}

func (s *Service) Open(ctx context.Context, req *OpenRequest) (*OpenResponse, error) {
	screen, err := s.hub.Open(ctx, req.ClientID)
	if err != nil {
		return nil, toStatus(err)
	}
	st, err := s.state(req.ClientID)
	if err != nil {
		return nil, err
	}
	return &OpenResponse{Screen: screen, Client: st}, nil
}

func (s *Service) StartAuth(ctx context.Context, req *StartAuthRequest) (*ClientResponse, error) {
	c, err := s.activate(req.ClientID)
	if err != nil {
		return nil, err
	}
	if err := s.hub.StartAuth(ctx, req.Method); err != nil {
		return nil, toStatus(err)
	}
	return s.clientResponse(c.ID())
}

func (s *Service) SubmitAuth(ctx context.Context, req *SubmitAuthRequest) (*ClientResponse, error) {
	c, err := s.activate(req.ClientID)
	if err != nil {
		return nil, err
	}
	if err := s.hub.SubmitAuth(ctx, req.Submission); err != nil {
		return nil, toStatus(err)
	}
	return s.clientResponse(c.ID())
}

func (s *Service) Logout(ctx context.Context, req *LogoutRequest) (*ClientResponse, error) {
	c, err := s.activate(req.ClientID)
	if err != nil {
		return nil, err
	}
	if err := s.hub.Logout(ctx); err != nil {
		return nil, toStatus(err)
	}
	return s.clientResponse(c.ID())
}

func (s *Service) clientResponse(id string) (*ClientResponse, error) {
	st, err := s.state(id)
	if err != nil {
		return nil, err
	}
	return &ClientResponse{Client: st}, nil
}

// Contacts fetches the client's contacts from its provider. The hub's copy
// is updated by the resulting event.
func (s *Service) Contacts(ctx context.Context, req *ContactsRequest) (*ContactsResponse, error) {
	c, err := s.activate(req.ClientID)
	if err != nil {
		return nil, err
	}
	return &ContactsResponse{Contacts: c.ListContacts(ctx)}, nil
}

func (s *Service) Chats(ctx context.Context, req *ChatsRequest) (*ChatsResponse, error) {
	c, err := s.activate(req.ClientID)
	if err != nil {
		return nil, err
	}
	return &ChatsResponse{Chats: c.ListChats(ctx)}, nil
}

// History loads a conversation and returns the merged timeline.
func (s *Service) History(ctx context.Context, req *HistoryRequest) (*HistoryResponse, error) {
	if _, err := s.activate(req.ClientID); err != nil {
		return nil, err
	}
	if err := s.hub.OpenConversation(ctx, req.ContactID); err != nil {
		return nil, toStatus(err)
	}
	return &HistoryResponse{
		Messages: s.hub.Messages(req.ContactID),
		Typing:   s.hub.TypingNames(req.ContactID),
	}, nil
}

func (s *Service) Send(ctx context.Context, req *SendRequest) (*SendResponse, error) {
	if _, err := s.activate(req.ClientID); err != nil {
		return nil, err
	}
	msg, err := s.hub.Send(ctx, req.ContactID, req.Payload)
	if errors.Is(err, app.ErrNoActiveClient) {
		return nil, toStatus(err)
	}
	resp := &SendResponse{Message: msg}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp, nil
}

func (s *Service) Edit(ctx context.Context, req *EditRequest) (*ChangeResponse, error) {
	if _, err := s.activate(req.ClientID); err != nil {
		return nil, err
	}
	ok, err := s.hub.Edit(ctx, req.ContactID, req.MessageID, req.Content)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ChangeResponse{OK: ok}, nil
}

func (s *Service) Delete(ctx context.Context, req *DeleteRequest) (*ChangeResponse, error) {
	if _, err := s.activate(req.ClientID); err != nil {
		return nil, err
	}
	ok, err := s.hub.Delete(ctx, req.ContactID, req.MessageID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ChangeResponse{OK: ok}, nil
}

// Watch streams every event of the hub and of the selected clients until the
// caller goes away. Clients registered after the call starts are not
// included. Slow watchers lose events rather than stall publishers.
func (s *Service) Watch(req *WatchRequest, stream grpc.ServerStream) error {
	type source struct {
		clientID string
		ch       <-chan bus.Event
	}
	var sources []source

	hubCh, unsub := s.hub.Bus().Subscribe("", watchBuffer)
	defer unsub()
	sources = append(sources, source{ch: hubCh})

	for _, c := range s.hub.Registry().List() {
		if req.ClientID != "" && c.ID() != req.ClientID {
			continue
		}
		ch, unsub := c.Bus().Subscribe("", watchBuffer)
		defer unsub()
		sources = append(sources, source{clientID: c.ID(), ch: ch})
	}
	if req.ClientID != "" && len(sources) == 1 {
		return toStatus(fmt.Errorf("%w: %s", app.ErrUnknownClient, req.ClientID))
	}

	ctx := stream.Context()
	out := make(chan *Event)
	for _, src := range sources {
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case evt := <-src.ch:
					e, err := wireEvent(src.clientID, evt)
					if err != nil {
						s.logger.Warn("encode watch event", zap.String("kind", evt.Kind), zap.Error(err))
						continue
					}
					if req.ClientID != "" && e.ClientID != "" && e.ClientID != req.ClientID {
						continue
					}
					select {
					case out <- e:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-out:
			if err := stream.SendMsg(e); err != nil {
				return err
			}
		}
	}
}

func wireEvent(clientID string, evt bus.Event) (*Event, error) {
	e := &Event{ClientID: clientID, Kind: evt.Kind, Timestamp: evt.Timestamp.UnixMilli()}
	if evt.Payload != nil {
		data, err := json.Marshal(evt.Payload)
		if err != nil {
			return nil, err
		}
		e.Payload = data
	}
	if n, ok := evt.Payload.(app.Notification); ok {
		e.ClientID = n.ClientID
	}
	return e, nil
}

// toStatus maps hub and provider errors onto gRPC status codes.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := grpcstatus.FromError(err); ok {
		return err
	}
	code := codes.Internal
	switch {
	case errors.Is(err, app.ErrUnknownClient), errors.Is(err, provider.ErrReplyTargetNotFound):
		code = codes.NotFound
	case errors.Is(err, app.ErrNoActiveClient):
		code = codes.FailedPrecondition
	case errors.Is(err, app.ErrNotOwnMessage):
		code = codes.PermissionDenied
	case errors.Is(err, provider.ErrNotReady):
		code = codes.Unavailable
	case errors.Is(err, provider.ErrUnsupported):
		code = codes.Unimplemented
	case errors.Is(err, provider.ErrInvalidPhoneNumber):
		code = codes.InvalidArgument
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	}
	return grpcstatus.Error(code, err.Error())
}

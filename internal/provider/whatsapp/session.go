package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/omnichat/internal/backend"
	"github.com/matheus3301/omnichat/internal/domain"
	"github.com/matheus3301/omnichat/internal/normalize"
	"github.com/matheus3301/omnichat/internal/provider"
	"github.com/matheus3301/omnichat/internal/status"
)

// session is the per-client connection and auth state.
type session struct {
	// initMu serializes client construction. mu guards the fields below and
	// is never held across backend calls.
	initMu sync.Mutex
	mu     sync.Mutex

	client      backend.Client
	cancel      context.CancelFunc
	scope       provider.Scope
	phoneNumber string
	pairingCode string
	method      domain.AuthMethod
	initialized bool
	ready       bool
	waiters     []chan struct{}

	machine *status.Machine
}

func (s *session) snapshot() (backend.Client, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client, s.phoneNumber
}

// pairingByQR reports whether the user chose to pair by scanning a QR code.
func (s *session) pairingByQR() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.method == domain.MethodQR
}

// current reports whether c is still the session's live client.
func (s *session) current(c backend.Client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client == c
}

// session returns the state for a client, creating it on first use.
func (p *Provider) session(sc provider.Scope) *session {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[sc.ClientID]
	if !ok {
		s = &session{machine: status.NewMachine(sc.Bus)}
		p.sessions[sc.ClientID] = s
	}
	return s
}

func (p *Provider) transition(sc provider.Scope, s *session, to status.State) {
	from := s.machine.Current()
	if err := s.machine.Transition(to); err != nil {
		p.logger.Debug("session transition rejected", zap.String("client", sc.ClientID), zap.Error(err))
		return
	}
	if from != to {
		p.logger.Info("session state changed",
			zap.String("client", sc.ClientID),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
		)
	}
}

// reset tears down the live client. Pending waiters are dropped and will time
// out.
func (p *Provider) reset(ctx context.Context, sc provider.Scope, s *session, forget bool) {
	s.mu.Lock()
	client, cancel := s.client, s.cancel
	s.client = nil
	s.cancel = nil
	s.initialized = false
	s.ready = false
	s.waiters = nil
	if forget {
		s.phoneNumber = ""
		s.pairingCode = ""
		s.method = ""
	}
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if client != nil {
		if err := client.Destroy(ctx); err != nil {
			p.logger.Warn("destroy backend client", zap.String("client", sc.ClientID), zap.Error(err))
		}
	}
}

// ensureClient returns the live backend client, constructing and
// initializing one on first use.
func (p *Provider) ensureClient(ctx context.Context, sc provider.Scope) (backend.Client, error) {
	s := p.session(sc)
	s.initMu.Lock()
	defer s.initMu.Unlock()

	s.mu.Lock()
	if s.client != nil && s.initialized {
		c := s.client
		s.mu.Unlock()
		return c, nil
	}
	phone := s.phoneNumber
	s.mu.Unlock()

	mod, err := p.loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load backend: %w", err)
	}
	client, err := mod.NewClient(backend.Options{
		ClientID:    sc.ClientID,
		AuthDir:     p.cfg.SessionDir(sc.ClientID),
		DeviceName:  p.cfg.DeviceName,
		PhoneNumber: phone,
	})
	if err != nil {
		return nil, fmt.Errorf("create backend client: %w", err)
	}

	pumpCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.client = client
	s.cancel = cancel
	s.scope = sc
	s.ready = false
	s.waiters = nil
	s.mu.Unlock()

	p.transition(sc, s, status.Connecting)
	go p.pump(pumpCtx, s, client)

	if err := client.Initialize(ctx); err != nil {
		p.reset(ctx, sc, s, false)
		return nil, fmt.Errorf("initialize backend client: %w", err)
	}

	s.mu.Lock()
	s.initialized = true
	s.mu.Unlock()
	p.logger.Info("backend client initialized", zap.String("client", sc.ClientID), zap.Bool("phone_pairing", phone != ""))
	return client, nil
}

// reportedError marks an error already published as a client error.
type reportedError struct{ err error }

func (e reportedError) Error() string { return e.err.Error() }
func (e reportedError) Unwrap() error { return e.err }

func reported(err error) bool {
	var r reportedError
	return errors.As(err, &r)
}

// waitForReady blocks until the session is ready, the ready timeout elapses
// or ctx is done. Failures publish exactly one client error.
func (p *Provider) waitForReady(ctx context.Context, sc provider.Scope, s *session) error {
	s.mu.Lock()
	if s.ready {
		s.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	s.waiters = append(s.waiters, ch)
	s.mu.Unlock()

	timer := time.NewTimer(p.cfg.ReadyTimeout)
	defer timer.Stop()

	var err error
	select {
	case <-ch:
		return nil
	case <-timer.C:
		err = provider.ErrNotReady
	case <-ctx.Done():
		err = ctx.Err()
	}

	s.mu.Lock()
	for i, w := range s.waiters {
		if w == ch {
			s.waiters = append(s.waiters[:i:i], s.waiters[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	// Readiness may have won the race with the timer.
	select {
	case <-ch:
		return nil
	default:
	}

	msg := "WhatsApp client is not ready yet"
	if !errors.Is(err, provider.ErrNotReady) {
		msg = err.Error()
	}
	sc.Error(msg)
	return reportedError{fmt.Errorf("wait for ready: %w", err)}
}

// markReady flips the session ready and releases waiters in arrival order.
func (s *session) markReady() {
	s.mu.Lock()
	s.ready = true
	waiters := s.waiters
	s.waiters = nil
	s.mu.Unlock()
	for _, w := range waiters {
		close(w)
	}
}

func (s *session) markNotReady() {
	s.mu.Lock()
	s.ready = false
	s.mu.Unlock()
}

// readyClient ensures a client exists and waits for it to become ready.
func (p *Provider) readyClient(ctx context.Context, sc provider.Scope) (backend.Client, error) {
	client, err := p.ensureClient(ctx, sc)
	if err != nil {
		return nil, err
	}
	if err := p.waitForReady(ctx, sc, p.session(sc)); err != nil {
		return nil, err
	}
	return client, nil
}

// pump consumes the backend lifecycle channel until it closes.
func (p *Provider) pump(ctx context.Context, s *session, client backend.Client) {
	for ev := range client.Events() {
		if ctx.Err() != nil || !s.current(client) {
			continue
		}
		s.mu.Lock()
		sc := s.scope
		s.mu.Unlock()
		p.handle(ctx, sc, s, client, ev)
	}
}

var phonePrompt = domain.PhoneNumberPrompt{Label: "WhatsApp phone", Placeholder: "5511999999999"}

// handle applies one backend lifecycle event to the session.
func (p *Provider) handle(ctx context.Context, sc provider.Scope, s *session, client backend.Client, ev backend.Event) {
	switch e := ev.(type) {
	case backend.Ready:
		s.markReady()
		p.transition(sc, s, status.Ready)
		sc.AuthWaiting("")
		sc.AuthStatus(domain.AuthAuthenticated)
		sc.AuthCompleted()

	case backend.Authenticated:
		sc.AuthWaiting("Authenticated. Preparing WhatsApp data")

	case backend.AuthFailure:
		msg := e.Message
		if msg == "" {
			msg = "Authentication failed"
		}
		p.fail(sc, s, msg)

	case backend.Disconnected:
		reason := e.Reason
		if reason == "" {
			reason = "unknown reason"
		}
		p.fail(sc, s, "WhatsApp disconnected: "+reason)

	case backend.Failure:
		msg := "unknown error"
		if e.Err != nil {
			msg = e.Err.Error()
		}
		p.fail(sc, s, msg)

	case backend.StateChange:
		if e.State != backend.StateUnpaired && e.State != backend.StateUnpairedIdle {
			return
		}
		s.markNotReady()
		sc.AuthStatus(domain.AuthPending)
		// QR pairing waits for the code; a phone number is never asked for.
		if s.pairingByQR() {
			return
		}
		if _, phone := s.snapshot(); phone == "" {
			p.transition(sc, s, status.AwaitingPhoneNumber)
			sc.AuthWaiting("")
			sc.AuthPrompt(phonePrompt)
		}

	case backend.PairingCode:
		s.mu.Lock()
		s.ready = false
		s.pairingCode = e.Code
		s.mu.Unlock()
		p.transition(sc, s, status.AwaitingPairingConfirmation)
		sc.AuthWaiting("Pairing code received. Enter it on WhatsApp mobile")
		sc.AuthStatus(domain.AuthPending)
		sc.AuthPrompt(domain.OTPPrompt{Code: e.Code, Label: "WhatsApp pairing code", InputRequired: false})

	case backend.QRCode:
		s.markNotReady()
		ascii, err := renderQR(e.Code)
		if err != nil {
			p.fail(sc, s, "render QR code: "+err.Error())
			return
		}
		p.transition(sc, s, status.AwaitingPairingConfirmation)
		sc.AuthStatus(domain.AuthPending)
		prompt := domain.QRPrompt{Value: ascii, Format: "ascii"}
		if e.Timeout > 0 {
			prompt.ExpiresAt = time.Now().Add(e.Timeout).UnixMilli()
		}
		sc.AuthPrompt(prompt)

	case backend.Loading:
		sc.AuthWaiting(fmt.Sprintf("Syncing WhatsApp session %d%%", e.Percent))

	case backend.MessageReceived:
		if e.Message.FromMe {
			return
		}
		if err := e.Message.Validate(); err != nil {
			p.logger.Warn("dropping undecodable message", zap.String("client", sc.ClientID), zap.Error(err))
			sc.Error(err.Error())
			return
		}
		msg := p.pipeline.Message(ctx, client, sc.ClientID, e.Message.Chat, e.Message)
		sc.Received(e.Message.Chat, msg)

	case backend.MessageRevoked:
		if err := e.Message.Validate(); err != nil {
			p.logger.Warn("dropping undecodable revocation", zap.String("client", sc.ClientID), zap.Error(err))
			sc.Error(err.Error())
			return
		}
		sc.Received(e.Message.Chat, p.pipeline.Revoked(sc.ClientID, e.Message.Chat, e.Message))

	case backend.ChatPresence:
		typing := domain.TypingEvent{ContactID: e.ChatID, ParticipantID: e.ParticipantID, IsTyping: e.Composing}
		if e.ParticipantID != "" {
			fallback := normalize.SenderFallback(e.ParticipantID)
			typing.ParticipantName = p.pipeline.DisplayName(ctx, client, e.ParticipantID, fallback, true)
		}
		sc.Typing(typing)

	case backend.Presence:
		state := "unavailable"
		if e.Available {
			state = "available"
		}
		sc.Presence(e.ContactID, state)

	default:
		p.logger.Debug("unhandled backend event", zap.String("type", fmt.Sprintf("%T", ev)))
	}
}

// fail marks the session failed and reports msg on every error channel.
func (p *Provider) fail(sc provider.Scope, s *session, msg string) {
	s.markNotReady()
	p.transition(sc, s, status.Failed)
	p.logger.Warn("whatsapp session failed", zap.String("client", sc.ClientID), zap.String("reason", msg))
	sc.AuthWaiting("")
	sc.AuthStatus(domain.AuthFailed)
	sc.AuthError(msg)
	sc.Error(msg)
}

// Package whatsapp implements the provider adapter for an automated WhatsApp
// backend. It owns the per-client session state machine, pairing flow and the
// message normalization and send pipelines.
package whatsapp

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/omnichat/internal/backend"
	"github.com/matheus3301/omnichat/internal/domain"
	"github.com/matheus3301/omnichat/internal/normalize"
	"github.com/matheus3301/omnichat/internal/provider"
	"github.com/matheus3301/omnichat/internal/status"
)

// ID is the provider id of the WhatsApp adapter.
const ID = "whatsapp"

// DefaultReadyTimeout bounds how long operations wait for a usable session.
const DefaultReadyTimeout = 20 * time.Second

const (
	contactLimit   = 300
	chatLimit      = 200
	historyLimit   = 60
	lookupLimit    = 200
	minPhoneDigits = 10
)

// Config configures the adapter.
type Config struct {
	// SessionDir returns the persisted auth directory for a client id.
	SessionDir   func(clientID string) string
	DeviceName   string
	ReadyTimeout time.Duration
	CacheSize    int
}

// Provider is the WhatsApp adapter. One Provider serves any number of
// clients, each with its own session.
type Provider struct {
	cfg      Config
	loader   backend.Loader
	pipeline *normalize.Pipeline
	logger   *zap.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

var (
	_ provider.Adapter       = (*Provider)(nil)
	_ provider.Editor        = (*Provider)(nil)
	_ provider.Deleter       = (*Provider)(nil)
	_ provider.LogoutHandler = (*Provider)(nil)
)

// New creates the adapter. The backend module is loaded through loader on
// first use and reused afterwards.
func New(cfg Config, loader backend.Loader, logger *zap.Logger) (*Provider, error) {
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = DefaultReadyTimeout
	}
	if cfg.SessionDir == nil {
		return nil, fmt.Errorf("whatsapp: session dir resolver is required")
	}
	pipeline, err := normalize.NewPipeline(cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("whatsapp: create pipeline: %w", err)
	}
	return &Provider{
		cfg:      cfg,
		loader:   backend.Cached(loader),
		pipeline: pipeline,
		logger:   logger,
		sessions: make(map[string]*session),
	}, nil
}

func (p *Provider) ID() string { return ID }

func (p *Provider) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		AuthMethods: []domain.AuthMethod{
			domain.MethodPhoneNumber,
			domain.MethodOTP,
			domain.MethodPairingCode,
			domain.MethodQR,
		},
		SupportsPresence: true,
		SupportsHistory:  true,
	}
}

// State returns the session state of a client.
func (p *Provider) State(sc provider.Scope) status.State {
	return p.session(sc).machine.Current()
}

// Connect discards any existing session, including persisted credentials,
// and restarts pairing from the phone number prompt.
func (p *Provider) Connect(ctx context.Context, sc provider.Scope) error {
	s := p.session(sc)
	s.initMu.Lock()
	p.reset(ctx, sc, s, true)
	s.initMu.Unlock()

	dir := p.cfg.SessionDir(sc.ClientID)
	if err := os.RemoveAll(dir); err != nil {
		p.logger.Warn("remove session dir", zap.String("client", sc.ClientID), zap.String("dir", dir), zap.Error(err))
	}

	p.transition(sc, s, status.Disconnected)
	p.transition(sc, s, status.AwaitingPhoneNumber)
	sc.AuthStatus(domain.AuthPending)
	sc.AuthWaiting("")
	sc.AuthPrompt(phonePrompt)
	return nil
}

// Disconnect releases the backend client but keeps the phone number.
func (p *Provider) Disconnect(ctx context.Context, sc provider.Scope) error {
	s := p.session(sc)
	s.initMu.Lock()
	p.reset(ctx, sc, s, false)
	s.initMu.Unlock()
	p.transition(sc, s, status.Disconnected)
	return nil
}

// StartAuth begins the given auth method. Pairing by code needs a phone
// number submitted first.
func (p *Provider) StartAuth(ctx context.Context, sc provider.Scope, method domain.AuthMethod) error {
	s := p.session(sc)

	switch method {
	case "", domain.MethodPhoneNumber:
		p.transition(sc, s, status.AwaitingPhoneNumber)
		sc.AuthPrompt(phonePrompt)
		return nil

	case domain.MethodQR:
		s.mu.Lock()
		s.phoneNumber = ""
		s.pairingCode = ""
		s.method = domain.MethodQR
		s.mu.Unlock()
		return p.initialize(ctx, sc)

	case domain.MethodOTP, domain.MethodPairingCode:
		if _, phone := s.snapshot(); phone == "" {
			sc.AuthError("Phone number required first")
			return nil
		}
		s.mu.Lock()
		s.method = domain.MethodPairingCode
		s.mu.Unlock()
		return p.initialize(ctx, sc)
	}
	return nil
}

func (p *Provider) initialize(ctx context.Context, sc provider.Scope) error {
	sc.AuthStatus(domain.AuthPending)
	if _, err := p.ensureClient(ctx, sc); err != nil {
		msg := err.Error()
		p.logger.Error("initialize whatsapp client", zap.String("client", sc.ClientID), zap.Error(err))
		p.transition(sc, p.session(sc), status.Failed)
		sc.AuthStatus(domain.AuthFailed)
		sc.AuthError(msg)
		sc.Error(msg)
		return err
	}
	return nil
}

// SubmitAuth accepts a phone number and starts pairing by code. Pairing codes
// are shown to the user, never entered, so code submissions are rejected.
func (p *Provider) SubmitAuth(ctx context.Context, sc provider.Scope, sub domain.AuthSubmission) error {
	switch sub.Type {
	case domain.MethodPhoneNumber:
		digits := normalize.Digits(sub.Value)
		if len(digits) < minPhoneDigits {
			sc.AuthStatus(domain.AuthFailed)
			sc.AuthError("Invalid phone number")
			return fmt.Errorf("%w: %d digits", provider.ErrInvalidPhoneNumber, len(digits))
		}
		s := p.session(sc)
		s.mu.Lock()
		s.phoneNumber = digits
		s.pairingCode = ""
		s.mu.Unlock()
		sc.AuthStatus(domain.AuthPending)
		sc.AuthWaiting("Initializing WhatsApp pairing")
		return p.StartAuth(ctx, sc, domain.MethodPairingCode)

	case domain.MethodOTP, domain.MethodPairingCode:
		sc.AuthError("Pairing code is display-only. Enter it on WhatsApp mobile.")
		return nil
	}
	sc.AuthError("Unsupported auth payload for WhatsApp")
	return fmt.Errorf("%w: %s auth payload", provider.ErrUnsupported, sub.Type)
}

// Logout unlinks the device, tears down the live client and deletes the
// persisted session, forgetting the phone number.
func (p *Provider) Logout(ctx context.Context, sc provider.Scope) error {
	s := p.session(sc)
	if client, _ := s.snapshot(); client != nil {
		if err := client.Logout(ctx); err != nil {
			return fmt.Errorf("logout: %w", err)
		}
	}

	s.initMu.Lock()
	p.reset(ctx, sc, s, true)
	s.initMu.Unlock()

	dir := p.cfg.SessionDir(sc.ClientID)
	if err := os.RemoveAll(dir); err != nil {
		p.logger.Warn("remove session dir", zap.String("client", sc.ClientID), zap.String("dir", dir), zap.Error(err))
	}

	p.transition(sc, s, status.Disconnected)
	sc.AuthLogout()
	return nil
}

// ChatID turns a contact id into a backend chat id. Bare phone numbers are
// addressed as users.
func ChatID(contactID string) string {
	if strings.Contains(contactID, "@") {
		return contactID
	}
	return normalize.Digits(contactID) + "@s.whatsapp.net"
}

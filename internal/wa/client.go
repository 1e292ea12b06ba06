package wa

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.uber.org/zap"

	"github.com/matheus3301/omnichat/internal/backend"
	"github.com/matheus3301/omnichat/internal/lock"
	"github.com/matheus3301/omnichat/internal/session"
	"github.com/matheus3301/omnichat/internal/store"

	_ "github.com/mattn/go-sqlite3"
)

const eventBuffer = 64

// Client is one whatsmeow connection plus its message cache.
type Client struct {
	opts   backend.Options
	logger *zap.Logger

	lock      *lock.Lock
	container *sqlstore.Container
	wa        *whatsmeow.Client
	lids      lidStore
	cache     *store.DB

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// mu guards closed. Emitters hold it shared so Destroy can close events
	// only once no send is in flight.
	mu        sync.RWMutex
	closed    bool
	events    chan backend.Event
	done      chan struct{}
	closeOnce sync.Once
}

var _ backend.Client = (*Client)(nil)

func newClient(opts backend.Options, logger *zap.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		opts:   opts,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		events: make(chan backend.Event, eventBuffer),
		done:   make(chan struct{}),
	}
}

func (c *Client) Events() <-chan backend.Event { return c.events }

// emit delivers ev unless the client is being destroyed.
func (c *Client) emit(ev backend.Event) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// Initialize locks the session directory, opens the device store and the
// message cache, and connects. Unpaired devices pair by code when a phone
// number was given and by QR otherwise.
func (c *Client) Initialize(ctx context.Context) error {
	l, err := lock.Acquire(c.opts.AuthDir, LockOwner)
	if err != nil {
		return fmt.Errorf("lock session: %w", err)
	}
	c.lock = l

	if err := c.open(ctx); err != nil {
		_ = c.release()
		return err
	}
	c.wa.AddEventHandler(c.handle)

	if c.wa.Store.ID != nil {
		c.logger.Info("connecting with stored credentials", zap.String("jid", c.wa.Store.ID.String()))
		if err := c.wa.Connect(); err != nil {
			_ = c.release()
			return fmt.Errorf("connect: %w", err)
		}
		return nil
	}

	qr, err := c.wa.GetQRChannel(c.ctx)
	if err != nil {
		_ = c.release()
		return fmt.Errorf("get QR channel: %w", err)
	}
	c.wg.Add(1)
	go c.watchQR(qr, c.pairPhone)

	c.emit(backend.StateChange{State: backend.StateUnpaired})
	if err := c.wa.Connect(); err != nil {
		_ = c.release()
		return fmt.Errorf("connect: %w", err)
	}
	return nil
}

func (c *Client) pairPhone(ctx context.Context) (string, error) {
	return c.wa.PairPhone(ctx, c.opts.PhoneNumber, true, whatsmeow.PairClientChrome, "Chrome (Linux)")
}

func (c *Client) open(ctx context.Context) error {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on", filepath.Join(c.opts.AuthDir, session.SessionFileName))
	container, err := sqlstore.New(ctx, "sqlite3", dsn, newLogger(c.logger, "Database"))
	if err != nil {
		return fmt.Errorf("create session store: %w", err)
	}
	c.container = container

	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return fmt.Errorf("get device store: %w", err)
	}
	c.wa = whatsmeow.NewClient(device, newLogger(c.logger, "Client"))
	if device.LIDs != nil {
		c.lids = device.LIDs
	}

	cache, err := store.OpenMigrated(filepath.Join(c.opts.AuthDir, session.CacheFileName))
	if err != nil {
		return fmt.Errorf("open message cache: %w", err)
	}
	c.cache = cache
	return nil
}

// watchQR forwards pairing progress from the QR channel. When pairing by
// phone the codes are never shown; the first one signals the connection is
// ready for pair to request a pairing code, once.
func (c *Client) watchQR(ch <-chan whatsmeow.QRChannelItem, pair func(context.Context) (string, error)) {
	defer c.wg.Done()
	requested := false
	for item := range ch {
		switch item.Event {
		case whatsmeow.QRChannelEventCode:
			if c.opts.PhoneNumber == "" {
				c.emit(backend.QRCode{Code: item.Code, Timeout: item.Timeout})
				continue
			}
			if requested {
				continue
			}
			requested = true
			code, err := pair(c.ctx)
			if err != nil {
				c.emit(backend.AuthFailure{Message: "request pairing code: " + err.Error()})
				continue
			}
			c.emit(backend.PairingCode{Code: code})
		case whatsmeow.QRChannelSuccess.Event:
			return
		case whatsmeow.QRChannelTimeout.Event:
			c.emit(backend.AuthFailure{Message: "pairing timed out"})
			return
		default:
			if item.Error != nil {
				c.emit(backend.AuthFailure{Message: item.Error.Error()})
				return
			}
		}
	}
}

// Destroy disconnects and closes everything Initialize opened, then closes
// the events channel. Safe to call more than once.
func (c *Client) Destroy(context.Context) error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.done)
		err = c.release()
		c.wg.Wait()

		c.mu.Lock()
		c.closed = true
		close(c.events)
		c.mu.Unlock()
	})
	return err
}

// release closes whatever Initialize managed to open. Closing twice is
// harmless.
func (c *Client) release() error {
	var errs []error
	if c.wa != nil {
		c.wa.Disconnect()
		c.wa.RemoveEventHandlers()
	}
	if c.container != nil {
		errs = append(errs, c.container.Close())
	}
	if c.cache != nil {
		errs = append(errs, c.cache.Close())
	}
	errs = append(errs, c.lock.Release())
	return errors.Join(errs...)
}

// Logout unlinks the device from the phone.
func (c *Client) Logout(ctx context.Context) error {
	if c.wa == nil {
		return nil
	}
	return c.wa.Logout(ctx)
}

func (c *Client) ownJID() types.JID {
	if c.wa == nil || c.wa.Store.ID == nil {
		return types.EmptyJID
	}
	return c.wa.Store.ID.ToNonAD()
}

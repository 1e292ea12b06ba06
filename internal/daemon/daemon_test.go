package daemon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/matheus3301/omnichat/internal/api"
	"github.com/matheus3301/omnichat/internal/app"
	"github.com/matheus3301/omnichat/internal/client"
	"github.com/matheus3301/omnichat/internal/config"
	"github.com/matheus3301/omnichat/internal/domain"
	"github.com/matheus3301/omnichat/internal/lock"
	"github.com/matheus3301/omnichat/internal/provider/mock"
	"github.com/matheus3301/omnichat/internal/session"
)

// shortTempDir keeps socket paths under the 104-char macOS limit.
func shortTempDir(t *testing.T, pattern string) string {
	t.Helper()
	dir, err := os.MkdirTemp("/tmp", pattern)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return dir
}

func TestDaemonLifecycle(t *testing.T) {
	tmpDir := shortTempDir(t, "omni-test-*")
	socketPath := filepath.Join(tmpDir, "d.sock")

	lk, err := lock.Acquire(tmpDir, LockOwner)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = lk.Release() }()

	logger := zap.NewNop()
	hub := app.New(client.NewRegistry(), logger)
	hub.Add(client.New("mock-client-1", "Mock Provider", mock.New(logger), logger))
	defer func() { _ = hub.Shutdown(context.Background()) }()

	srv, err := Listen(socketPath, api.NewService(hub, logger), logger)
	if err != nil {
		t.Fatal(err)
	}
	go func() { _ = srv.Start() }()
	defer srv.Stop(context.Background())

	info, err := os.Stat(socketPath)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("socket mode = %o, want 600", perm)
	}

	c, err := api.Dial(socketPath)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	list, err := c.ListClients(ctx)
	if err != nil {
		t.Fatalf("ListClients error = %v", err)
	}
	if len(list.Clients) != 1 || list.Clients[0].Active {
		t.Fatalf("clients = %+v, want one inactive client", list.Clients)
	}

	open, err := c.Open(ctx, &api.OpenRequest{ClientID: "mock-client-1"})
	if err != nil {
		t.Fatalf("Open error = %v", err)
	}
	if open.Screen != app.ScreenContacts || open.Client.AuthStatus != domain.AuthAuthenticated {
		t.Errorf("open = %+v, want contacts screen and authenticated", open)
	}

	sent, err := c.Send(ctx, &api.SendRequest{ContactID: "+55 11 98765-4321", Payload: domain.OutboundPayload{Text: "ping"}})
	if err != nil {
		t.Fatalf("Send error = %v", err)
	}
	if sent.Error != "" || sent.Message.Status != domain.StatusSent {
		t.Errorf("send = %+v, want sent", sent)
	}
}

func TestStaleSocketReplaced(t *testing.T) {
	tmpDir := shortTempDir(t, "omni-stale-*")
	socketPath := filepath.Join(tmpDir, "d.sock")
	if err := os.WriteFile(socketPath, []byte("stale"), 0600); err != nil {
		t.Fatal(err)
	}

	hub := app.New(client.NewRegistry(), zap.NewNop())
	srv, err := Listen(socketPath, api.NewService(hub, zap.NewNop()), zap.NewNop())
	if err != nil {
		t.Fatalf("Listen() over stale socket error = %v", err)
	}
	srv.Stop(context.Background())

	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Errorf("socket should be removed on stop, stat err = %v", err)
	}
}

func TestLockHeldByOtherDaemon(t *testing.T) {
	tmpDir := shortTempDir(t, "omni-lock-*")
	layout := session.NewLayout(tmpDir)

	first, err := provideLock(layout, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = first.Release() }()

	_, err = provideLock(layout, zap.NewNop())
	var held *lock.HeldError
	if !errors.As(err, &held) {
		t.Fatalf("second provideLock() error = %v, want HeldError", err)
	}
	if held.Owner != LockOwner {
		t.Errorf("owner = %q, want %q", held.Owner, LockOwner)
	}
}

func TestOpenTarget(t *testing.T) {
	cfg := &config.Config{DefaultClient: "whatsapp-client-1", Clients: config.DefaultClients()}
	tests := map[string]string{
		"":              "",
		"default":       "whatsapp-client-1",
		"mock-client-1": "mock-client-1",
	}
	for open, want := range tests {
		if got := openTarget(open, cfg); got != want {
			t.Errorf("openTarget(%q) = %q, want %q", open, got, want)
		}
	}
}

// TestFxModuleWiring verifies the fx dependency graph resolves and the
// daemon serves the configured clients.
func TestFxModuleWiring(t *testing.T) {
	tmpDir := shortTempDir(t, "omni-fx-*")
	socketPath := filepath.Join(tmpDir, "d.sock")

	cfg := &config.Config{Clients: []config.Client{
		{ID: "mock-client-1", Provider: config.ProviderMock, Name: "Mock"},
		{ID: "whatsapp-client-1", Provider: config.ProviderWhatsApp, Name: "WhatsApp"},
	}}
	if err := config.Save(session.NewLayout(tmpDir).ConfigPath(), cfg); err != nil {
		t.Fatal(err)
	}

	fxApp := fx.New(
		Module(Params{DataDir: tmpDir, LogLevel: "error", Open: "mock-client-1", SocketPath: socketPath}),
		fx.NopLogger,
	)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fxApp.Start(ctx); err != nil {
		t.Fatalf("fx start: %v", err)
	}
	defer func() {
		if err := fxApp.Stop(context.Background()); err != nil {
			t.Errorf("fx stop: %v", err)
		}
	}()

	c, err := api.Dial(socketPath)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = c.Close() }()

	deadline := time.Now().Add(3 * time.Second)
	for {
		list, err := c.ListClients(ctx)
		if err != nil {
			t.Fatalf("ListClients error = %v", err)
		}
		if len(list.Clients) != 2 {
			t.Fatalf("got %d clients, want 2", len(list.Clients))
		}
		if list.Clients[0].AuthStatus == domain.AuthAuthenticated {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("mock client was not opened at start: %+v", list.Clients[0])
		}
		time.Sleep(20 * time.Millisecond)
	}

	if _, err := os.Stat(filepath.Join(tmpDir, lock.FileName)); err != nil {
		t.Errorf("data dir lock missing: %v", err)
	}
}

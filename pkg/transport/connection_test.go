package transport_test

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/TimyBen/cloud-file-management-system/pkg/transport"
)

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

func newConnection() (*transport.Connection, *sync.WaitGroup) {
	var wg sync.WaitGroup
	// The underlying websocket is nil: these tests only exercise the
	// channel and lifecycle plumbing, which never touches the socket.
	c := transport.NewConnection(context.Background(), &wg, nil, transport.ConnectionConfig{}, nil, nil, newTestLogger())
	return c, &wg
}

// Delivery goroutines can still hold a reference to a connection after it
// closed; Send must stay safe then, dropping the message instead of
// panicking.
func TestSendAfterCloseDoesNotPanic(t *testing.T) {
	c, _ := newConnection()
	c.Close(nil)

	for i := 0; i < 64; i++ {
		c.Send([]byte("late frame"))
	}
}

func TestSendAfterCloseRacesSafely(t *testing.T) {
	c, _ := newConnection()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 512; j++ {
				c.Send([]byte("frame"))
			}
		}()
	}
	c.Close(nil)
	wg.Wait()
}

func TestCloseIsIdempotentAndReleasesWaitGroup(t *testing.T) {
	c, wg := newConnection()

	closed := 0
	c.SetOnCloseHandler(func(_ uuid.UUID, _ error) { closed++ })

	c.Close(nil)
	c.Close(nil) // second close must be a no-op

	wg.Wait() // would hang (or have panicked) if the balance were off
	select {
	case <-c.Done():
	default:
		t.Fatal("Done channel not closed after Close")
	}
	if closed != 1 {
		t.Errorf("onClose ran %d times, want 1", closed)
	}
}

package testutil

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// ReplyHandler matches the handler natsclient.Client.Subscribe takes.
type ReplyHandler func(ctx context.Context, data []byte, reply string)

// MockNATSClient is an in-memory stand-in for the Subscribe and Publish
// methods of natsclient.Client, with request/reply support. Safe for
// concurrent use.
type MockNATSClient struct {
	mu            sync.RWMutex
	messages      map[string][][]byte
	subscriptions map[string][]ReplyHandler
	publishErr    error
	closed        bool
	inbox         atomic.Uint64
}

// NewMockNATSClient creates a new mock NATS client.
func NewMockNATSClient() *MockNATSClient {
	return &MockNATSClient{
		messages:      make(map[string][][]byte),
		subscriptions: make(map[string][]ReplyHandler),
	}
}

// Publish records data on subject and delivers it to subscribers with no
// reply subject.
func (c *MockNATSClient) Publish(ctx context.Context, subject string, data []byte) error {
	return c.publish(ctx, subject, data, "")
}

func (c *MockNATSClient) publish(ctx context.Context, subject string, data []byte, reply string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("client is closed")
	}
	if c.publishErr != nil {
		err := c.publishErr
		c.mu.Unlock()
		return err
	}
	c.messages[subject] = append(c.messages[subject], data)
	handlers := append([]ReplyHandler(nil), c.subscriptions[subject]...)
	c.mu.Unlock()

	// Handlers run outside the lock so they may publish replies.
	for _, h := range handlers {
		msgCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		h(msgCtx, data, reply)
		cancel()
	}
	return nil
}

// Subscribe registers handler for subject.
func (c *MockNATSClient) Subscribe(ctx context.Context, subject string, handler func(ctx context.Context, data []byte, reply string)) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("client is closed")
	}
	c.subscriptions[subject] = append(c.subscriptions[subject], handler)
	return nil
}

// Request delivers data to subject's subscribers with a fresh inbox as the
// reply subject and returns the first reply published there. Subscribers run
// synchronously, so the reply is available when Request returns.
func (c *MockNATSClient) Request(ctx context.Context, subject string, data []byte) ([]byte, error) {
	inbox := "_INBOX." + strconv.FormatUint(c.inbox.Add(1), 10)
	if err := c.publish(ctx, subject, data, inbox); err != nil {
		return nil, err
	}
	replies := c.GetMessages(inbox)
	if len(replies) == 0 {
		return nil, fmt.Errorf("no reply on %s", subject)
	}
	return replies[0], nil
}

// SetPublishError makes every later Publish fail with err. Nil clears it.
func (c *MockNATSClient) SetPublishError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.publishErr = err
}

// GetMessages returns a copy of the messages published on subject.
func (c *MockNATSClient) GetMessages(subject string) [][]byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([][]byte(nil), c.messages[subject]...)
}

// GetMessageCount returns the number of messages published on subject.
func (c *MockNATSClient) GetMessageCount(subject string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages[subject])
}

// Clear drops recorded messages for subject.
func (c *MockNATSClient) Clear(subject string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.messages, subject)
}

// Close rejects later calls.
func (c *MockNATSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// WaitForMessageCount waits for at least count messages on subject.
func WaitForMessageCount(t testing.TB, client *MockNATSClient, subject string, count int, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if client.GetMessageCount(subject) >= count {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %d messages on subject %s (got %d)",
		count, subject, client.GetMessageCount(subject))
}

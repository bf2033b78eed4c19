package natsclient

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestClient runs a NATS server in a container and connects a Client to it.
type TestClient struct {
	Client *Client
	URL    string

	container testcontainers.Container
}

type testConfig struct {
	jetstream    bool
	kvBuckets    []string
	image        string
	timeout      time.Duration
	startTimeout time.Duration
}

// TestOption configures a TestClient.
type TestOption func(*testConfig)

// WithJetStream starts the server with JetStream enabled.
func WithJetStream() TestOption {
	return func(c *testConfig) { c.jetstream = true }
}

// WithKVBuckets enables JetStream and creates the buckets up front.
func WithKVBuckets(buckets ...string) TestOption {
	return func(c *testConfig) {
		c.jetstream = true
		c.kvBuckets = append(c.kvBuckets, buckets...)
	}
}

// WithImage overrides the server image.
func WithImage(image string) TestOption {
	return func(c *testConfig) { c.image = image }
}

// NewSharedTestClient starts a server for use from TestMain.
func NewSharedTestClient(opts ...TestOption) (*TestClient, error) {
	cfg := &testConfig{
		image:        "nats:2.11.7-alpine",
		timeout:      5 * time.Second,
		startTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	ctx := context.Background()

	args := []string{"--port", "4222", "--http_port", "8222"}
	if cfg.jetstream {
		args = append(args, "--js")
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        cfg.image,
			ExposedPorts: []string{"4222/tcp", "8222/tcp"},
			Cmd:          args,
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("4222/tcp"),
				wait.ForHTTP("/").WithPort("8222/tcp").WithStartupTimeout(cfg.startTimeout),
			),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("start NATS container: %w", err)
	}

	tc := &TestClient{container: container}
	if err := tc.connect(ctx, cfg); err != nil {
		tc.Terminate()
		return nil, err
	}
	return tc, nil
}

// NewTestClient starts a server and terminates it when t finishes.
func NewTestClient(t testing.TB, opts ...TestOption) *TestClient {
	t.Helper()
	tc, err := NewSharedTestClient(opts...)
	if err != nil {
		t.Fatalf("NATS test client: %v", err)
	}
	t.Cleanup(tc.Terminate)
	return tc
}

func (tc *TestClient) connect(ctx context.Context, cfg *testConfig) error {
	host, err := tc.container.Host(ctx)
	if err != nil {
		return fmt.Errorf("container host: %w", err)
	}
	port, err := tc.container.MappedPort(ctx, "4222")
	if err != nil {
		return fmt.Errorf("mapped port: %w", err)
	}
	tc.URL = fmt.Sprintf("nats://%s:%s", host, port.Port())

	client, err := NewClient(tc.URL, WithTimeout(cfg.timeout), WithMaxReconnects(0))
	if err != nil {
		return err
	}
	tc.Client = client

	connectCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()
	if err := client.Connect(connectCtx); err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	for _, name := range cfg.kvBuckets {
		if _, err := client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{Bucket: name}); err != nil {
			return fmt.Errorf("create KV bucket %s: %w", name, err)
		}
	}
	return nil
}

// KVStore returns a KVStore over the named bucket, creating it if needed.
func (tc *TestClient) KVStore(ctx context.Context, bucket string) (*KVStore, error) {
	b, err := tc.Client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{Bucket: bucket})
	if err != nil {
		return nil, err
	}
	return tc.Client.NewKVStore(b), nil
}

// Terminate closes the client and stops the container.
func (tc *TestClient) Terminate() {
	if tc.Client != nil {
		_ = tc.Client.Close(context.Background())
	}
	if tc.container != nil {
		_ = tc.container.Terminate(context.Background())
		tc.container = nil
	}
}

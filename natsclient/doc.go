// Package natsclient wraps a NATS connection with a circuit breaker and a
// small JetStream KV layer.
//
// Three parts of graphsync talk to NATS through it: the KV-backed remote
// (remote/kvremote), the KV-backed op log (storage/kvstore) and the command
// bridge (gateway/natsbridge). They share one Client per process.
//
// Connect fails fast once the breaker has opened; the breaker closes again
// after an exponential backoff capped by WithMaxBackoff:
//
//	client, err := natsclient.NewClient(url, natsclient.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	if err := client.Connect(ctx); err != nil {
//		return err
//	}
//	defer client.Close(context.Background())
//
//	bucket, err := client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{Bucket: "LOCAL_OPS"})
//	kv := client.NewKVStore(bucket)
//
// TestClient starts a NATS server in a container for integration tests.
package natsclient

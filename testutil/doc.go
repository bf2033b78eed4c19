// Package testutil holds fixtures shared by package tests.
//
// SampleGraph is a small team graph (people, projects and their types)
// expressed as remote triples and relations; SeedSample loads it into an
// in-memory remote:
//
//	r := memory.New()
//	testutil.SeedSample(r)
//
// Name, Text, Relation and TypeRelation build single facts with the same
// conventions.
//
// MockNATSClient stands in for the Subscribe and Publish methods of
// natsclient.Client. Request delivers a message with a reply subject and
// returns the reply, which is enough to drive request/reply handlers
// without a server:
//
//	conn := testutil.NewMockNATSClient()
//	bridge, _ := natsbridge.New(cfg, conn, worker, logger, nil)
//	_ = bridge.Start(ctx)
//	reply, err := conn.Request(ctx, "graphsync.cmd", []byte(`{"type":"SYNC_PENDING_CHANGES"}`))
//
// Integration tests that need a real server use natsclient.NewTestClient.
package testutil

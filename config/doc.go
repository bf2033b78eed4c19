// Package config loads and validates the graphsync daemon configuration.
//
// Configuration is read from JSON or YAML files (chosen by extension),
// merged layer over layer on top of Default, then overridden from
// GRAPHSYNC_* environment variables.
//
//	loader := config.NewLoader()
//	loader.AddLayer("graphsync.yaml")
//	loader.AddLayer("graphsync.local.json") // overrides the first layer
//	loader.EnableValidation(true)
//
//	cfg, err := loader.Load()
//	if err != nil {
//		return err
//	}
//
// Layers merge key by key, so an override file only names what it changes:
//
//	# base.yaml
//	client: {space: team}
//	remote: {kind: nats, timeout: 10s}
//
//	# local.json
//	{"remote": {"timeout": "2s"}}
//
// yields a nats remote with a two second timeout. Duration fields accept Go
// duration strings and a day suffix ("14d").
//
// # Environment Variable Overrides
//
//	GRAPHSYNC_SPACE          client.space
//	GRAPHSYNC_REMOTE_KIND    remote.kind (memory, nats, subgraph)
//	GRAPHSYNC_REMOTE_URL     remote.url
//	GRAPHSYNC_STORAGE_KIND   storage.kind (none, nats, sqlite)
//	GRAPHSYNC_STORAGE_PATH   storage.path
//	GRAPHSYNC_NATS_URLS      nats.urls, comma-separated
//	GRAPHSYNC_NATS_USERNAME, _PASSWORD, _TOKEN, _CREDS
//	GRAPHSYNC_WS_ADDR        gateway.ws_addr
//	GRAPHSYNC_METRICS_PORT   metrics.port, also enables metrics
//
// # Security
//
// Files are limited to 10MB, must be regular files with a .json, .yaml or
// .yml extension, and may not escape the working directory through parent
// references when given as relative paths. JSON and YAML nesting is limited
// to 64 levels.
//
// TLS for the WebSocket listener lives under gateway.tls and for the NATS
// connection under nats.tls; both take file paths (see pkg/tlsutil).
//
// SafeConfig guards a Config for concurrent readers; Get returns a deep copy
// and Update validates before swapping.
package config

// Package ports defines the interfaces (ports) that connect the application
// layer to infrastructure adapters.
//
// # Port Interfaces
//
//   - [Dialer]: Opens the upstream byte stream
//   - [RecordSink]: Persists decoded records one at a time
//   - [BatchSink]: Optional upgrade of RecordSink for grouped writes
//   - [StatusRepository]: Persists the operator-facing status snapshot
//   - [Metrics]: Receives decoder and dispatcher counters
//   - [HTTPClient]: HTTP request abstraction for dependency injection
//
// # Usage
//
// The application layer (internal/app) depends only on these interfaces.
// Infrastructure adapters (internal/adapters) implement them with sqlite,
// Redis, HTTP, TCP, WebSocket and file system backends.
package ports

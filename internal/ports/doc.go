// Package ports defines the interfaces (ports) that connect the application
// layer to infrastructure adapters.
//
// # Port Interfaces
//
//   - [Submitter]: Replays one queued operation against the remote backend
//   - [Storage]: Namespaced durable record store for the queue and the cache
//   - [Connectivity]: Online/offline signal supplied by the host
//   - [Logger]: Structured logging abstraction
//   - [HTTPClient]: HTTP request abstraction for dependency injection
//
// The application layer (internal/app) depends only on these interfaces.
// Infrastructure adapters (internal/adapters) implement them with the file
// system, SQLite, HTTP and fsnotify.
package ports

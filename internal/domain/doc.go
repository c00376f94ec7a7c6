// Package domain contains the core domain entities and value objects for offsync.
//
// This package represents the innermost layer of the Clean Architecture. It has
// no dependencies on infrastructure concerns (HTTP, file system, logging) and
// contains only the queue and cache records plus the error taxonomy.
//
// # Entities
//
//   - [Operation]: A queued mutation intent (create, update, delete) awaiting replay
//   - [CacheEntry]: A last-known-good reference record kept for offline reads
//
// # Error Kinds
//
// Every failure the drain loop can observe is one of [KindNetwork],
// [KindRejection] or [KindStorage]. Use [KindOf] to classify an error.
package domain

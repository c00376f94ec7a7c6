// Package offsync provides an embeddable offline persistence and sync layer.
//
// A [Session] keeps a read-through cache of last-known-good records and a
// durable FIFO queue of mutation intents. While the host is offline,
// mutations are queued; when connectivity returns the queue is drained
// oldest first against the backend, each operation carrying its id as an
// idempotency token so replays never apply twice.
//
// # Basic Usage
//
//	s, err := offsync.New(offsync.Config{
//	    StateDir:   "/var/lib/myapp/offsync",
//	    SessionID:  "account-42",
//	    ServiceURL: "https://api.example.com",
//	    AuthKey:    token,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
//	if err := s.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	// from the platform's network callback
//	s.SetOnline(true)
//
//	res, err := s.Mutate(ctx, "attendance", offsync.KindCreate, record)
//
// # Failure Classes
//
// A network-class failure (transport error, timeout, 408, 429, 5xx) leaves
// the operation pending and stops the drain; it is retried unchanged on the
// next online transition. A rejection (other 4xx) marks the operation
// failed with a machine-readable reason and the drain moves on. Failed
// operations are listed by [Session.ListFailed] until the user retries or
// discards them.
//
// # Storage
//
// State is namespaced by session id. The "file" backend writes one JSON
// file per record with temp-file-and-rename; the "sqlite" backend keeps
// all records in a single database. Supply any other [Storage] with
// [WithStorage].
package offsync

package offsync_test

import (
	"context"
	"fmt"
	"os"

	"github.com/bft-labs/offsync/pkg/offsync"
)

// ExampleNew demonstrates queueing while offline and draining on reconnect.
func ExampleNew() {
	dir, _ := os.MkdirTemp("", "offsync-example")
	defer os.RemoveAll(dir)

	backend := offsync.SubmitterFunc(func(ctx context.Context, op offsync.Operation) error {
		fmt.Printf("%s %s\n", op.Kind, op.EntityType)
		return nil
	})

	s, err := offsync.New(offsync.Config{StateDir: dir, SessionID: "account-42"},
		offsync.WithSubmitter(backend))
	if err != nil {
		fmt.Printf("failed to create session: %v\n", err)
		return
	}
	defer s.Close()

	ctx := context.Background()
	_, _ = s.Enqueue(ctx, "student", offsync.KindCreate, map[string]string{"name": "Ada"})
	_, _ = s.Enqueue(ctx, "attendance", offsync.KindUpdate, map[string]bool{"present": true})
	fmt.Println("pending:", s.Pending())

	res := s.Drain(ctx)
	fmt.Println("applied:", res.Applied)

	// Output:
	// pending: 2
	// create student
	// update attendance
	// applied: 2
}

// Example_cache demonstrates reading last-known-good data while offline.
func Example_cache() {
	dir, _ := os.MkdirTemp("", "offsync-example")
	defer os.RemoveAll(dir)

	s, err := offsync.New(offsync.Config{StateDir: dir, SessionID: "account-42"},
		offsync.WithSubmitter(offsync.SubmitterFunc(func(context.Context, offsync.Operation) error { return nil })))
	if err != nil {
		return
	}
	defer s.Close()

	type profile struct {
		Name string `json:"name"`
	}
	_ = s.Cache().Set(context.Background(), offsync.CacheKeyProfile, profile{Name: "Ada"})

	var p profile
	if ok, _ := s.Cache().Lookup(offsync.CacheKeyProfile, &p); ok {
		fmt.Println(p.Name)
	}
	// Output: Ada
}

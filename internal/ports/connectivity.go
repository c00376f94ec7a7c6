package ports

// Connectivity reports the host's network state and its transitions.
type Connectivity interface {
	// Online returns the current state without blocking.
	Online() bool

	// Subscribe registers fn to be called on every transition.
	// The returned function removes the subscription.
	Subscribe(fn func(online bool)) (unsubscribe func())
}

package dispatcher

// ConnectionRegistry is the contract the out-of-scope Connection Descriptor
// collaborator would satisfy: durable bookkeeping of which subscriptions a
// connection id owns, surviving a dispatcher process restart. Grounded on
// original_source's connect_handler.rs/disconnect_handler.rs, which persist
// that bookkeeping to the CONNECTIONS_TABLE/SUBSCRIPTIONS_TABLE collaborator
// spec.md names as external. This repo's listener keeps the equivalent state
// (listener.subs, Publisher.conns) in process memory only — a connection's
// subscriptions do not survive a reconnect — so no implementation of this
// interface ships here; it exists so a deployment that needs cross-restart
// subscription durability has a seam to implement it against.
type ConnectionRegistry interface {
	// Connect records a new connection id, returning once it is durably
	// tracked.
	Connect(connID, remote string) error
	// Disconnect removes a connection id and every subscription recorded
	// under it.
	Disconnect(connID string) error
	// RecordSubscription durably associates a subscription id and its
	// filters with a connection id.
	RecordSubscription(connID, subID string, filters []byte) error
	// RemoveSubscription removes one subscription id from a connection's
	// recorded set.
	RemoveSubscription(connID, subID string) error
}

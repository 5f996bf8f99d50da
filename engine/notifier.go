package engine

// Notifier is a concurrency primitive for informing worker routines about the
// arrival of new work. Notifications are idempotent: once a notification is
// pending, further notifications are no-ops until the notification is
// consumed.
type Notifier struct {
	notifier chan struct{}
}

// NewNotifier instantiates a Notifier without pending notifications.
func NewNotifier() Notifier {
	// the 1 message buffer is important to avoid a race condition: a
	// notification arriving between the consumer draining the store and
	// re-subscribing to the channel would otherwise be lost.
	return Notifier{notifier: make(chan struct{}, 1)}
}

// Notify sets the notification if no notification is pending.
func (n Notifier) Notify() {
	select {
	case n.notifier <- struct{}{}:
	default:
	}
}

// Channel returns the channel on which a pending notification can be
// consumed.
func (n Notifier) Channel() <-chan struct{} {
	return n.notifier
}

package dispatcher

// handleClose implements the CLOSE branch of app/handle-close.go: drop the
// named subscription from this connection's live set and from the
// Publisher's fan-out registry. Closing an unknown subid is not an error,
// per NIP-01.
func (l *listener) handleClose(subID string) error {
	l.mu.Lock()
	delete(l.subs, subID)
	l.mu.Unlock()
	l.publisher.Unregister(l, subID)
	return nil
}

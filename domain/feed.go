package domain

import "time"

// FeedEvent is what subscribers of the feed receive.
// Messages is always the full window ordered oldest first, never a diff.
// When Degraded is true the connection to the underlying store is lost and
// Messages carries the last known window.
type FeedEvent struct {
	Seq      uint64
	Messages []Message
	Degraded bool
	Err      error
	At       time.Time
}

// WindowChange is emitted by a store cursor. Messages is newest first,
// like the store reads them. Err is set on transport-level disconnects.
type WindowChange struct {
	Messages []Message
	Err      error
}

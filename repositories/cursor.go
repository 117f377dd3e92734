package repositories

import (
	"sync"

	"public-feed/domain"
)

// WindowCursor is the contract.Cursor shared by the stores.
// It holds at most one unread change: publishing replaces a change the reader
// has not picked up yet, so a slow reader only ever sees the latest window.
// A single goroutine publishes, started with Go.
type WindowCursor struct {
	changes chan domain.WindowChange
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

func NewWindowCursor() *WindowCursor {
	return &WindowCursor{
		changes: make(chan domain.WindowChange, 1),
		done:    make(chan struct{}),
	}
}

func (c *WindowCursor) Changes() <-chan domain.WindowChange { return c.changes }

// Done is closed by Close.
func (c *WindowCursor) Done() <-chan struct{} { return c.done }

// Go runs the producer. Changes is closed once it returns.
func (c *WindowCursor) Go(producer func()) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(c.changes)
		producer()
	}()
}

// Publish must only be called from the producer.
func (c *WindowCursor) Publish(change domain.WindowChange) {
	select {
	case <-c.changes:
	default:
	}
	select {
	case c.changes <- change:
	case <-c.done:
	}
}

// Close stops the producer and waits for it.
func (c *WindowCursor) Close() error {
	c.once.Do(func() { close(c.done) })
	c.wg.Wait()
	return nil
}

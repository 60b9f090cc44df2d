package ingest

import (
	"context"
	"image"
	"sync"
	"time"
)

// mailbox is a one-slot inbox: a new frame replaces an undelivered one.
type mailbox struct {
	mu     sync.Mutex
	frame  image.Image
	ready  chan struct{}
	closed bool
	drops  int
}

func newMailbox() *mailbox {
	return &mailbox{ready: make(chan struct{}, 1)}
}

func (m *mailbox) put(img image.Image) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if m.frame != nil {
		m.drops++
	}
	m.frame = img
	select {
	case m.ready <- struct{}{}:
	default:
	}
}

// take waits up to wait for a frame. open is false once the mailbox is
// closed and drained.
func (m *mailbox) take(ctx context.Context, wait time.Duration) (img image.Image, ok, open bool) {
	if img, ok, open := m.poll(); ok || !open {
		return img, ok, open
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, false, true
		case <-timer.C:
			return nil, false, true
		case <-m.ready:
			if img, ok, open := m.poll(); ok || !open {
				return img, ok, open
			}
		}
	}
}

func (m *mailbox) poll() (image.Image, bool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.frame != nil {
		img := m.frame
		m.frame = nil
		return img, true, true
	}
	return nil, false, !m.closed
}

func (m *mailbox) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	select {
	case m.ready <- struct{}{}:
	default:
	}
}

// dropped returns how many frames were replaced before delivery.
func (m *mailbox) dropped() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.drops
}

package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/ledgerline/ledgerline/internal/domain/notification"
)

// CapturedNotification records one dispatched notification
type CapturedNotification struct {
	Recipient string
	Template  notification.Template
	Payload   map[string]any
}

// CaptureDispatcher implements notification.Dispatcher and records every
// dispatch. FailFor injects per-recipient failures to test failure isolation.
type CaptureDispatcher struct {
	mu      sync.Mutex
	sent    []CapturedNotification
	failFor map[string]bool
	failAll bool
}

func NewCaptureDispatcher() *CaptureDispatcher {
	return &CaptureDispatcher{
		failFor: make(map[string]bool),
	}
}

func (d *CaptureDispatcher) Dispatch(ctx context.Context, recipient string, template notification.Template, payload map[string]any) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.failAll || d.failFor[recipient] {
		return fmt.Errorf("dispatch failed for %s", recipient)
	}

	d.sent = append(d.sent, CapturedNotification{
		Recipient: recipient,
		Template:  template,
		Payload:   payload,
	})
	return nil
}

// FailFor makes every dispatch to the given recipient fail
func (d *CaptureDispatcher) FailFor(recipient string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failFor[recipient] = true
}

// FailAll makes every dispatch fail
func (d *CaptureDispatcher) FailAll(fail bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failAll = fail
}

// Sent returns a snapshot of captured notifications
func (d *CaptureDispatcher) Sent() []CapturedNotification {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]CapturedNotification, len(d.sent))
	copy(out, d.sent)
	return out
}

// SentTo returns the notifications dispatched to one recipient
func (d *CaptureDispatcher) SentTo(recipient string) []CapturedNotification {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []CapturedNotification
	for _, n := range d.sent {
		if n.Recipient == recipient {
			out = append(out, n)
		}
	}
	return out
}

func (d *CaptureDispatcher) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = nil
	d.failFor = make(map[string]bool)
	d.failAll = false
}

// Package notify fans release events out to configured notifiers. Each
// delivery is isolated: one notifier failing, however hard, never blocks
// the others and never fails the tracker check that produced the event.
package notify

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/zulandar/signalbox/internal/models"
	"github.com/zulandar/signalbox/internal/store"
)

// Event kinds notifiers can subscribe to.
const (
	EventNewRelease = "new_release"
	EventRepublish  = "republish"
	EventTest       = "test"
)

const (
	// maxRetries is the max number of delivery attempts per notifier.
	maxRetries = 3
	// baseBackoff is the initial backoff between delivery attempts.
	baseBackoff = 2 * time.Second
	// maxBackoff caps the exponential backoff.
	maxBackoff = 2 * time.Minute
)

// Event is one release observation worth telling notifiers about.
type Event struct {
	Kind    string
	Release models.Release
}

// Sender delivers one event to one notifier endpoint.
type Sender interface {
	Send(ctx context.Context, notifier models.Notifier, event Event) error
}

// Dispatcher selects subscribed notifiers for an event and delivers to each
// with bounded retries, logging every outcome to the delivery table.
type Dispatcher struct {
	store       *store.Store
	senders     map[string]Sender
	maxRetries  int
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

// DispatcherOpts holds parameters for creating a Dispatcher.
type DispatcherOpts struct {
	Store   *store.Store
	Senders map[string]Sender // defaults to webhook/slack/discord senders

	// For testing: shrink the retry schedule.
	MaxRetries  int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(opts DispatcherOpts) (*Dispatcher, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("notify: store is required")
	}
	senders := opts.Senders
	if senders == nil {
		senders = map[string]Sender{
			models.NotifierWebhook: NewWebhookSender(),
			models.NotifierSlack:   &SlackSender{},
			models.NotifierDiscord: &DiscordSender{},
		}
	}
	d := &Dispatcher{
		store:       opts.Store,
		senders:     senders,
		maxRetries:  opts.MaxRetries,
		baseBackoff: opts.BaseBackoff,
		maxBackoff:  opts.MaxBackoff,
	}
	if d.maxRetries <= 0 {
		d.maxRetries = maxRetries
	}
	if d.baseBackoff <= 0 {
		d.baseBackoff = baseBackoff
	}
	if d.maxBackoff <= 0 {
		d.maxBackoff = maxBackoff
	}
	return d, nil
}

// Dispatch delivers an event to every enabled notifier subscribed to its
// kind. Notifiers are loaded fresh from the store on every call so edits
// take effect immediately and nothing double-sends from a stale cache.
// Dispatch never reports failure to the caller; outcomes land in the
// delivery log and the process log.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) {
	notifiers, err := d.store.NotifiersForEvent(event.Kind)
	if err != nil {
		log.Printf("notify: load notifiers for %s: %v", event.Kind, err)
		return
	}
	if len(notifiers) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, n := range notifiers {
		wg.Add(1)
		go func(n models.Notifier) {
			defer wg.Done()
			d.deliver(ctx, n, event)
		}(n)
	}
	wg.Wait()
}

// deliver attempts one notifier with exponential backoff, then records the
// outcome.
func (d *Dispatcher) deliver(ctx context.Context, notifier models.Notifier, event Event) {
	sender, ok := d.senders[notifier.Type]
	if !ok {
		log.Printf("notify: %s: unsupported notifier type %q", notifier.Name, notifier.Type)
		return
	}

	var lastErr error
	attempts := 0
	for attempt := 0; attempt < d.maxRetries; attempt++ {
		attempts = attempt + 1
		lastErr = sender.Send(ctx, notifier, event)
		if lastErr == nil || attempt == d.maxRetries-1 {
			break
		}

		wait := time.Duration(math.Pow(2, float64(attempt))) * d.baseBackoff
		if wait > d.maxBackoff {
			wait = d.maxBackoff
		}
		log.Printf("notify: %s: delivery failed (attempt %d/%d): %v, retrying in %v",
			notifier.Name, attempts, d.maxRetries, lastErr, wait)

		select {
		case <-ctx.Done():
			lastErr = ctx.Err()
		case <-time.After(wait):
		}
		if ctx.Err() != nil {
			break
		}
	}

	delivery := models.Delivery{
		NotifierName: notifier.Name,
		Event:        event.Kind,
		TrackerName:  event.Release.TrackerName,
		TagName:      event.Release.TagName,
		Attempts:     attempts,
		Success:      lastErr == nil,
	}
	if lastErr != nil {
		delivery.Error = lastErr.Error()
		log.Printf("notify: %s: giving up after %d attempts: %v", notifier.Name, attempts, lastErr)
	} else {
		log.Printf("notify: %s: delivered %s for %s %s",
			notifier.Name, event.Kind, event.Release.TrackerName, event.Release.TagName)
	}
	if err := d.store.LogDelivery(&delivery); err != nil {
		log.Printf("notify: %s: %v", notifier.Name, err)
	}
}

// Test sends a single synchronous test payload to one notifier: one attempt,
// no retry, no delivery log entry. Exposed to the API for configuration
// checks.
func (d *Dispatcher) Test(ctx context.Context, notifier models.Notifier) error {
	sender, ok := d.senders[notifier.Type]
	if !ok {
		return fmt.Errorf("notify: unsupported notifier type %q", notifier.Type)
	}
	event := Event{
		Kind: EventTest,
		Release: models.Release{
			TrackerName: "signalbox",
			TagName:     "test",
			Name:        "Test notification",
			URL:         notifier.URL,
			PublishedAt: time.Now(),
		},
	}
	if err := sender.Send(ctx, notifier, event); err != nil {
		return fmt.Errorf("notify: test %s: %w", notifier.Name, err)
	}
	return nil
}

package relay

import (
	"context"
	"sync"

	"github.com/portwatch/nostrelay/lib/logging"
	"github.com/portwatch/nostrelay/lib/nostr"
	"github.com/portwatch/nostrelay/lib/storage"
)

// queueCapacity is the bounded delivery queue depth per spec §4.6 step 2.
const queueCapacity = 100

// defaultLimit is applied to a backfill query when the filter specifies no
// limit of its own, per spec §6's storage contract ("honoring per-filter
// limit, default 500").
const defaultLimit = 500

// queueItem is either a matched event or, as the final item a producer ever
// sends, the EOSE marker. Collapsing both into one channel guarantees the
// sender task observes every backfilled event strictly before EOSE: two
// separate channels selected with `select` would race, since select does
// not favor the channel that is temporally first to be readable.
type queueItem struct {
	event *nostr.Event
	eose  bool
}

// Subscription is one client's named, filtered interest (spec §3, §4.6).
type Subscription struct {
	id      string
	filters nostr.Filters

	queue chan queueItem
	done  chan struct{}
	once  sync.Once

	cancelBackfill context.CancelFunc
}

// NewSubscription allocates a subscription and starts its sender and
// backfill tasks. Cancelling ctx stops the backfill task only; Cancel()
// (which client close and unsubscribe call) stops both tasks.
func NewSubscription(ctx context.Context, id string, filters nostr.Filters, store storage.Store, sender Sender) *Subscription {
	backfillCtx, cancelBackfill := context.WithCancel(ctx)

	sub := &Subscription{
		id:             id,
		filters:        filters,
		queue:          make(chan queueItem, queueCapacity),
		done:           make(chan struct{}),
		cancelBackfill: cancelBackfill,
	}

	go sub.runSender(sender)
	go sub.runBackfill(backfillCtx, store)

	return sub
}

// enqueueLive delivers a live (post-backfill) match. Per spec §4.6's lossy
// backpressure policy, a full queue drops the event rather than blocking
// the broadcast bus.
func (s *Subscription) enqueueLive(event *nostr.Event) {
	select {
	case s.queue <- queueItem{event: event}:
	case <-s.done:
	default:
		logging.Debugf("subscription %s: queue full, dropping event %s", s.id, event.ID)
	}
}

// runBackfill queries storage for every historical match, in FIFO
// (blocking) order so the single-channel EOSE-last invariant holds, then
// enqueues the EOSE marker.
func (s *Subscription) runBackfill(ctx context.Context, store storage.Store) {
	for _, f := range s.filters {
		filter := f
		if !filter.HasLimit {
			filter.HasLimit = true
			filter.Limit = defaultLimit
		}
		err := store.Query(ctx, filter, func(event *nostr.Event) error {
			select {
			case s.queue <- queueItem{event: event}:
				return nil
			case <-s.done:
				return errSubscriptionClosed
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil {
			return
		}
	}

	select {
	case s.queue <- queueItem{eose: true}:
	case <-s.done:
	}
}

var errSubscriptionClosed = errClosed("subscription closed")

type errClosed string

func (e errClosed) Error() string { return string(e) }

// runSender drains the queue in order, writing EVENT frames, and emits
// exactly one EOSE frame when the backfill marker arrives, then continues
// forwarding live events until cancellation (spec §4.6).
func (s *Subscription) runSender(sender Sender) {
	for {
		select {
		case item := <-s.queue:
			if item.eose {
				if err := sender.SendEOSE(s.id); err != nil {
					return
				}
				continue
			}
			if err := sender.SendEvent(s.id, item.event); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

// Cancel closes the subscription's done channel, which stops its sender
// and backfill tasks, and cancels the backfill context. Idempotent
// (spec §4.6 "unsubscribe ... idempotent").
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		close(s.done)
		s.cancelBackfill()
	})
}

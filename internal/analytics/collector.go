package analytics

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Adithya-Monish-Kumar-K/crawlsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/pkg/resilience"
)

// Publisher is the part of kafka.Producer the collectors use.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Collector publishes search events to Kafka from a buffered channel so the
// request path never waits on the broker. Publishing goes through a circuit
// breaker; while it is open events are dropped.
type Collector struct {
	publisher Publisher
	breaker   *resilience.CircuitBreaker
	eventCh   chan SearchEvent
	logger    *slog.Logger
	done      chan struct{}
	started   atomic.Bool
	closeOnce sync.Once
}

func NewCollector(publisher Publisher, breaker *resilience.CircuitBreaker, bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker("analytics-kafka", resilience.CircuitBreakerConfig{})
	}
	return &Collector{
		publisher: publisher,
		breaker:   breaker,
		eventCh:   make(chan SearchEvent, bufferSize),
		logger:    slog.Default().With("component", "analytics-collector"),
		done:      make(chan struct{}),
	}
}

// Start launches the publish loop. It drains the buffer when ctx is done or
// Close is called.
func (c *Collector) Start(ctx context.Context) {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(c.done)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					return
				}
				c.publish(ctx, event)
			case <-ctx.Done():
				c.drainRemaining()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started", "buffer_size", cap(c.eventCh))
}

// TrackSearch enqueues event, dropping it when the buffer is full.
func (c *Collector) TrackSearch(event SearchEvent) {
	select {
	case c.eventCh <- event:
	default:
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

// TrackCrawl is a no-op; crawl events go through the batch collector.
func (c *Collector) TrackCrawl(CrawlEvent) {}

// Close stops accepting events and waits for the loop to exit. Safe to call
// more than once.
func (c *Collector) Close() {
	c.closeOnce.Do(func() { close(c.eventCh) })
	if c.started.Load() {
		<-c.done
	}
}

func (c *Collector) publish(ctx context.Context, event SearchEvent) {
	err := c.breaker.Execute(func() error {
		return c.publisher.Publish(ctx, kafka.Event{Key: event.Query, Value: event})
	})
	if err != nil {
		c.logger.Debug("failed to publish search event", "error", err)
	}
}

func (c *Collector) drainRemaining() {
	ctx := context.Background()
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return
			}
			c.publish(ctx, event)
		default:
			return
		}
	}
}

package events

import (
	"context"
	"sync"
	"time"

	"budgetcal/internal/log"
)

// Emitter publishes events in the background so a slow broker never delays
// a response. Failures are logged and dropped.
type Emitter struct {
	publisher Publisher
	logger    *log.Logger
	timeout   time.Duration
	wg        sync.WaitGroup
}

func NewEmitter(p Publisher, logger *log.Logger) *Emitter {
	if p == nil {
		p = Noop{}
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Emitter{
		publisher: p,
		logger:    logger.WithComponent(log.ComponentEvents),
		timeout:   publishTimeout,
	}
}

// Emit publishes resource.action for id.
func (em *Emitter) Emit(resource, action string, id int64) {
	em.EmitEvent(NewEvent(resource, action, id))
}

// EmitEvent publishes e.
func (em *Emitter) EmitEvent(e *Event) {
	em.wg.Add(1)
	go func() {
		defer em.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), em.timeout)
		defer cancel()
		if err := em.publisher.Publish(ctx, e); err != nil {
			em.logger.Warn("Event not published",
				log.FieldEvent, e.RoutingKey(),
				log.FieldResourceID, e.ID,
				log.FieldError, err.Error())
		}
	}()
}

// Flush waits for pending publishes.
func (em *Emitter) Flush() {
	em.wg.Wait()
}

// Close flushes and closes the publisher.
func (em *Emitter) Close() error {
	em.Flush()
	return em.publisher.Close()
}

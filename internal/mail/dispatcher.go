package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// JobType tags email jobs on the background queue
const JobType = "email"

const inlineTimeout = 30 * time.Second

// Deliverer puts a rendered message on the wire
type Deliverer interface {
	Deliver(ctx context.Context, msg *Rendered) error
}

// Enqueuer hands a job to the background queue
type Enqueuer interface {
	Enqueue(ctx context.Context, jobType string, payload interface{}) error
}

// Dispatcher accepts templated emails from the services. With a queue it
// enqueues them for the worker pool; without one it delivers them from a
// goroutine so callers never wait on SMTP.
type Dispatcher struct {
	deliverer Deliverer
	queue     Enqueuer
	wg        sync.WaitGroup
}

func NewDispatcher(deliverer Deliverer, queue Enqueuer) *Dispatcher {
	return &Dispatcher{deliverer: deliverer, queue: queue}
}

// Send queues or starts delivery of a templated email. Unknown templates are
// rejected before anything is queued.
func (d *Dispatcher) Send(ctx context.Context, to, templateKey string, data map[string]interface{}) error {
	msg := Message{To: to, Template: templateKey, Data: data}
	if _, ok := templates[templateKey]; !ok {
		return fmt.Errorf("unknown email template %q", templateKey)
	}

	if d.queue != nil {
		if err := d.queue.Enqueue(ctx, JobType, msg); err != nil {
			return fmt.Errorf("failed to enqueue email: %w", err)
		}
		return nil
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), inlineTimeout)
		defer cancel()

		if err := d.deliver(ctx, msg); err != nil {
			log.Error().Err(err).Str("to", msg.To).Str("template", msg.Template).Msg("failed to send email")
		}
	}()
	return nil
}

// Handle processes one queued email job
func (d *Dispatcher) Handle(ctx context.Context, payload json.RawMessage) error {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("invalid email payload: %w", err)
	}
	if msg.To == "" {
		log.Warn().Str("template", msg.Template).Msg("email job without recipient, skipping")
		return nil
	}
	return d.deliver(ctx, msg)
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message) error {
	rendered, err := Render(msg)
	if err != nil {
		return err
	}
	if err := d.deliverer.Deliver(ctx, rendered); err != nil {
		return err
	}

	log.Info().Str("to", msg.To).Str("template", msg.Template).Msg("email sent")
	return nil
}

// Wait blocks until inline deliveries have finished
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/taskplane/taskplane/shared/utils"
)

// Producer publishes audit events to Kafka through a worker pool. Emit never
// blocks a request path: events queue into a buffered channel and a circuit
// breaker around the Kafka writes degrades the trail to log-only when the
// broker is down.
type Producer struct {
	writer       *kafka.Writer
	eventChan    chan Event
	workerCount  int
	shutdownChan chan struct{}
	wg           sync.WaitGroup
	breaker      *utils.CircuitBreaker
}

// NewProducer creates a producer with a started worker pool
func NewProducer(broker string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(broker),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
	}

	p := &Producer{
		writer:       writer,
		eventChan:    make(chan Event, 1000),
		workerCount:  4,
		shutdownChan: make(chan struct{}),
		breaker:      utils.NewCircuitBreaker(5, 30*time.Second),
	}

	p.startWorkers()
	return p
}

func (p *Producer) startWorkers() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.eventWorker(i)
	}
	logrus.WithField("workers", p.workerCount).Info("audit producer started")
}

func (p *Producer) eventWorker(id int) {
	defer p.wg.Done()

	for {
		select {
		case event := <-p.eventChan:
			err := p.breaker.Call(func() error {
				return p.sendEventSync(event)
			})
			if err != nil {
				// the trail must not be lost silently; fall back to the log
				logrus.WithFields(logrus.Fields{
					"worker":   id,
					"type":     event.Type,
					"actor_id": event.ActorID,
					"brand_id": event.BrandID,
					"override": event.Override,
					"detail":   event.Detail,
					"error":    err,
				}).Warn("audit event not published, recorded in log only")
			}
		case <-p.shutdownChan:
			return
		}
	}
}

// Emit queues an audit event without blocking. When the queue is full the
// event is written to the log instead of being dropped.
func (p *Producer) Emit(event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	select {
	case p.eventChan <- event:
	default:
		logrus.WithFields(logrus.Fields{
			"type":     event.Type,
			"actor_id": event.ActorID,
			"brand_id": event.BrandID,
			"override": event.Override,
			"detail":   event.Detail,
		}).Warn("audit queue full, event recorded in log only")
	}
}

func (p *Producer) sendEventSync(event Event) error {
	message, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	msg := kafka.Message{
		Topic: Topic,
		Key:   []byte(event.BrandID.String()),
		Value: message,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "brand_id", Value: []byte(event.BrandID.String())},
			{Key: "actor_id", Value: []byte(event.ActorID.String())},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write audit event to Kafka: %w", err)
	}

	return nil
}

// Close drains the workers and shuts down the Kafka writer
func (p *Producer) Close() error {
	close(p.shutdownChan)
	p.wg.Wait()
	close(p.eventChan)

	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close audit writer: %w", err)
	}

	logrus.Info("audit producer stopped")
	return nil
}

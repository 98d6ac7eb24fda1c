// internal/queue/queue.go
package queue

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mailmergehq/mailmerge-backend/internal/model"
)

// TopicCampaignDispatch carries launch jobs from the HTTP layer to the
// dispatch worker.
const TopicCampaignDispatch = "campaign_dispatch"

// DispatchJob is the payload published at launch. The sender config
// rides along in the job rather than being persisted, so credential
// secrets only pass through the broker.
type DispatchJob struct {
	CampaignID   int                `json:"campaign_id"`
	SenderConfig model.SenderConfig `json:"sender_config"`
}

// Queue decouples the launch acknowledgment from the long-running
// dispatch loop.
type Queue interface {
	Publish(topic string, payload []byte) error
	Subscribe(topic string, handler func(payload []byte) error) error
}

// InMemoryQueue runs handlers in-process. Used for single-binary
// deployments and tests; production setups publish to RabbitMQ instead.
type InMemoryQueue struct {
	mu       sync.Mutex
	handlers map[string][]func(payload []byte) error
}

func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		handlers: make(map[string][]func(payload []byte) error),
	}
}

const inMemoryMaxRetries = 3

// Publish hands the payload to every subscriber of the topic, each on
// its own goroutine, and returns immediately.
func (q *InMemoryQueue) Publish(topic string, payload []byte) error {
	q.mu.Lock()
	handlers := q.handlers[topic]
	q.mu.Unlock()

	if len(handlers) == 0 {
		return errors.Errorf("no subscribers for topic %s", topic)
	}

	for _, handler := range handlers {
		go q.processJob(topic, handler, payload)
	}

	return nil
}

func (q *InMemoryQueue) processJob(topic string, handler func(payload []byte) error, payload []byte) {
	for attempt := 1; attempt <= inMemoryMaxRetries; attempt++ {
		err := handler(payload)
		if err == nil {
			return
		}

		logrus.WithError(err).WithFields(logrus.Fields{
			"topic":   topic,
			"attempt": attempt,
		}).Warn("queue handler failed")

		if attempt == inMemoryMaxRetries {
			logrus.WithField("topic", topic).Error("queue job permanently failed")
			return
		}

		// backoff before retry
		time.Sleep(time.Duration(attempt*500) * time.Millisecond)
	}
}

func (q *InMemoryQueue) Subscribe(topic string, handler func(payload []byte) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

// internal/queue/amqp.go
package queue

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

// AMQPQueue is the RabbitMQ-backed queue used when the dispatch worker
// runs as a separate process.
type AMQPQueue struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func DialAMQP(url string) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to RabbitMQ")
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "failed to open channel")
	}

	return &AMQPQueue{conn: conn, ch: ch}, nil
}

func (q *AMQPQueue) Close() {
	q.ch.Close()
	q.conn.Close()
}

func (q *AMQPQueue) declare(topic string) (amqp.Queue, error) {
	return q.ch.QueueDeclare(
		topic,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
}

func (q *AMQPQueue) Publish(topic string, payload []byte) error {
	declared, err := q.declare(topic)
	if err != nil {
		return errors.Wrap(err, "failed to declare queue")
	}

	err = q.ch.Publish(
		"",
		declared.Name,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         payload,
		},
	)
	return errors.Wrap(err, "failed to publish message")
}

// Subscribe consumes the topic on a background goroutine. A handler
// error requeues the delivery once; a redelivered failure is dropped so
// a poison job cannot wedge the queue.
func (q *AMQPQueue) Subscribe(topic string, handler func(payload []byte) error) error {
	declared, err := q.declare(topic)
	if err != nil {
		return errors.Wrap(err, "failed to declare queue")
	}

	msgs, err := q.ch.Consume(
		declared.Name,
		"",
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return errors.Wrap(err, "failed to register consumer")
	}

	go func() {
		for d := range msgs {
			if err := handler(d.Body); err != nil {
				logrus.WithError(err).WithField("topic", topic).Warn("queue handler failed")
				d.Nack(false, !d.Redelivered)
				continue
			}
			d.Ack(false)
		}
	}()

	return nil
}

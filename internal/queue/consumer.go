package queue

import (
	"encoding/json"
	"log"

	"github.com/google/uuid"
	"github.com/streadway/amqp"

	"github.com/roofline/roofline-backend/internal/model"
)

// EventHandler receives decoded stage-change events.
type EventHandler interface {
	OnStageChange(ev model.StageChangeEvent)
}

// Consumer reads pipeline stage-change events published by the rest of
// the CRM and hands them to the trigger dispatcher. Trigger matching
// is idempotent (lookup-before-insert), so a redelivered event is
// harmless.
type Consumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	handler EventHandler
}

func NewConsumer(amqpURL, queueName string, handler EventHandler) (*Consumer, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	_, err = ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &Consumer{conn: conn, channel: ch, queue: queueName, handler: handler}, nil
}

// Start consumes until the channel closes. Manual ack; a malformed
// body is acked and dropped, a decodable one is always acked after
// dispatch because the dispatcher already logs and absorbs partial
// failures.
func (c *Consumer) Start() error {
	msgs, err := c.channel.Consume(
		c.queue,
		"",
		false, // autoAck off so a crash mid-dispatch redelivers
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	go func() {
		for d := range msgs {
			var ev model.StageChangeEvent
			if err := json.Unmarshal(d.Body, &ev); err != nil {
				log.Println("[Queue] dropping undecodable event:", err)
				d.Ack(false)
				continue
			}
			if ev.TenantID == uuid.Nil || ev.ProjectID == uuid.Nil || ev.ToStage == "" {
				log.Printf("[Queue] dropping incomplete event: %+v", ev)
				d.Ack(false)
				continue
			}

			c.handler.OnStageChange(ev)
			d.Ack(false)
		}
		log.Println("[Queue] delivery channel closed")
	}()

	log.Printf("[Queue] consuming stage-change events from %q", c.queue)
	return nil
}

func (c *Consumer) Close() {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}

package queue

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const notifyQueueName = "notify.user"

// AmqpSender dispatches user messages by publishing one persistent
// event per message to the notify.user queue.  It satisfies the
// service.MessageSender contract.  The function attempts to be robust
// and to never panic; any error is logged and returned so the caller
// can choose to ignore it.
type AmqpSender struct {
	url string
}

// NewAmqpSender returns an AmqpSender that dials the given broker URL
// on every send.
func NewAmqpSender(url string) *AmqpSender {
	return &AmqpSender{url: url}
}

// SendMessage publishes the text for the given delivery handle.
// Messages are marked persistent so they survive broker restarts.
func (s *AmqpSender) SendMessage(ctx context.Context, handle, text string) error {
	conn, err := amqp.Dial(s.url)
	if err != nil {
		log.Printf("rabbitmq: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("rabbitmq: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent).  Durable so messages
	// survive broker restarts.
	if _, err := ch.QueueDeclare(
		notifyQueueName, // name
		true,            // durable
		false,           // autoDelete
		false,           // exclusive
		false,           // noWait
		nil,             // args
	); err != nil {
		log.Printf("rabbitmq: queue declare failed: %v", err)
		return err
	}

	body, err := json.Marshal(UserNotificationEvent{
		Handle: handle,
		Text:   text,
		SentAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		log.Printf("rabbitmq: marshal event failed: %v", err)
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx,
		"",              // default exchange
		notifyQueueName, // routing key = queue name
		false,           // mandatory
		false,           // immediate
		pub,
	); err != nil {
		log.Printf("rabbitmq: publish failed: %v", err)
		return err
	}

	return nil
}

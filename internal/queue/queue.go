// Package queue distributes chunk jobs to scoring workers over RabbitMQ.
// A job names a chunk of the deterministic candidate sequence by offsets;
// workers rebuild the sequence from the same inputs and score their slice,
// so the broker carries coordinates, never data.
package queue

import (
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/openrepurpose/netprox/internal/util"
	"github.com/openrepurpose/netprox/pkg/logger"
)

// ScoreQueue carries chunk jobs. Failed jobs cycle through ScoreQueue_retry
// (with a delivery TTL dead-lettering back) and land in ScoreQueue_dlq
// after too many attempts.
const ScoreQueue = "score_chunk_queue"

const maxDeliveryRetries = 10

// Init connects to RabbitMQ using the RABBITMQ_* environment variables.
func Init() *amqp091.Connection {
	user := util.GetEnv("RABBITMQ_USER")
	pass := util.GetEnv("RABBITMQ_PASSWORD")
	host := util.GetEnv("RABBITMQ_HOST")
	port := util.GetEnv("RABBITMQ_PORT")

	connURL := fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		user,
		pass,
		host,
		port,
	)

	conn, err := amqp091.Dial(connURL)
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", "err", err)
	}

	return conn
}

// SetupQueues declares the scoring queue plus its retry and dead-letter
// companions. Declaration is idempotent; publisher and workers both call it.
func SetupQueues(ch *amqp091.Channel) error {
	_, err := ch.QueueDeclare(
		ScoreQueue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("QueueDeclare %s: %w", ScoreQueue, err)
	}

	dlqName := ScoreQueue + "_dlq"
	_, err = ch.QueueDeclare(
		dlqName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("QueueDeclare %s: %w", dlqName, err)
	}

	retryName := ScoreQueue + "_retry"
	_, err = ch.QueueDeclare(
		retryName,
		true,
		false,
		false,
		false,
		amqp091.Table{
			"x-message-ttl":             int32(10000),
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": ScoreQueue,
		},
	)
	if err != nil {
		return fmt.Errorf("QueueDeclare %s: %w", retryName, err)
	}

	return nil
}

func publish(ch *amqp091.Channel, queueName string, data []byte) error {
	publishing := amqp091.Publishing{
		ContentType:  "application/json",
		Body:         data,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	}

	return ch.Publish(
		"",
		queueName,
		false,
		false,
		publishing,
	)
}

// HandleProcessingError routes a failed delivery to the retry queue, or to
// the dead-letter queue once it has been retried too often. Publish
// failures fall back to a requeueing nack so the job is never lost.
func HandleProcessingError(ch *amqp091.Channel, msg amqp091.Delivery) {
	retries := 0
	if val, ok := msg.Headers["x-retries"]; ok {
		if v, ok := val.(int32); ok {
			retries = int(v)
		}
	}

	if retries >= maxDeliveryRetries {
		dlqName := ScoreQueue + "_dlq"
		logger.Info("Sending chunk job to DLQ", "dlq", dlqName)
		pubErr := ch.Publish(
			"",
			dlqName,
			false,
			false,
			amqp091.Publishing{
				ContentType: "application/json",
				Body:        msg.Body,
				Headers:     msg.Headers,
			},
		)
		if pubErr != nil {
			logger.Error("Failed to publish to DLQ", "dlq", dlqName, "err", pubErr)
			msg.Nack(false, true)
			return
		}
		msg.Ack(false)
		return
	}

	retryName := ScoreQueue + "_retry"
	headers := msg.Headers
	if headers == nil {
		headers = amqp091.Table{}
	}
	headers["x-retries"] = int32(retries + 1)

	pubErr := ch.Publish(
		"",
		retryName,
		false,
		false,
		amqp091.Publishing{
			ContentType: "application/json",
			Body:        msg.Body,
			Headers:     headers,
		},
	)
	if pubErr != nil {
		logger.Error("Failed to publish to retry queue", "retry_queue", retryName, "err", pubErr)
		msg.Nack(false, true)
		return
	}
	msg.Ack(false)
}

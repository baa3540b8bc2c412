package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/openrepurpose/netprox/internal/bootstrap"
	"github.com/openrepurpose/netprox/internal/queue"
	"github.com/openrepurpose/netprox/internal/util"
	"github.com/openrepurpose/netprox/pkg/logger"
	"github.com/openrepurpose/netprox/pkg/logger/console"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  debug,
		Prefix: "worker",
	})
	logger.Init(consoleLogger)

	pipeline := bootstrap.BuildPipeline(ctx)
	defer pipeline.Close()

	// Enumerate the candidate sequence once. MAX_PAIRS must match the
	// publisher's setting or the chunk offsets will not line up; a mismatch
	// is caught per message and the job is rejected.
	maxPairs := util.GetEnvInt("MAX_PAIRS", 0)
	total := pipeline.Runner.Prepare(maxPairs)
	logger.Info("Candidate universe ready", "pairs", total)

	conn := queue.Init()
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	// Prefetch one message so slow chunks never pile up on a single worker.
	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	if err := consumerCh.Qos(1, 0, true); err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	msgs, err := consumerCh.Consume(
		queue.ScoreQueue,
		"score_chunk_consumer",
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		logger.Fatal("Failed to start consuming", "queue", queue.ScoreQueue, "err", err)
	}

	logger.Info("Listening for chunk jobs")

	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutdown signal received, exiting...")
			return
		case msg, ok := <-msgs:
			if !ok {
				logger.Info("Message channel closed")
				return
			}
			handleMessage(ctx, pipeline, total, consumerCh, msg)
		}
	}
}

func handleMessage(ctx context.Context, pipeline *bootstrap.Pipeline, total int, ch *amqp.Channel, msg amqp.Delivery) {
	startTime := time.Now()
	logger.Info("Received chunk job")

	err := queue.ProcessChunkMessage(ctx, pipeline.Runner, total, string(msg.Body))
	if err != nil {
		logger.Error("Error processing chunk job", "err", err)
		queue.HandleProcessingError(ch, msg)
		return
	}

	if err := msg.Ack(false); err != nil {
		logger.Error("Failed to ack message", "err", err)
	}
	logger.Info(
		"Chunk job processed",
		"duration", time.Since(startTime).Round(time.Millisecond).String(),
	)
}

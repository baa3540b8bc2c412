package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rabbitmq/amqp091-go"

	"github.com/openrepurpose/netprox/pkg/common"
	"github.com/openrepurpose/netprox/pkg/runner"
)

func marshalJob(t *testing.T, job ChunkJob) string {
	t.Helper()
	body, err := json.Marshal(job)
	if err != nil {
		t.Fatal(err)
	}
	return string(body)
}

func TestPublishRunRetriesTransientFailures(t *testing.T) {
	orig := publishJob
	defer func() { publishJob = orig }()

	attempts := 0
	publishJob = func(_ *amqp091.Channel, _ string, _ []byte) error {
		attempts++
		if attempts == 1 {
			return errors.New("connection reset")
		}
		return nil
	}

	params := runner.Params{RunID: "r1", ChunkSize: 10, OutDir: t.TempDir()}
	chunks, err := PublishRun(nil, params, 25)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chunks != 3 {
		t.Fatalf("unexpected chunk count: got %d, want 3", chunks)
	}
	// 3 chunks plus one retried first attempt.
	if attempts != 4 {
		t.Fatalf("unexpected publish attempts: got %d, want 4", attempts)
	}
}

func TestPublishRunGivesUpAfterRetries(t *testing.T) {
	orig := publishJob
	defer func() { publishJob = orig }()

	wantErr := errors.New("broker unavailable")
	attempts := 0
	publishJob = func(_ *amqp091.Channel, _ string, _ []byte) error {
		attempts++
		return wantErr
	}

	params := runner.Params{RunID: "r1", ChunkSize: 10, OutDir: t.TempDir()}
	_, err := PublishRun(nil, params, 25)
	if !errors.Is(err, wantErr) {
		t.Fatalf("unexpected error: got %v, want %v", err, wantErr)
	}
	if attempts != publishRetries {
		t.Fatalf("unexpected publish attempts: got %d, want %d", attempts, publishRetries)
	}
}

func TestProcessChunkMessageMalformedBody(t *testing.T) {
	err := ProcessChunkMessage(context.Background(), nil, 100, "{not json")
	if err == nil {
		t.Fatal("expected error for malformed body")
	}
}

func TestProcessChunkMessageOffsetValidation(t *testing.T) {
	tests := []struct {
		name string
		job  ChunkJob
	}{
		{"negative start", ChunkJob{Start: -1, End: 5}},
		{"end before start", ChunkJob{Start: 5, End: 3}},
		{"end beyond candidates", ChunkJob{Start: 95, End: 105}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ProcessChunkMessage(context.Background(), nil, 100, marshalJob(t, tt.job))
			if err == nil {
				t.Fatal("expected offset validation error")
			}
		})
	}
}

func TestProcessChunkMessageSkipsCompletedChunk(t *testing.T) {
	dir := t.TempDir()
	if err := runner.WriteChunkCSV(runner.ChunkPath(dir, 3), []common.ScoredPair{}); err != nil {
		t.Fatal(err)
	}

	job := ChunkJob{RunID: "r1", Chunk: 3, Start: 30, End: 40, OutDir: dir}
	// The runner is never touched when the chunk file already exists.
	if err := ProcessChunkMessage(context.Background(), nil, 100, marshalJob(t, job)); err != nil {
		t.Fatalf("expected idempotent skip, got %v", err)
	}
}

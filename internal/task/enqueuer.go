package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/daracheol/voxscribe/internal/events"
)

// taskEnqueuer is the slice of asynq.Client the enqueuer needs, split out
// so tests can run without Redis.
type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer turns task request events emitted by the bot service into queue
// submissions. It implements events.EventHandler.
type Enqueuer struct {
	client taskEnqueuer
	logger *slog.Logger
}

// NewEnqueuer creates an Enqueuer backed by the given asynq client.
func NewEnqueuer(client *asynq.Client, logger *slog.Logger) *Enqueuer {
	return newEnqueuer(client, logger)
}

func newEnqueuer(client taskEnqueuer, logger *slog.Logger) *Enqueuer {
	return &Enqueuer{
		client: client,
		logger: logger.With("component", "task_enqueuer"),
	}
}

// HandleEvent submits the event's task to the queue.
func (e *Enqueuer) HandleEvent(ctx context.Context, event *events.TaskRequestEvent) error {
	switch event.Type {
	case TypeTranscriptionProcess:
		var payload ProcessMediaPayload
		if err := event.UnmarshalPayload(&payload); err != nil {
			return fmt.Errorf("failed to decode task payload: %w", err)
		}
		t, err := NewProcessMediaTask(payload)
		if err != nil {
			return err
		}
		info, err := e.client.EnqueueContext(ctx, t)
		if err != nil {
			return fmt.Errorf("failed to enqueue task: %w", err)
		}
		e.logger.InfoContext(ctx, "enqueued transcription task",
			"task_id", info.ID,
			"queue", info.Queue,
			"sender_id", payload.SenderID,
			"media_type", payload.MediaType)
		return nil
	default:
		return fmt.Errorf("unknown task type: %s", event.Type)
	}
}

package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/markato-labs/markato/internal/notifications"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskNotifyDeliver delivers one user notification.
	TaskNotifyDeliver = "notify:deliver"
)

// NotifyDeliverPayload describes a single notification delivery.
type NotifyDeliverPayload struct {
	UserID    string `json:"user_id"`
	Type      string `json:"type"`
	Message   string `json:"message"`
	Recipient string `json:"recipient,omitempty"`
}

// NewNotifyDeliverTask constructs an Asynq task.
func NewNotifyDeliverTask(payload NotifyDeliverPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotifyDeliver, data, asynq.Queue(QueueDefault)), nil
}

// NewNotifyDeliverHandler processes TaskNotifyDeliver tasks: it stores
// the in-app notification row and performs the outbound delivery.
func NewNotifyDeliverHandler(logger *slog.Logger, repo notifications.Repository) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload NotifyDeliverPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		err := repo.Create(ctx, notifications.Notification{
			ID:      uuid.NewString(),
			UserID:  payload.UserID,
			Type:    payload.Type,
			Message: payload.Message,
		})
		if err != nil {
			return err
		}
		// Placeholder: hand off to the email/SMS provider once one is
		// provisioned.
		logger.Info("notification delivered",
			slog.String("user_id", payload.UserID),
			slog.String("type", payload.Type))
		return nil
	}
}

package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oakmont-tuition/omt-api/internal/models"
	"github.com/oakmont-tuition/omt-api/pkg/jobs"
)

// NotificationSender delivers one notification to its recipient.
type NotificationSender interface {
	Send(ctx context.Context, notification models.Notification) error
}

// LogSender records notifications to the application log instead of an
// outbound channel. Used in development and as the default when no mail
// transport is configured.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender builds a log-only sender.
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

// Send logs the notification.
func (s *LogSender) Send(_ context.Context, notification models.Notification) error {
	s.logger.Info("notification dispatched",
		zap.String("kind", string(notification.Kind)),
		zap.String("recipient", notification.Recipient),
		zap.String("subject", notification.Subject))
	return nil
}

// NotificationService fans notifications out through the background queue.
// Enqueue failures are logged and dropped: notifications never block or
// fail the operation that produced them.
type NotificationService struct {
	queue  jobDispatcher
	logger *zap.Logger
}

// NewNotificationService creates a notification service backed by a queue.
func NewNotificationService(queue jobDispatcher, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{queue: queue, logger: logger}
}

// Notify enqueues a notification for asynchronous delivery.
func (s *NotificationService) Notify(_ context.Context, notification models.Notification) {
	if s.queue == nil {
		return
	}
	err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    string(notification.Kind),
		Payload: notification,
	})
	if err != nil {
		s.logger.Warn("failed to enqueue notification",
			zap.String("kind", string(notification.Kind)),
			zap.String("recipient", notification.Recipient),
			zap.Error(err))
	}
}

// NotificationWorker bridges queue jobs to a sender.
type NotificationWorker struct {
	sender NotificationSender
	logger *zap.Logger
}

// NewNotificationWorker constructs a worker.
func NewNotificationWorker(sender NotificationSender, logger *zap.Logger) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{sender: sender, logger: logger}
}

// Handle delivers a queued notification.
func (w *NotificationWorker) Handle(ctx context.Context, job jobs.Job) error {
	notification, ok := job.Payload.(models.Notification)
	if !ok {
		w.logger.Error("unexpected notification payload type", zap.String("job_id", job.ID))
		return nil
	}
	return w.sender.Send(ctx, notification)
}

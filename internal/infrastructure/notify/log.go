package notify

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LogNotifier "shows" notifications by writing them to the log. It is the
// platform used when no push gateway is configured.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) RequestPermission(context.Context) (bool, error) {
	return true, nil
}

func (n *LogNotifier) Show(_ context.Context, title, body string, data map[string]string) (string, error) {
	id := uuid.NewString()
	n.logger.Info("notification",
		zap.String("notification_id", id),
		zap.String("title", title),
		zap.String("body", body),
		zap.Any("data", data))
	return id, nil
}

package worker

import (
	"github.com/spec-kit/routing-engine/internal/events"
	"github.com/spec-kit/routing-engine/internal/service"
)

// StartEventWorkers registers the post-commit event subscribers: the
// notification log and, when configured, the Redis fan-out.
func StartEventWorkers(dispatcher events.Dispatcher, notifications *service.NotificationService, publisher *events.RedisPublisher) {
	if dispatcher == nil {
		return
	}
	if notifications != nil {
		notifications.RegisterHandlers()
	}
	publisher.Attach(dispatcher)
}

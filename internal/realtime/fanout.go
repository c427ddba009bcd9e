package realtime

import (
	"context"

	"github.com/yukikurage/edu-project-api/internal/logger"
	"go.uber.org/zap"
)

// Fanout publishes to a primary publisher and copies every event to mirrors.
// Only the primary's error is returned.
type Fanout struct {
	primary Publisher
	mirrors []Publisher
	logger  *logger.Logger
}

// NewFanout creates a new Fanout
func NewFanout(log *logger.Logger, primary Publisher, mirrors ...Publisher) *Fanout {
	return &Fanout{primary: primary, mirrors: mirrors, logger: log}
}

// PublishToUser publishes to the primary, then to each mirror
func (f *Fanout) PublishToUser(ctx context.Context, userID uint64, event string, payload interface{}) error {
	err := f.primary.PublishToUser(ctx, userID, event, payload)

	for _, mirror := range f.mirrors {
		if mirrorErr := mirror.PublishToUser(ctx, userID, event, payload); mirrorErr != nil {
			f.logger.Warn("Event mirror failed",
				zap.Uint64("user_id", userID),
				zap.String("event", event),
				zap.Error(mirrorErr),
			)
		}
	}

	return err
}

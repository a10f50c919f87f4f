package realtime

import (
	"context"
	"errors"

	"kopikita-be/internal/logger"

	"go.uber.org/zap"
)

type Publisher interface {
	Publish(ctx context.Context, channel, event string, payload any) error
}

type namedPublisher struct {
	name string
	pub  Publisher
}

// FanoutPublisher hands every event to each target in turn. A failing target
// does not stop the others.
type FanoutPublisher struct {
	targets []namedPublisher
}

func NewFanoutPublisher() *FanoutPublisher {
	return &FanoutPublisher{}
}

func (f *FanoutPublisher) Add(name string, p Publisher) *FanoutPublisher {
	if p != nil {
		f.targets = append(f.targets, namedPublisher{name: name, pub: p})
	}
	return f
}

func (f *FanoutPublisher) Publish(ctx context.Context, channel, event string, payload any) error {
	var errs []error
	for _, t := range f.targets {
		if err := t.pub.Publish(ctx, channel, event, payload); err != nil {
			logger.FromCtx(ctx).Warn("publisher failed",
				zap.String("publisher", t.name),
				zap.String("channel", channel),
				zap.String("event", event),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Package events fans identity events out to the configured sinks.
package events

import (
	"context"
	"errors"
	"log/slog"

	"github.com/your-org/faceid/internal/models"
)

// Publisher delivers an identity event. Delivery is advisory: a failed
// publish never undoes the filesystem change it describes.
type Publisher interface {
	Publish(ctx context.Context, ev models.IdentityEvent) error
}

// Fanout publishes to every sink and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, ev models.IdentityEvent) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, models.IdentityEvent) error { return nil }

// Emit publishes ev and logs a failure instead of returning it.
func Emit(ctx context.Context, p Publisher, ev models.IdentityEvent) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, ev); err != nil {
		slog.Warn("publish identity event",
			"type", ev.Type, "group_id", ev.GroupID, "person_id", ev.PersonID, "error", err)
	}
}

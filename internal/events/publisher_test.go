package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/faceid/internal/models"
)

type recorder struct {
	got []models.IdentityEvent
	err error
}

func (r *recorder) Publish(_ context.Context, ev models.IdentityEvent) error {
	r.got = append(r.got, ev)
	return r.err
}

func TestFanoutPublishesToEverySink(t *testing.T) {
	first := &recorder{err: errors.New("broker down")}
	second := &recorder{}
	ev := models.NewIdentityEvent(models.EventFaceAssigned, "g1")

	err := Fanout{first, nil, second}.Publish(context.Background(), ev)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
	require.Len(t, first.got, 1)
	require.Len(t, second.got, 1)
	assert.Equal(t, ev.ID, second.got[0].ID)
}

func TestEmitSwallowsErrors(t *testing.T) {
	r := &recorder{err: errors.New("boom")}
	Emit(context.Background(), r, models.NewIdentityEvent(models.EventGroupDeleted, "g1"))
	Emit(context.Background(), nil, models.NewIdentityEvent(models.EventGroupDeleted, "g1"))
	assert.Len(t, r.got, 1)
}

func TestDiscard(t *testing.T) {
	assert.NoError(t, Discard{}.Publish(context.Background(), models.IdentityEvent{}))
}

package transport

import (
	"context"

	"github.com/fleetsignal/idsclient/internal/model"
)

// None discards every submission and answers check-ins with an empty
// document. It backs DETSYS_IDS_TELEMETRY=disabled.
type None struct{}

func (None) Checkin(context.Context, *model.Map[any]) (*model.Checkin, error) {
	return model.NewEmptyCheckin(), nil
}

func (None) Submit(context.Context, model.Batch) error {
	return nil
}

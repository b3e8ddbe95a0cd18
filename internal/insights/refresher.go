package insights

import (
	"context"

	"github.com/rs/zerolog"

	"classroll/internal/attendance"
	"classroll/internal/queue"
)

// RecordSource supplies records for a user, or all records for "".
type RecordSource interface {
	Query(userID string) []attendance.Record
}

// Refresher regenerates cached insights when attendance changes.
type Refresher struct {
	Service *Service
	Source  RecordSource
	// Reload, when set, is called before each refresh so a process that
	// does not own the writes sees the latest collection.
	Reload func(ctx context.Context) error
	Log    zerolog.Logger
}

// Run consumes msgs until the channel closes or ctx is done.
func (r *Refresher) Run(ctx context.Context, msgs <-chan queue.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			r.handle(ctx, msg)
		}
	}
}

func (r *Refresher) handle(ctx context.Context, msg queue.Message) {
	if msg.Type != queue.TypeAttendanceMarked {
		return
	}
	userID := string(msg.Body)
	if userID == "" {
		return
	}
	if r.Reload != nil {
		if err := r.Reload(ctx); err != nil {
			r.Log.Warn().Err(err).Msg("Reload before insight refresh failed, using current records")
		}
	}
	r.Service.Refresh(ctx, userID, r.Source.Query(userID))
	r.Log.Debug().Str("user_id", userID).Msg("Insight refreshed")
}

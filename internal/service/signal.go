package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/amirfarid/guardpost/internal/domain"
)

// SignalService fans gate activity out over redis pub/sub so every
// instance's websocket listeners see every transition.
type SignalService struct {
	rdb *redis.Client
}

func NewSignalService(redisClient *redis.Client) *SignalService {
	return &SignalService{
		rdb: redisClient,
	}
}

func channelFor(communityID string) string {
	return "gate:" + communityID
}

func (s *SignalService) Publish(ctx context.Context, event domain.GateEvent) error {

	jsonstr, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = s.rdb.Publish(ctx, channelFor(event.CommunityID), jsonstr).Err()
	if err != nil {
		return err
	}

	return nil
}

// Listen subscribes to one community's gate channel and forwards events
// to output until ctx is cancelled.
func (s *SignalService) Listen(ctx context.Context, communityID string, output chan<- domain.GateEvent) {
	pubsub := s.rdb.Subscribe(ctx, channelFor(communityID))
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var event domain.GateEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				slog.ErrorContext(
					ctx, "Failed to decode gate event",
					slog.String("error", err.Error()),
					slog.String("module", "signal"),
				)
				continue
			}
			select {
			case output <- event:
			case <-ctx.Done():
				return
			}
		}
	}
}

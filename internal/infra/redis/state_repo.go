package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"telegram-shop-bot/internal/domain"
	"telegram-shop-bot/internal/domain/ports/repository"

	"github.com/go-redis/redis/v8"
)

var _ repository.StateRepository = (*StateRepo)(nil)

// StateRepo keeps the per-chat dialog state in Redis, one plain string value
// per chat. Last write wins; there is nothing to merge.
type StateRepo struct {
	client RedisClient
	ttl    time.Duration
}

// NewStateRepo builds the repo. ttl == 0 keeps states forever; an expired or
// missing key just means the user starts over from the main menu.
func NewStateRepo(client RedisClient, ttl time.Duration) *StateRepo {
	return &StateRepo{client: client, ttl: ttl}
}

func (s *StateRepo) stateKey(chatID int64) string {
	return fmt.Sprintf("dialog_state:%d", chatID)
}

func (s *StateRepo) Load(ctx context.Context, chatID int64) (repository.ConversationState, error) {
	val, err := s.client.Get(ctx, s.stateKey(chatID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return repository.StateStart, nil
		}
		return repository.StateStart, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	state := repository.ConversationState(val)
	if !state.Known() {
		return repository.StateStart, nil
	}
	return state, nil
}

func (s *StateRepo) Save(ctx context.Context, chatID int64, state repository.ConversationState) error {
	if err := s.client.Set(ctx, s.stateKey(chatID), string(state), s.ttl); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

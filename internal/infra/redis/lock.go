// File: internal/infra/redis/lock.go
package redis

import (
	"context"
	"fmt"
	"time"

	"telegram-shop-bot/internal/domain"

	"github.com/google/uuid"
)

// TurnLocker serializes turns of a single conversation. Telegram delivers a
// rapid double-tap as two updates that would otherwise race on the same state
// key; the second tap either waits briefly for the lock or gets dropped.
type TurnLocker struct {
	client RedisClient
}

func NewTurnLocker(client RedisClient) *TurnLocker {
	return &TurnLocker{client: client}
}

func turnKey(chatID int64) string {
	return fmt.Sprintf("turn_lock:%d", chatID)
}

func (l *TurnLocker) TryLock(ctx context.Context, chatID int64, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	for i := 0; i < 5; i++ { // 5 tries
		ok, err := l.client.SetNX(ctx, turnKey(chatID), token, ttl)
		if err != nil {
			continue
		}
		if ok {
			return token, nil
		}
		time.Sleep(50 * time.Millisecond) // wait before retrying
	}
	return "", domain.ErrTurnInProgress
}

const luaUnlock = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`

// Unlock releases only if the token still matches, so a turn that outlived
// the lock TTL cannot free somebody else's lock.
func (l *TurnLocker) Unlock(ctx context.Context, chatID int64, token string) error {
	_, err := l.client.Eval(ctx, luaUnlock, []string{turnKey(chatID)}, token)
	return err
}

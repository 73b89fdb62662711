package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"telegram-shop-bot/internal/domain"
	"telegram-shop-bot/internal/domain/model"
	"telegram-shop-bot/internal/domain/ports/repository"
	"telegram-shop-bot/internal/infra/logging"
	"telegram-shop-bot/internal/infra/metrics"
	red "telegram-shop-bot/internal/infra/redis"
	"telegram-shop-bot/internal/usecase"
)

const (
	turnLockTTL = 30 * time.Second
	rateWindow  = time.Minute
)

// failureReply is sent instead of silence when a turn fails, so the user
// knows to retry.
const failureReply = "Что-то пошло не так. Попробуйте ещё раз."

// BotFacade runs the turn pipeline around the dialog machine: rate limit,
// per-conversation lock, state load, advance, state save. The transport
// adapter calls HandleEvent and renders whatever comes back; it never touches
// state itself.
type BotFacade struct {
	dialog    *usecase.DialogUseCase
	states    repository.StateRepository
	locker    *red.TurnLocker
	limiter   *red.RateLimiter
	rateLimit int
	log       *zerolog.Logger
}

func NewBotFacade(dialog *usecase.DialogUseCase, states repository.StateRepository, locker *red.TurnLocker, limiter *red.RateLimiter, rateLimit int, log *zerolog.Logger) *BotFacade {
	return &BotFacade{
		dialog:    dialog,
		states:    states,
		locker:    locker,
		limiter:   limiter,
		rateLimit: rateLimit,
		log:       log,
	}
}

// HandleEvent processes one turn to completion. A turn either fully commits
// (payload returned, next state saved) or fully rolls back: on any failure the
// stored state keeps its pre-turn value and the user gets a generic retry
// message. A nil payload with nil error means the event was ignored.
func (b *BotFacade) HandleEvent(ctx context.Context, ev model.InboundEvent) (*model.RenderPayload, error) {
	ctx = logging.WithChatID(ctx, ev.ChatID)
	ctx = logging.WithTurnID(ctx, uuid.NewString())
	log := logging.With(ctx, b.log)
	started := time.Now()

	if b.limiter != nil {
		ok, err := b.limiter.Allow(ctx, red.ChatTurnKey(ev.ChatID), b.rateLimit, rateWindow)
		if err != nil {
			log.Warn().Err(err).Msg("rate limiter unavailable, letting turn through")
		} else if !ok {
			metrics.TurnDropped("rate_limited")
			return nil, domain.ErrRateLimited
		}
	}

	if b.locker != nil {
		token, err := b.locker.TryLock(ctx, ev.ChatID, turnLockTTL)
		if err != nil {
			metrics.TurnDropped("lock_busy")
			log.Debug().Msg("turn dropped, previous turn still running")
			return nil, err
		}
		defer func() {
			if err := b.locker.Unlock(ctx, ev.ChatID, token); err != nil {
				log.Warn().Err(err).Msg("turn lock release failed")
			}
		}()
	}

	state, err := b.loadState(ctx, ev)
	if err != nil {
		metrics.ObserveTurn("unknown", err, started)
		log.Error().Err(err).Msg("state load failed")
		return model.AckPayload(failureReply), err
	}

	next, payload, err := b.dialog.Advance(ctx, ev.ChatID, state, ev)
	if err != nil {
		// Skip the save: the conversation stays where it was and the next
		// event replays from the pre-turn state. Commerce side effects that
		// already landed stay as they are.
		metrics.ObserveTurn(string(state), err, started)
		log.Error().Err(err).Str("state", string(state)).Msg("turn failed")
		return model.AckPayload(failureReply), err
	}

	if err := b.states.Save(ctx, ev.ChatID, next); err != nil {
		metrics.ObserveTurn(string(state), err, started)
		log.Error().Err(err).Str("state", string(state)).Msg("state save failed")
		return model.AckPayload(failureReply), err
	}

	metrics.ObserveTurn(string(state), nil, started)
	log.Debug().Str("from", string(state)).Str("to", string(next)).Msg("turn committed")
	return payload, nil
}

// loadState resolves the entry state for this turn. "/start" always restarts
// the dialog regardless of what is stored.
func (b *BotFacade) loadState(ctx context.Context, ev model.InboundEvent) (repository.ConversationState, error) {
	if ev.IsStartCommand() {
		return repository.StateStart, nil
	}
	return b.states.Load(ctx, ev.ChatID)
}

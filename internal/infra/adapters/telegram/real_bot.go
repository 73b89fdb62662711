package telegram

import (
	"context"
	"errors"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-shop-bot/internal/application"
	"telegram-shop-bot/internal/config"
	"telegram-shop-bot/internal/domain/model"
)

// RealBotAdapter polls Telegram for updates, normalizes them into inbound
// events for the facade and renders the resulting payloads back through the
// bot API. It owns no conversation state.
type RealBotAdapter struct {
	bot           *tgbotapi.BotAPI
	facade        *application.BotFacade
	log           *zerolog.Logger
	updateWorkers int
	cancelPolling context.CancelFunc
}

func NewRealBotAdapter(cfg *config.BotConfig, facade *application.BotFacade, log *zerolog.Logger) (*RealBotAdapter, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	if facade == nil {
		return nil, errors.New("bot facade is nil")
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 5
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}

	return &RealBotAdapter{
		bot:           bot,
		facade:        facade,
		log:           log,
		updateWorkers: workers,
	}, nil
}

func (r *RealBotAdapter) StartPolling(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := r.bot.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(ctx)
	r.cancelPolling = cancel

	var wg sync.WaitGroup
	updateChan := make(chan tgbotapi.Update, 100)

	for i := 0; i < r.updateWorkers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case up := <-updateChan:
					if err := r.handleUpdate(ctx, up); err != nil {
						r.log.Warn().Err(err).Int("worker", id).Msg("update failed")
					}
				}
			}
		}(i)
	}

	for {
		select {
		case <-ctx.Done():
			close(updateChan)
			wg.Wait()
			return ctx.Err()
		case up := <-updates:
			updateChan <- up
		}
	}
}

func (r *RealBotAdapter) StopPolling() {
	if r.cancelPolling != nil {
		r.cancelPolling()
	}
}

// handleUpdate normalizes one update, runs the turn and renders the result.
// Updates that carry neither text nor a known callback are dropped.
func (r *RealBotAdapter) handleUpdate(ctx context.Context, up tgbotapi.Update) error {
	var (
		ev         model.InboundEvent
		callbackID string
	)
	switch {
	case up.Message != nil && up.Message.Text != "":
		ev = model.TextEvent(up.Message.Chat.ID, up.Message.Text)
	case up.CallbackQuery != nil && up.CallbackQuery.Message != nil:
		callbackID = up.CallbackQuery.ID
		press, ok := model.ParseCallback(up.CallbackQuery.Data)
		if !ok {
			// Malformed token: clear the button spinner, change nothing.
			return r.answerCallback(callbackID, "")
		}
		ev = model.PressEvent(up.CallbackQuery.Message.Chat.ID, press)
	default:
		return nil
	}

	payload, err := r.facade.HandleEvent(ctx, ev)
	if payload == nil {
		// Ignored or dropped turn. Still answer the callback so the client
		// stops showing the button as pending.
		if callbackID != "" {
			return r.answerCallback(callbackID, "")
		}
		return err
	}
	return r.render(ev.ChatID, callbackID, payload)
}

func (r *RealBotAdapter) render(chatID int64, callbackID string, payload *model.RenderPayload) error {
	if callbackID != "" {
		if err := r.answerCallback(callbackID, payload.Toast); err != nil {
			return err
		}
	}

	switch payload.Kind {
	case model.PayloadAck:
		if callbackID == "" && payload.Toast != "" {
			msg := tgbotapi.NewMessage(chatID, payload.Toast)
			_, err := r.bot.Send(msg)
			return err
		}
		return nil
	case model.PayloadText:
		msg := tgbotapi.NewMessage(chatID, payload.Body)
		if kb, ok := markup(payload.Keyboard); ok {
			msg.ReplyMarkup = kb
		}
		_, err := r.bot.Send(msg)
		return err
	case model.PayloadPhoto:
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(payload.ImageURL))
		photo.Caption = payload.Caption
		if kb, ok := markup(payload.Keyboard); ok {
			photo.ReplyMarkup = kb
		}
		_, err := r.bot.Send(photo)
		return err
	}
	return nil
}

func (r *RealBotAdapter) answerCallback(callbackID, toast string) error {
	_, err := r.bot.Request(tgbotapi.NewCallback(callbackID, toast))
	return err
}

func markup(kb model.Keyboard) (tgbotapi.InlineKeyboardMarkup, bool) {
	if len(kb) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		btns := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			btns = append(btns, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
		}
		rows = append(rows, btns)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...), true
}

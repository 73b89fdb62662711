// File: internal/usecase/dialog_uc.go
package usecase

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"telegram-shop-bot/internal/domain"
	"telegram-shop-bot/internal/domain/model"
	"telegram-shop-bot/internal/domain/ports/adapter"
	"telegram-shop-bot/internal/domain/ports/repository"
)

// DialogUseCase advances one conversation by one turn: (state, event) in,
// (next state, render payload) out. It holds no per-conversation data of its
// own; the cart and catalog live in the commerce backend and the state token
// in the state repository, so the machine itself can serve every chat.
//
// Side effects (cart mutations, customer creation) happen eagerly inside
// Advance. When Advance fails the caller must not persist the returned state,
// which keeps the conversation at its pre-turn value; commerce calls that
// already succeeded are not undone.
type DialogUseCase struct {
	commerce adapter.CommerceClient
	log      *zerolog.Logger
}

func NewDialogUseCase(commerce adapter.CommerceClient, log *zerolog.Logger) *DialogUseCase {
	return &DialogUseCase{commerce: commerce, log: log}
}

// Advance runs the transition table. Events a state does not expect are
// ignored: same state back, nil payload, no commerce call.
func (d *DialogUseCase) Advance(ctx context.Context, chatID int64, state repository.ConversationState, ev model.InboundEvent) (repository.ConversationState, *model.RenderPayload, error) {
	switch state {
	case repository.StateStart:
		return d.start(ctx)
	case repository.StateMenu:
		return d.handleMenu(ctx, chatID, ev)
	case repository.StateDescription:
		return d.handleDescription(ctx, chatID, ev)
	case repository.StateCart:
		return d.handleCart(ctx, chatID, ev)
	case repository.StateAwaitEmail:
		return d.awaitEmail(ctx, ev)
	}
	return repository.StateStart, nil, fmt.Errorf("unknown dialog state %q", state)
}

// cartID keys the server-side cart; one cart per conversation.
func cartID(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

func (d *DialogUseCase) start(ctx context.Context) (repository.ConversationState, *model.RenderPayload, error) {
	payload, err := d.menuPayload(ctx, "Пожалуйста, выберите:")
	if err != nil {
		return repository.StateStart, nil, err
	}
	return repository.StateMenu, payload, nil
}

func (d *DialogUseCase) handleMenu(ctx context.Context, chatID int64, ev model.InboundEvent) (repository.ConversationState, *model.RenderPayload, error) {
	if ev.Press == nil {
		return repository.StateMenu, nil, nil
	}
	switch ev.Press.Kind {
	case model.PressCart:
		payload, err := d.cartPayload(ctx, chatID, "")
		if err != nil {
			return repository.StateMenu, nil, err
		}
		return repository.StateCart, payload, nil
	case model.PressItem:
		payload, err := d.productPayload(ctx, ev.Press.ID)
		if err != nil {
			return repository.StateMenu, nil, err
		}
		return repository.StateDescription, payload, nil
	}
	return repository.StateMenu, nil, nil
}

func (d *DialogUseCase) handleDescription(ctx context.Context, chatID int64, ev model.InboundEvent) (repository.ConversationState, *model.RenderPayload, error) {
	if ev.Press == nil {
		// Free text on a product card means nothing; acknowledge silently.
		return repository.StateDescription, model.AckPayload(""), nil
	}
	switch ev.Press.Kind {
	case model.PressCart:
		payload, err := d.cartPayload(ctx, chatID, "")
		if err != nil {
			return repository.StateDescription, nil, err
		}
		return repository.StateCart, payload, nil
	case model.PressReturn:
		payload, err := d.menuPayload(ctx, "Что Вам интересно?")
		if err != nil {
			return repository.StateDescription, nil, err
		}
		return repository.StateMenu, payload, nil
	case model.PressQuantity:
		if err := d.commerce.AddToCart(ctx, cartID(chatID), ev.Press.ID, ev.Press.Quantity); err != nil {
			return repository.StateDescription, nil, err
		}
		d.log.Info().Str("product_id", ev.Press.ID).Int("quantity", ev.Press.Quantity).Msg("added to cart")
		return repository.StateDescription, model.AckPayload("Товар добавлен в корзину"), nil
	}
	return repository.StateDescription, model.AckPayload(""), nil
}

func (d *DialogUseCase) handleCart(ctx context.Context, chatID int64, ev model.InboundEvent) (repository.ConversationState, *model.RenderPayload, error) {
	if ev.Press == nil {
		return repository.StateCart, nil, nil
	}
	switch ev.Press.Kind {
	case model.PressReturn:
		payload, err := d.menuPayload(ctx, "Что Вам интересно?")
		if err != nil {
			return repository.StateCart, nil, err
		}
		return repository.StateMenu, payload, nil
	case model.PressCheckout:
		return repository.StateAwaitEmail, model.TextPayload("Для оплаты введите ваш email:", nil), nil
	case model.PressItem:
		if err := d.commerce.RemoveFromCart(ctx, cartID(chatID), ev.Press.ID); err != nil {
			return repository.StateCart, nil, err
		}
		payload, err := d.cartPayload(ctx, chatID, "Товар удалён из корзины")
		if err != nil {
			return repository.StateCart, nil, err
		}
		return repository.StateCart, payload, nil
	}
	return repository.StateCart, nil, nil
}

func (d *DialogUseCase) awaitEmail(ctx context.Context, ev model.InboundEvent) (repository.ConversationState, *model.RenderPayload, error) {
	if ev.Press != nil || ev.Text == "" {
		return repository.StateAwaitEmail, nil, nil
	}
	email := ev.Text
	if err := d.commerce.CreateCustomer(ctx, email); err != nil {
		return repository.StateAwaitEmail, nil, err
	}
	kb := model.Keyboard{{{Label: "В меню", Data: "return"}}}
	body := fmt.Sprintf("Пользователь с email %s создан", email)
	return repository.StateDescription, model.TextPayload(body, kb), nil
}

// menuPayload lists the whole catalog, one button per product, cart last.
func (d *DialogUseCase) menuPayload(ctx context.Context, prompt string) (*model.RenderPayload, error) {
	products, err := d.commerce.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	kb := make(model.Keyboard, 0, len(products)+1)
	for _, p := range products {
		kb = append(kb, []model.Button{{Label: p.Name, Data: p.ID}})
	}
	kb = append(kb, []model.Button{{Label: "Корзина", Data: "cart"}})
	return model.TextPayload(prompt, kb), nil
}

// productPayload builds the photo card for one product.
func (d *DialogUseCase) productPayload(ctx context.Context, productID string) (*model.RenderPayload, error) {
	product, err := d.commerce.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	priceBook, err := d.commerce.GetPriceBook(ctx)
	if err != nil {
		return nil, err
	}
	cents, err := priceForSKU(priceBook, product.SKU)
	if err != nil {
		return nil, err
	}
	imageURL, err := d.commerce.GetImageURL(ctx, product.MainImagePath)
	if err != nil {
		return nil, err
	}
	stock, err := d.commerce.GetStock(ctx, productID)
	if err != nil {
		return nil, err
	}

	caption := fmt.Sprintf("%s\n\n%s$ за килограмм\n%d кг на складе\n\n%s",
		product.Name, formatDollars(cents), stock, product.Description)

	kb := model.Keyboard{
		{
			{Label: "1 кг", Data: product.ID + ":1"},
			{Label: "5 кг", Data: product.ID + ":5"},
			{Label: "10 кг", Data: product.ID + ":10"},
		},
		{
			{Label: "Назад", Data: "return"},
			{Label: "Корзина", Data: "cart"},
		},
	}
	return model.PhotoPayload(imageURL, caption, kb), nil
}

// cartPayload renders the current cart. toast, when non-empty, is answered as
// an ephemeral notification alongside the message (used after removals).
func (d *DialogUseCase) cartPayload(ctx context.Context, chatID int64, toast string) (*model.RenderPayload, error) {
	lines, total, err := d.commerce.GetCartAndTotal(ctx, cartID(chatID))
	if err != nil {
		return nil, err
	}

	var text string
	if len(lines) == 0 {
		text = "Корзина пуста. Заполните её чем-нибудь."
	} else {
		blocks := make([]string, 0, len(lines)+1)
		for _, l := range lines {
			blocks = append(blocks, fmt.Sprintf("%s\n%s\n%s за кг\n%d кг за %s",
				l.Name, l.Description, l.UnitPrice, l.Quantity, l.LineTotal))
		}
		blocks = append(blocks, "Общая сумма: "+total)
		text = strings.Join(blocks, "\n\n")
	}

	kb := make(model.Keyboard, 0, len(lines)+2)
	for _, l := range lines {
		kb = append(kb, []model.Button{{Label: fmt.Sprintf("Удалить товар '%s'", l.Name), Data: l.ID}})
	}
	kb = append(kb, []model.Button{{Label: "В меню", Data: "return"}})
	if len(lines) > 0 {
		kb = append(kb, []model.Button{{Label: "Оплатить", Data: "checkout"}})
	}

	payload := model.TextPayload(text, kb)
	payload.Toast = toast
	return payload, nil
}

// priceForSKU matches product to price book row by SKU string equality.
// A product without a price row is an upstream data defect, surfaced as a
// failed turn instead of a stale or zero price.
func priceForSKU(entries []model.PriceEntry, sku string) (int, error) {
	for _, e := range entries {
		if e.SKU == sku {
			return e.USDCents, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", domain.ErrPriceNotFound, sku)
}

// formatDollars renders cents as a dollar amount without trailing zeros: 250 -> "2.5".
func formatDollars(cents int) string {
	return strconv.FormatFloat(float64(cents)/100, 'f', -1, 64)
}

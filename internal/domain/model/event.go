package model

import (
	"strconv"
	"strings"
)

// PressKind classifies a parsed callback token. The raw strings attached to
// keyboard buttons ("cart", "return", "checkout", "<id>", "<id>:<qty>") are the
// wire protocol between turns; they are parsed exactly once, at the transport
// boundary, and the dialog machine only ever sees the parsed form.
type PressKind int

const (
	PressCart PressKind = iota
	PressReturn
	PressCheckout
	// PressItem carries a bare opaque id: a product id when pressed on the
	// menu, a cart line id when pressed on the cart view. The current
	// conversation state decides which.
	PressItem
	PressQuantity
)

type ButtonPress struct {
	Kind     PressKind
	ID       string
	Quantity int
}

// InboundEvent is one normalized update from the chat platform: either free
// text (commands included) or a button press, never both.
type InboundEvent struct {
	ChatID int64
	Text   string
	Press  *ButtonPress
}

func TextEvent(chatID int64, text string) InboundEvent {
	return InboundEvent{ChatID: chatID, Text: text}
}

func PressEvent(chatID int64, press ButtonPress) InboundEvent {
	return InboundEvent{ChatID: chatID, Press: &press}
}

func (e InboundEvent) IsStartCommand() bool {
	return e.Press == nil && e.Text == "/start"
}

// ParseCallback maps a raw callback token to its press variant. A token with a
// ':' separator must carry a positive integer quantity; anything else after
// the separator is malformed and reported as (zero value, false) so the
// caller can degrade it to a no-op.
func ParseCallback(data string) (ButtonPress, bool) {
	switch data {
	case "cart":
		return ButtonPress{Kind: PressCart}, true
	case "return":
		return ButtonPress{Kind: PressReturn}, true
	case "checkout":
		return ButtonPress{Kind: PressCheckout}, true
	}
	if id, qty, found := strings.Cut(data, ":"); found {
		n, err := strconv.Atoi(qty)
		if err != nil || n <= 0 || id == "" {
			return ButtonPress{}, false
		}
		return ButtonPress{Kind: PressQuantity, ID: id, Quantity: n}, true
	}
	if data == "" {
		return ButtonPress{}, false
	}
	return ButtonPress{Kind: PressItem, ID: data}, true
}

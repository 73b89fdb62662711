package repository

import "context"

// ConversationState is the single durable value the bot owns per chat.
// Everything else (cart, catalog) is fetched fresh from the commerce backend
// on demand.
type ConversationState string

const (
	StateStart       ConversationState = "START"
	StateMenu        ConversationState = "HANDLE_MENU"
	StateDescription ConversationState = "HANDLE_DESCRIPTION"
	StateCart        ConversationState = "HANDLE_CART"
	StateAwaitEmail  ConversationState = "WAITING_EMAIL"
)

// Known reports whether s is one of the dialog states. Unknown stored values
// (old deployments, manual edits) degrade to StateStart.
func (s ConversationState) Known() bool {
	switch s {
	case StateStart, StateMenu, StateDescription, StateCart, StateAwaitEmail:
		return true
	}
	return false
}

// StateRepository is the port for the per-conversation state token.
// Load must return StateStart for conversations never seen before; Save is
// last-write-wins with no merge semantics.
type StateRepository interface {
	Load(ctx context.Context, chatID int64) (ConversationState, error)
	Save(ctx context.Context, chatID int64, state ConversationState) error
}

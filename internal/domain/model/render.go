package model

// Button is one inline keyboard entry; Data is echoed back verbatim as the
// callback token when the user presses it.
type Button struct {
	Label string
	Data  string
}

// Keyboard is an ordered grid of buttons, outer slice = rows.
type Keyboard [][]Button

// PayloadKind discriminates RenderPayload variants.
type PayloadKind int

const (
	PayloadText PayloadKind = iota
	PayloadPhoto
	PayloadAck
)

// RenderPayload is what one turn tells the transport to show. It is built
// fresh per turn and handed off immediately; nothing retains it.
//
// Text variant: Body + Keyboard. Photo variant: ImageURL + Caption + Keyboard.
// Ack variant: Toast only (an ephemeral callback answer, no new message).
type RenderPayload struct {
	Kind     PayloadKind
	Body     string
	ImageURL string
	Caption  string
	Toast    string
	Keyboard Keyboard
}

func TextPayload(body string, kb Keyboard) *RenderPayload {
	return &RenderPayload{Kind: PayloadText, Body: body, Keyboard: kb}
}

func PhotoPayload(url, caption string, kb Keyboard) *RenderPayload {
	return &RenderPayload{Kind: PayloadPhoto, ImageURL: url, Caption: caption, Keyboard: kb}
}

func AckPayload(toast string) *RenderPayload {
	return &RenderPayload{Kind: PayloadAck, Toast: toast}
}

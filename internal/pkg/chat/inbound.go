package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Inbound message kinds after normalization.
const (
	KindText   = "text"
	KindButton = "button"
)

// ErrNotAMessage is returned for BSP callbacks that are not user messages
// (delivery receipts, read events). Callers acknowledge and drop them.
var ErrNotAMessage = errors.New("chat: callback is not a user message")

// InboundMessage is the normalized shape of one user message: who sent it,
// its BSP identifier for redelivery dedup, and either free text or a button
// token.
type InboundMessage struct {
	MessageID string
	Phone     string
	Name      string
	Kind      string
	Text      string
	ButtonID  string
}

// Token returns the input the state machine matches on: the button token
// for button replies, otherwise the trimmed upper-cased text.
func (m *InboundMessage) Token() string {
	if m.Kind == KindButton {
		return m.ButtonID
	}
	return strings.ToUpper(strings.TrimSpace(m.Text))
}

// RawText returns the user's input as typed, for fields stored verbatim.
func (m *InboundMessage) RawText() string {
	if m.Kind == KindButton {
		return m.ButtonID
	}
	return strings.TrimSpace(m.Text)
}

// ParseInbound normalizes a Gupshup inbound callback body. Text, button and
// list replies all collapse to text-or-button; anything else is
// ErrNotAMessage.
func ParseInbound(payload []byte) (*InboundMessage, error) {
	type rawPayload struct {
		Type    string `json:"type"`
		Payload struct {
			ID      string `json:"id"`
			Source  string `json:"source"`
			Type    string `json:"type"`
			Payload struct {
				Text  string `json:"text"`
				Title string `json:"title"`
				ID    string `json:"id"`
			} `json:"payload"`
			Sender struct {
				Phone string `json:"phone"`
				Name  string `json:"name"`
			} `json:"sender"`
		} `json:"payload"`
	}

	var raw rawPayload
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("chat: malformed inbound payload: %w", err)
	}
	if raw.Type != "message" {
		return nil, ErrNotAMessage
	}

	phone := strings.TrimSpace(raw.Payload.Sender.Phone)
	if phone == "" {
		phone = strings.TrimSpace(raw.Payload.Source)
	}
	if phone == "" {
		return nil, errors.New("chat: inbound message missing sender phone")
	}

	out := &InboundMessage{
		MessageID: strings.TrimSpace(raw.Payload.ID),
		Phone:     phone,
		Name:      strings.TrimSpace(raw.Payload.Sender.Name),
	}

	switch raw.Payload.Type {
	case "text":
		out.Kind = KindText
		out.Text = raw.Payload.Payload.Text
	case "button_reply", "quick_reply", "list_reply":
		out.Kind = KindButton
		out.ButtonID = strings.TrimSpace(raw.Payload.Payload.ID)
		if out.ButtonID == "" {
			// Some reply variants carry only the visible title.
			out.ButtonID = strings.ToUpper(strings.TrimSpace(raw.Payload.Payload.Title))
		}
	default:
		return nil, ErrNotAMessage
	}

	if out.MessageID == "" {
		return nil, errors.New("chat: inbound message missing message id")
	}
	return out, nil
}

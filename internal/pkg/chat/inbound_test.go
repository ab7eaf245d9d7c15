package chat

import (
	"errors"
	"testing"
)

func TestParseInboundText(t *testing.T) {
	payload := `{
		"type": "message",
		"payload": {
			"id": "wamid.001",
			"source": "15551234567",
			"type": "text",
			"payload": {"text": "  mesha "},
			"sender": {"phone": "15551234567", "name": "Asha"}
		}
	}`

	msg, err := ParseInbound([]byte(payload))
	if err != nil {
		t.Fatalf("ParseInbound: %v", err)
	}
	if msg.MessageID != "wamid.001" || msg.Phone != "15551234567" || msg.Name != "Asha" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if msg.Kind != KindText {
		t.Fatalf("Kind = %q", msg.Kind)
	}
	if msg.Token() != "MESHA" {
		t.Fatalf("Token = %q", msg.Token())
	}
	if msg.RawText() != "mesha" {
		t.Fatalf("RawText = %q", msg.RawText())
	}
}

func TestParseInboundButtonReply(t *testing.T) {
	payload := `{
		"type": "message",
		"payload": {
			"id": "wamid.002",
			"type": "button_reply",
			"payload": {"id": "CAT_HEALTH", "title": "Health"},
			"sender": {"phone": "15551234567"}
		}
	}`

	msg, err := ParseInbound([]byte(payload))
	if err != nil {
		t.Fatalf("ParseInbound: %v", err)
	}
	if msg.Kind != KindButton || msg.Token() != "CAT_HEALTH" {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestParseInboundQuickReplyFallsBackToTitle(t *testing.T) {
	payload := `{
		"type": "message",
		"payload": {
			"id": "wamid.003",
			"type": "quick_reply",
			"payload": {"title": "skip"},
			"sender": {"phone": "15551234567"}
		}
	}`

	msg, err := ParseInbound([]byte(payload))
	if err != nil {
		t.Fatalf("ParseInbound: %v", err)
	}
	if msg.Token() != "SKIP" {
		t.Fatalf("Token = %q", msg.Token())
	}
}

func TestParseInboundDropsNonMessages(t *testing.T) {
	for _, payload := range []string{
		`{"type": "message-event", "payload": {"id": "x"}}`,
		`{"type": "message", "payload": {"id": "wamid.004", "type": "image", "sender": {"phone": "1"}}}`,
	} {
		if _, err := ParseInbound([]byte(payload)); !errors.Is(err, ErrNotAMessage) {
			t.Fatalf("payload %s: err = %v, want ErrNotAMessage", payload, err)
		}
	}
}

func TestParseInboundRejectsMissingIdentity(t *testing.T) {
	if _, err := ParseInbound([]byte(`{"type":"message","payload":{"type":"text","payload":{"text":"hi"}}}`)); err == nil {
		t.Fatal("expected error for missing phone")
	}
	if _, err := ParseInbound([]byte(`{"type":"message","payload":{"type":"text","payload":{"text":"hi"},"sender":{"phone":"1"}}}`)); err == nil {
		t.Fatal("expected error for missing message id")
	}
	if _, err := ParseInbound([]byte(`{"type":`)); err == nil {
		t.Fatal("expected error for malformed json")
	}
}

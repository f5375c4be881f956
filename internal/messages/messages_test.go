package messages

import (
	"strings"
	"testing"
)

func TestGetUIMessage(t *testing.T) {
	if got := GetUIMessage("Target", "https://a.example"); got != "Target: https://a.example" {
		t.Fatalf("unexpected message: %q", got)
	}
	if got := GetUIMessage("NoSuchKey"); got != "NoSuchKey" {
		t.Fatalf("unknown keys must echo the id, got %q", got)
	}
}

func TestGetMessageFallback(t *testing.T) {
	msg := GetMessage("POLICY_REJECTED")
	if msg.Title != "URL Not Allowed" || !strings.Contains(msg.Message, "%s") {
		t.Fatalf("unexpected message: %+v", msg)
	}
	unknown := GetMessage("SOMETHING_ELSE")
	if unknown.Title != "Unexpected Error" || unknown.Message != "%s" {
		t.Fatalf("unexpected fallback: %+v", unknown)
	}
}

package push

import (
	"context"
	"testing"
)

func TestNewFCMSenderDisabled(t *testing.T) {
	s, err := NewFCMSender(context.Background(), "", nil)
	if err != nil {
		t.Fatalf("NewFCMSender: %v", err)
	}
	if s != nil {
		t.Fatal("expected nil sender when credentials file is empty")
	}
}

func TestNilSenderIsNoOp(t *testing.T) {
	var s *FCMSender

	sent, failed, err := s.SendBatch(context.Background(), []Payload{
		{Token: "t", Title: "제목", Body: "본문"},
	})
	if err != nil {
		t.Fatalf("SendBatch on nil sender: %v", err)
	}
	if sent != 0 || failed != 0 {
		t.Errorf("sent=%d failed=%d, want 0/0", sent, failed)
	}
}

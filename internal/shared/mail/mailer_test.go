package mail

import "testing"

func TestSendSkipsEmptyRecipients(t *testing.T) {
	m := NewSMTPMailer("localhost", 1025, "", "", "noreply@test.com")

	// 收件人全为空时直接返回，不触发 SMTP 连接
	msg := Message{
		To:      []string{"", "   ", "\t"},
		Subject: "ignored",
		Body:    "ignored",
	}
	if err := m.Send(msg); err != nil {
		t.Fatalf("send with no recipients should be a no-op, got %v", err)
	}

	if err := m.Send(Message{Subject: "empty"}); err != nil {
		t.Fatalf("send with nil recipient list should be a no-op, got %v", err)
	}
}

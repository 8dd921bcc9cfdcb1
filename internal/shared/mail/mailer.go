package mail

import (
	"fmt"
	"net/smtp"
	"strings"
)

// =============================================================================
// 邮件服务 — 通过 SMTP 中继发送通知邮件
// 发送失败只记日志不回传给业务流程，通知属于尽力而为
// =============================================================================

// Message 一封待发送的邮件
type Message struct {
	To      []string
	Subject string
	Body    string
}

// Mailer 邮件发送接口，调用方异步触发，失败不影响主流程
type Mailer interface {
	Send(msg Message) error
}

// SMTPMailer 基于标准 SMTP 协议的发送实现
type SMTPMailer struct {
	host     string
	port     int
	username string
	password string
	from     string
}

// NewSMTPMailer 创建邮件客户端
// username 为空时走免认证中继（本地 mailhog 等开发环境常见）
func NewSMTPMailer(host string, port int, username, password, from string) *SMTPMailer {
	return &SMTPMailer{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
	}
}

// Send 发送一封邮件，空收件地址会被跳过
func (m *SMTPMailer) Send(msg Message) error {
	var to []string
	for _, addr := range msg.To {
		if strings.TrimSpace(addr) != "" {
			to = append(to, addr)
		}
	}
	if len(to) == 0 {
		return nil
	}

	// 构造邮件头和正文
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)

	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}
	if err := smtp.SendMail(addr, auth, m.from, to, []byte(b.String())); err != nil {
		return fmt.Errorf("smtp send failed: %w", err)
	}
	return nil
}

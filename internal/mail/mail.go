// Package mail renders and sends the customer "order shipped" email.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"text/template"
)

const TemplateOrderShipped = "order_shipped"

type Message struct {
	To, ToName string
	Subject    string
	Body       string
}

type Sender interface {
	Send(ctx context.Context, m Message) error
}

type ShippedVars struct {
	OrderID      string
	Store        string
	CustomerName string
}

var shippedTmpl = template.Must(template.New(TemplateOrderShipped).Parse(
	`Hello {{if .CustomerName}}{{.CustomerName}}{{else}}there{{end}},

Good news: your order #{{.OrderID}} from {{.Store}} has shipped.

Thank you for shopping with us.
`))

// RenderShipped builds the shipped email for one customer.
func RenderShipped(to, toName string, v ShippedVars) (Message, error) {
	var buf bytes.Buffer
	if err := shippedTmpl.Execute(&buf, v); err != nil {
		return Message{}, fmt.Errorf("render %s: %w", TemplateOrderShipped, err)
	}
	return Message{
		To:      to,
		ToName:  toName,
		Subject: fmt.Sprintf("Your order #%s has shipped", v.OrderID),
		Body:    buf.String(),
	}, nil
}

// SMTPSender delivers through a plain SMTP relay, with PLAIN auth when a
// username is configured.
type SMTPSender struct {
	Addr     string
	Username string
	Password string
	From     string

	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func (s *SMTPSender) Send(ctx context.Context, m Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.ContainsAny(m.To, "\r\n") || strings.ContainsAny(m.Subject, "\r\n") {
		return fmt.Errorf("refusing header with line break")
	}
	var auth smtp.Auth
	if s.Username != "" {
		host := s.Addr
		if i := strings.LastIndex(host, ":"); i >= 0 {
			host = host[:i]
		}
		auth = smtp.PlainAuth("", s.Username, s.Password, host)
	}
	send := s.send
	if send == nil {
		send = smtp.SendMail
	}
	return send(s.Addr, auth, s.From, []string{m.To}, s.format(m))
}

func (s *SMTPSender) format(m Message) []byte {
	to := m.To
	if m.ToName != "" {
		to = fmt.Sprintf("%q <%s>", m.ToName, m.To)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.From)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", m.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(m.Body, "\n", "\r\n"))
	return []byte(b.String())
}

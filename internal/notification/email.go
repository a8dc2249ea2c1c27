package notification

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"minem-be/internal/logger"

	"go.uber.org/zap"
)

type emailSender struct {
	host     string
	port     string
	username string
	password string
	from     string
}

func NewEmailSender(host, port, username, password, from string) Sender {
	if host == "" {
		logger.L().Warn("SMTP host is empty, notifications will be dropped")
		return NopSender{}
	}

	return &emailSender{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
	}
}

func (s *emailSender) SendOrderConfirmation(ctx context.Context, o Order) error {
	subject := fmt.Sprintf("Order %s has been paid", shortOrderID(o.ID))
	body := fmt.Sprintf(
		"Hello %s,\n\nWe received your payment of %.2f for order %s.\nWe are preparing your items for shipment.\n",
		o.CustomerName, o.TotalAmount, o.ID,
	)

	return s.send(ctx, o.CustomerEmail, subject, body)
}

func (s *emailSender) SendOrderCanceled(ctx context.Context, o Order, reason string) error {
	subject := fmt.Sprintf("Order %s has been canceled", shortOrderID(o.ID))
	body := fmt.Sprintf(
		"Hello %s,\n\nYour order %s was canceled.\nReason: %s\n\nReserved items were returned to stock.\n",
		o.CustomerName, o.ID, reason,
	)

	return s.send(ctx, o.CustomerEmail, subject, body)
}

func (s *emailSender) send(ctx context.Context, to, subject, body string) error {
	if to == "" {
		return fmt.Errorf("recipient email is empty")
	}

	msg := strings.Join([]string{
		"From: " + s.from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		body,
	}, "\r\n")

	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	addr := s.host + ":" + s.port
	if err := smtp.SendMail(addr, auth, s.from, []string{to}, []byte(msg)); err != nil {
		logger.FromCtx(ctx).Error("failed to send email",
			zap.String("to", to),
			zap.String("subject", subject),
			zap.Error(err),
		)
		return err
	}

	logger.FromCtx(ctx).Info("email sent",
		zap.String("to", to),
		zap.String("subject", subject),
	)
	return nil
}

func shortOrderID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

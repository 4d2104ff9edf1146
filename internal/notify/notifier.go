package notify

import (
	"fmt"
	"io"

	"gopkg.in/gomail.v2"

	"ramen-orders/internal/config"
	"ramen-orders/internal/logger"
	"ramen-orders/internal/models"
	"ramen-orders/internal/status"
)

// Notifier is the outbound-mail port. The transition service only sees this
// interface, so it can be tested with a fake and never blocks on delivery.
type Notifier interface {
	OrderConfirmed(order *models.Order) error
	StatusChanged(order *models.Order) error
	OutForDelivery(order *models.Order, driver *models.Driver, etaMinutes int) error
	ReadyForPickup(order *models.Order, pickupAddress string, qrPNG []byte) error
	FeedbackRequest(order *models.Order) error
	AbandonedCart(cart models.Cart, recoveryCode string) error
}

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Mailer sends templated emails over SMTP. When no credentials are
// configured it logs and skips instead of failing, so order transitions are
// never coupled to mail delivery.
type Mailer struct {
	cfg    config.EmailConfig
	dialer sender
	logger *logger.Logger
}

func NewMailer(cfg config.EmailConfig, log *logger.Logger) *Mailer {
	m := &Mailer{cfg: cfg, logger: log}
	if cfg.Configured() {
		m.dialer = gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
	} else {
		log.Warn("NOTIFY", "SMTP not configured, notifications will be logged and skipped")
	}
	return m
}

func (m *Mailer) send(to, subject, htmlBody string, attachQR []byte) error {
	if m.dialer == nil {
		m.logger.LogNotify("SKIPPED", to, subject)
		return nil
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.FromAddress)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)
	if len(attachQR) > 0 {
		msg.Embed("pickup-qr.png", gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(attachQR)
			return err
		}))
	}

	if err := m.dialer.DialAndSend(msg); err != nil {
		m.logger.Error("NOTIFY", fmt.Sprintf("Failed to send %q to %s: %v", subject, to, err))
		return err
	}
	m.logger.LogNotify("SENT", to, subject)
	return nil
}

func (m *Mailer) OrderConfirmed(order *models.Order) error {
	body, err := renderConfirmation(order)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("Order %s confirmed - Menya Kotetsu", order.OrderNumber)
	return m.send(order.CustomerEmail, subject, body, nil)
}

func (m *Mailer) StatusChanged(order *models.Order) error {
	body, err := renderStatusChange(order)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("Order %s: %s", order.OrderNumber, status.Message(order.Status))
	return m.send(order.CustomerEmail, subject, body, nil)
}

func (m *Mailer) OutForDelivery(order *models.Order, driver *models.Driver, etaMinutes int) error {
	body, err := renderOutForDelivery(order, driver, etaMinutes)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("Order %s is on its way", order.OrderNumber)
	return m.send(order.CustomerEmail, subject, body, nil)
}

func (m *Mailer) ReadyForPickup(order *models.Order, pickupAddress string, qrPNG []byte) error {
	body, err := renderReadyForPickup(order, pickupAddress)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("Order %s is ready for pickup", order.OrderNumber)
	return m.send(order.CustomerEmail, subject, body, qrPNG)
}

func (m *Mailer) FeedbackRequest(order *models.Order) error {
	body, err := renderFeedbackRequest(order)
	if err != nil {
		return err
	}
	subject := "How was your ramen?"
	return m.send(order.CustomerEmail, subject, body, nil)
}

func (m *Mailer) AbandonedCart(cart models.Cart, recoveryCode string) error {
	body, err := renderAbandonedCart(cart, recoveryCode)
	if err != nil {
		return err
	}
	subject := "Your ramen is waiting"
	return m.send(cart.Email, subject, body, nil)
}

// NoopNotifier satisfies Notifier without side effects; used in tests.
type NoopNotifier struct{}

func (NoopNotifier) OrderConfirmed(*models.Order) error { return nil }
func (NoopNotifier) StatusChanged(*models.Order) error  { return nil }
func (NoopNotifier) OutForDelivery(*models.Order, *models.Driver, int) error {
	return nil
}
func (NoopNotifier) ReadyForPickup(*models.Order, string, []byte) error { return nil }
func (NoopNotifier) FeedbackRequest(*models.Order) error                { return nil }
func (NoopNotifier) AbandonedCart(models.Cart, string) error            { return nil }

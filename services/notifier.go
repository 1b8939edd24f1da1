package services

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/douxbatter/storefront/config"
	"github.com/douxbatter/storefront/models"
	"github.com/douxbatter/storefront/utils"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

const mailTimeout = 15 * time.Second

// mailSender is the part of gomail.Dialer we use.
type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailNotifier mails the shop when an order has been paid. Without SMTP
// settings it only logs.
type EmailNotifier struct {
	dialer  mailSender
	from    string
	to      string
	timeout time.Duration
}

func NewEmailNotifier(cfg config.MailConfig) *EmailNotifier {
	n := &EmailNotifier{from: cfg.FromEmail, to: cfg.AdminEmail, timeout: mailTimeout}
	if !cfg.Enabled() {
		utils.InfoLogger.Info("SMTP not configured, payment e-mails are disabled")
		return n
	}
	n.dialer = gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	return n
}

func (n *EmailNotifier) OrderPaid(ctx context.Context, order *models.Order) error {
	if n.dialer == nil {
		utils.InfoLogger.WithField("reference", order.ReferenceNumber).Info("Payment e-mail skipped, SMTP disabled")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", n.to)
	m.SetHeader("Subject", fmt.Sprintf("Payment received: order %s (%s)", order.ReferenceNumber, utils.FormatAED(order.Total)))
	m.SetBody("text/plain", OrderMessage(order))
	m.AddAlternative("text/html", orderHTML(order))

	if err := n.send(ctx, m); err != nil {
		return fmt.Errorf("send payment e-mail: %w", err)
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"reference": order.ReferenceNumber,
		"to":        n.to,
	}).Info("Payment e-mail sent")
	return nil
}

// send gives up once ctx is done or the timeout passes. gomail has no
// cancellation, so an abandoned send finishes in the background.
func (n *EmailNotifier) send(ctx context.Context, m *gomail.Message) error {
	timeout := n.timeout
	if timeout <= 0 {
		timeout = mailTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- n.dialer.DialAndSend(m) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func orderHTML(order *models.Order) string {
	var b strings.Builder
	esc := html.EscapeString

	fmt.Fprintf(&b, "<h2>Order %s has been paid</h2>", esc(order.ReferenceNumber))
	fmt.Fprintf(&b, "<p><strong>%s</strong><br>%s<br>%s, %s</p>",
		esc(order.CustomerName), esc(order.CustomerPhone), esc(order.DeliveryAddress), esc(order.City))

	delivery := "Standard delivery"
	if order.IsExpress() {
		delivery = "Express delivery"
	}
	fmt.Fprintf(&b, "<p>%s on %s", delivery, esc(displayDate(order.DeliveryDate)))
	if order.DeliveryTimeSlot != nil {
		fmt.Fprintf(&b, ", %s", esc(*order.DeliveryTimeSlot))
	}
	b.WriteString("</p><ul>")

	for _, item := range order.Items {
		fmt.Fprintf(&b, "<li>%s (%s) x%d: %s", esc(item.ProductName), esc(item.VariantName), item.Quantity, utils.FormatAED(item.TotalPrice))
		if len(item.SelectedAddOns) > 0 {
			fmt.Fprintf(&b, "<br><small>Sauces: %s</small>", esc(strings.Join(item.SelectedAddOns, ", ")))
		}
		b.WriteString("</li>")
	}
	fmt.Fprintf(&b, "</ul><p>Total: <strong>%s</strong></p>", utils.FormatAED(order.Total))
	return b.String()
}

package services

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/douxbatter/storefront/models"
	"github.com/douxbatter/storefront/utils"
)

// WhatsAppLinker builds wa.me deep links carrying an order summary, so the
// customer can forward their order to the shop in one tap.
type WhatsAppLinker struct {
	number string
}

func NewWhatsAppLinker(number string) *WhatsAppLinker {
	return &WhatsAppLinker{number: strings.TrimPrefix(number, "+")}
}

func (w *WhatsAppLinker) OrderURL(order *models.Order) string {
	return w.link(OrderMessage(order))
}

func (w *WhatsAppLinker) SupportURL(reference string) string {
	return w.link(fmt.Sprintf("Hi! I have a question about my order #%s", reference))
}

func (w *WhatsAppLinker) link(text string) string {
	// wa.me wants %20, not '+', for spaces.
	return fmt.Sprintf("https://wa.me/%s?text=%s", w.number, strings.ReplaceAll(url.QueryEscape(text), "+", "%20"))
}

// OrderMessage is the plain-text order summary shared with the shop.
func OrderMessage(order *models.Order) string {
	var b strings.Builder

	fmt.Fprintf(&b, "*New Order from DouxBatter*\n\n*Order #:* %s\n\n", order.ReferenceNumber)

	b.WriteString("*Customer Details:*\n")
	fmt.Fprintf(&b, "Name: %s\nPhone: %s\n", order.CustomerName, order.CustomerPhone)
	if order.CustomerEmail != nil {
		fmt.Fprintf(&b, "Email: %s\n", *order.CustomerEmail)
	}

	b.WriteString("\n*Delivery Details:*\n")
	fmt.Fprintf(&b, "City: %s\nAddress: %s\n", order.City, order.DeliveryAddress)
	if order.IsExpress() {
		b.WriteString("Type: Express Delivery\n")
	} else {
		b.WriteString("Type: Standard Delivery\n")
	}
	fmt.Fprintf(&b, "Date: %s\n", displayDate(order.DeliveryDate))
	if order.DeliveryTimeSlot != nil {
		fmt.Fprintf(&b, "Time Slot: %s\n", *order.DeliveryTimeSlot)
	}

	b.WriteString("\n*Order Items:*\n")
	for _, item := range order.Items {
		fmt.Fprintf(&b, "- %s (%s) x%d - %s\n", item.ProductName, item.VariantName, item.Quantity, utils.FormatAED(item.TotalPrice))
		if len(item.SelectedAddOns) > 0 {
			fmt.Fprintf(&b, "  Sauces: %s\n", strings.Join(item.SelectedAddOns, ", "))
		}
	}

	fmt.Fprintf(&b, "\n*Subtotal:* %s\n", utils.FormatAED(order.Subtotal))
	fmt.Fprintf(&b, "*Delivery:* %s\n", utils.FormatAED(order.DeliveryFee))
	fmt.Fprintf(&b, "*Total:* %s\n\n", utils.FormatAED(order.Total))
	fmt.Fprintf(&b, "*Payment Status:* %s", strings.ToUpper(order.PaymentStatus))

	return b.String()
}

func displayDate(day string) string {
	t, err := time.Parse(dateLayout, day)
	if err != nil {
		return day
	}
	return t.Format("Monday, 2 January 2006")
}

package services

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/douxbatter/storefront/models"
	"github.com/douxbatter/storefront/utils"
	"github.com/go-pdf/fpdf"
)

// PackingSlipRenderer prints an A4 slip the kitchen packs an order from.
type PackingSlipRenderer struct {
	shopName string
	loc      *time.Location
}

func NewPackingSlipRenderer(shopName string, loc *time.Location) *PackingSlipRenderer {
	if loc == nil {
		loc = time.UTC
	}
	return &PackingSlipRenderer{shopName: shopName, loc: loc}
}

func (r *PackingSlipRenderer) Render(order *models.Order) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Packing slip %s", order.ReferenceNumber), true)
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, tr(r.shopName), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 6, "Packing slip", "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 7, "Order "+order.ReferenceNumber, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 5, "Placed "+order.CreatedAt.In(r.loc).Format("2 Jan 2006 15:04"), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, fmt.Sprintf("Status: %s / payment %s", order.Status, order.PaymentStatus), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	section := func(title string) {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(0, 7, title, "B", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.Ln(1)
	}

	section("Deliver to")
	pdf.CellFormat(0, 5, tr(order.CustomerName), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, order.CustomerPhone, "", 1, "L", false, 0, "")
	pdf.MultiCell(0, 5, tr(order.DeliveryAddress+", "+order.City), "", "L", false)

	delivery := "Standard delivery, " + displayDate(order.DeliveryDate)
	if order.IsExpress() {
		delivery = "EXPRESS delivery, " + displayDate(order.DeliveryDate)
		if order.DeliveryTimeSlot != nil {
			delivery += ", " + *order.DeliveryTimeSlot
		}
	}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(0, 6, delivery, "", 1, "L", false, 0, "")
	pdf.Ln(4)

	section("Items")
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(110, 6, "Item", "B", 0, "L", false, 0, "")
	pdf.CellFormat(20, 6, "Qty", "B", 0, "C", false, 0, "")
	pdf.CellFormat(50, 6, "Amount", "B", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)

	for _, item := range order.Items {
		pdf.CellFormat(110, 6, tr(fmt.Sprintf("%s (%s)", item.ProductName, item.VariantName)), "", 0, "L", false, 0, "")
		pdf.CellFormat(20, 6, fmt.Sprint(item.Quantity), "", 0, "C", false, 0, "")
		pdf.CellFormat(50, 6, utils.FormatAED(item.TotalPrice), "", 1, "R", false, 0, "")
		if len(item.SelectedAddOns) > 0 {
			pdf.SetFont("Helvetica", "I", 9)
			pdf.CellFormat(0, 5, tr("   Sauces: "+strings.Join(item.SelectedAddOns, ", ")), "", 1, "L", false, 0, "")
			pdf.SetFont("Helvetica", "", 10)
		}
	}
	pdf.Ln(2)

	totals := [][2]string{
		{"Subtotal", utils.FormatAED(order.Subtotal)},
		{"Delivery", utils.FormatAED(order.DeliveryFee)},
		{"Total", utils.FormatAED(order.Total)},
	}
	for i, t := range totals {
		if i == len(totals)-1 {
			pdf.SetFont("Helvetica", "B", 11)
		}
		pdf.CellFormat(130, 6, t[0], "", 0, "R", false, 0, "")
		pdf.CellFormat(50, 6, t[1], "", 1, "R", false, 0, "")
	}

	if order.AdminNotes != nil && *order.AdminNotes != "" {
		pdf.Ln(4)
		section("Notes")
		pdf.MultiCell(0, 5, tr(*order.AdminNotes), "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render packing slip %s: %w", order.ReferenceNumber, err)
	}
	return buf.Bytes(), nil
}

package receipt

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/signintech/gopdf"

	"ramen-orders/internal/models"
)

// Generator renders order receipts as A4 PDFs.
type Generator struct {
	fontPath string
}

func NewGenerator(fontPath string) *Generator {
	if fontPath == "" {
		fontPath = "./fonts/DejaVuSans.ttf"
	}
	return &Generator{fontPath: fontPath}
}

// Generate renders a receipt for the order. qrCode may be nil; when present
// (pickup orders) it is drawn below the totals.
func (g *Generator) Generate(order *models.Order, qrCode []byte) ([]byte, error) {
	pdf := &gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	if err := pdf.AddTTFFont("dejavu", g.fontPath); err != nil {
		return nil, fmt.Errorf("failed to load font: %w", err)
	}
	if err := pdf.SetFont("dejavu", "", 14); err != nil {
		return nil, fmt.Errorf("failed to set font: %w", err)
	}

	addHeader(pdf, order)

	pdf.SetY(70)
	addCustomerInfo(pdf, order)

	pdf.SetY(pdf.GetY() + 20)
	addItems(pdf, order)

	pdf.SetY(pdf.GetY() + 20)
	addTotals(pdf, order)

	if len(qrCode) > 0 {
		pdf.SetY(pdf.GetY() + 20)
		addQRCode(pdf, qrCode)
	}

	pdf.SetY(780)
	addFooter(pdf)

	var buf bytes.Buffer
	if err := pdf.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func addHeader(pdf *gopdf.GoPdf, order *models.Order) {
	pdf.SetX(40)
	pdf.SetY(30)
	pdf.Cell(nil, "MENYA KOTETSU")
	pdf.Br(20)
	pdf.SetX(40)
	pdf.Cell(nil, "Receipt for order "+order.OrderNumber)
}

func addCustomerInfo(pdf *gopdf.GoPdf, order *models.Order) {
	info := []struct {
		Label string
		Value string
	}{
		{"Customer", order.CustomerName},
		{"Phone", order.CustomerPhone},
		{"Order type", string(order.OrderType)},
		{"Status", string(order.Status)},
		{"Placed at", order.CreatedAt.Format("2006-01-02 15:04")},
	}
	if order.IsDelivery() && order.AddressStreet != nil {
		addr := *order.AddressStreet
		if order.AddressCity != nil {
			addr += ", " + *order.AddressCity
		}
		info = append(info, struct {
			Label string
			Value string
		}{"Delivery to", addr})
	}

	for _, item := range info {
		pdf.SetX(40)
		pdf.Cell(nil, item.Label+": "+item.Value)
		pdf.Br(20)
	}
}

func addItems(pdf *gopdf.GoPdf, order *models.Order) {
	pdf.SetX(40)
	pdf.Cell(nil, "Items")
	pdf.Br(20)
	for _, item := range order.Items {
		pdf.SetX(50)
		line := fmt.Sprintf("%dx %s", item.Quantity, item.Name)
		for _, t := range item.Toppings {
			line += " +" + t.Name
		}
		pdf.Cell(nil, line)
		pdf.SetX(450)
		pdf.Cell(nil, fmt.Sprintf("%.2f", item.LineTotal()))
		pdf.Br(20)
	}
}

func addTotals(pdf *gopdf.GoPdf, order *models.Order) {
	rows := []struct {
		Label string
		Value float64
	}{
		{"Subtotal", order.Subtotal},
		{"Delivery fee", order.DeliveryFee},
		{"Discount", -order.Discount},
		{"Tax", order.Tax},
		{"Total", order.Total},
	}
	for _, row := range rows {
		if row.Label == "Discount" && order.Discount == 0 {
			continue
		}
		if row.Label == "Delivery fee" && order.DeliveryFee == 0 {
			continue
		}
		pdf.SetX(40)
		pdf.Cell(nil, row.Label)
		pdf.SetX(450)
		pdf.Cell(nil, fmt.Sprintf("%.2f", row.Value))
		pdf.Br(20)
	}
}

func addQRCode(pdf *gopdf.GoPdf, qrCode []byte) {
	img, err := png.Decode(bytes.NewReader(qrCode))
	if err != nil {
		pdf.Cell(nil, "Failed to load pickup code")
		return
	}

	rect := &gopdf.Rect{W: 100, H: 100}
	if err := pdf.ImageFrom(img, 100, pdf.GetY(), rect); err != nil {
		pdf.Cell(nil, "Failed to draw pickup code")
	}
}

func addFooter(pdf *gopdf.GoPdf) {
	pdf.SetX(50)
	pdf.Cell(nil, "Thank you for ordering from Menya Kotetsu.")
}

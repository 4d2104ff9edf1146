package notify

import (
	"bytes"
	"fmt"
	"html/template"

	"ramen-orders/internal/models"
	"ramen-orders/internal/status"
)

var confirmationTmpl = template.Must(template.New("confirmation").Parse(`
<h2>Thank you, {{.Order.CustomerName}}!</h2>
<p>Your order <strong>{{.Order.OrderNumber}}</strong> has been confirmed.</p>
<table>
{{range .Order.Items}}<tr><td>{{.Quantity}}x {{.Name}}</td><td>{{printf "%.2f" .LineTotal}}</td></tr>
{{end}}</table>
<p>Subtotal: {{printf "%.2f" .Order.Subtotal}}<br>
{{if gt .Order.DeliveryFee 0.0}}Delivery: {{printf "%.2f" .Order.DeliveryFee}}<br>{{end}}
{{if gt .Order.Discount 0.0}}Discount: -{{printf "%.2f" .Order.Discount}}<br>{{end}}
Tax: {{printf "%.2f" .Order.Tax}}<br>
<strong>Total: {{printf "%.2f" .Order.Total}}</strong></p>
`))

var statusChangeTmpl = template.Must(template.New("status").Parse(`
<h2>{{.Message}}</h2>
<p>Order <strong>{{.Order.OrderNumber}}</strong> is now {{.Order.Status}}.</p>
<p>Track it any time at <a href="https://menya-kotetsu.jp/track?orderNumber={{.Order.OrderNumber}}">menya-kotetsu.jp/track</a>.</p>
`))

var outForDeliveryTmpl = template.Must(template.New("ofd").Parse(`
<h2>Your order is on its way!</h2>
<p>Order <strong>{{.Order.OrderNumber}}</strong> left the kitchen.</p>
{{if .Driver}}<p>{{.Driver.Name}} is delivering on a {{.Driver.Vehicle}} ({{.Driver.LicensePlate}}).</p>{{end}}
{{if gt .ETA 0}}<p>Estimated arrival in about {{.ETA}} minutes.</p>{{end}}
`))

var readyForPickupTmpl = template.Must(template.New("pickup").Parse(`
<h2>Your order is ready for pickup</h2>
<p>Order <strong>{{.Order.OrderNumber}}</strong> is waiting at the counter.</p>
<p>{{.PickupAddress}}</p>
<p>Show the attached QR code when you arrive.</p>
`))

var feedbackTmpl = template.Must(template.New("feedback").Parse(`
<h2>How was your ramen, {{.Order.CustomerName}}?</h2>
<p>We'd love to hear about order <strong>{{.Order.OrderNumber}}</strong>.</p>
<p><a href="https://menya-kotetsu.jp/orders/{{.Order.OrderID}}/feedback">Leave a quick rating</a>, it takes ten seconds.</p>
`))

var abandonedCartTmpl = template.Must(template.New("abandoned").Parse(`
<h2>Your ramen is waiting</h2>
<p>You left {{len .Cart.Items}} item(s) in your cart ({{printf "%.2f" .Cart.Subtotal}}).</p>
<p>Use code <strong>{{.RecoveryCode}}</strong> at checkout to finish your order with a discount.</p>
<p><a href="https://menya-kotetsu.jp/unsubscribe?cart={{.Cart.CartID}}">Unsubscribe from cart reminders</a></p>
`))

func renderConfirmation(order *models.Order) (string, error) {
	return render(confirmationTmpl, map[string]interface{}{"Order": order})
}

func renderStatusChange(order *models.Order) (string, error) {
	return render(statusChangeTmpl, map[string]interface{}{
		"Order":   order,
		"Message": status.Message(order.Status),
	})
}

func renderOutForDelivery(order *models.Order, driver *models.Driver, eta int) (string, error) {
	return render(outForDeliveryTmpl, map[string]interface{}{
		"Order":  order,
		"Driver": driver,
		"ETA":    eta,
	})
}

func renderReadyForPickup(order *models.Order, pickupAddress string) (string, error) {
	return render(readyForPickupTmpl, map[string]interface{}{
		"Order":         order,
		"PickupAddress": pickupAddress,
	})
}

func renderFeedbackRequest(order *models.Order) (string, error) {
	return render(feedbackTmpl, map[string]interface{}{"Order": order})
}

func renderAbandonedCart(cart models.Cart, recoveryCode string) (string, error) {
	return render(abandonedCartTmpl, map[string]interface{}{
		"Cart":         cart,
		"RecoveryCode": recoveryCode,
	})
}

func render(tmpl *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s template: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}

package order

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"

	"ramen-orders/internal/config"
	"ramen-orders/internal/models"
)

// StripeCheckout builds hosted-payment URLs for card orders. The returned
// session URL is the `paymentUrl` the storefront redirects to.
type StripeCheckout struct {
	cfg config.StripeConfig
}

func NewStripeCheckout(cfg config.StripeConfig) *StripeCheckout {
	stripe.Key = cfg.SecretKey
	return &StripeCheckout{cfg: cfg}
}

// Configured reports whether a secret key is present; without one the
// service falls back to pay-on-arrival confirmation.
func (c *StripeCheckout) Configured() bool {
	return c.cfg.SecretKey != ""
}

// CreatePaymentURL creates a Stripe Checkout session charging the order
// total as a single line item. The order id rides along as the client
// reference and as metadata on the payment intent, since intent-level
// webhook events carry no client reference.
func (c *StripeCheckout) CreatePaymentURL(ctx context.Context, order *models.Order) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(order.OrderID),
		Metadata:          map[string]string{"order_id": order.OrderID},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{"order_id": order.OrderID},
		},
		SuccessURL:        stripe.String(c.cfg.SuccessURL + "?orderNumber=" + order.OrderNumber),
		CancelURL:         stripe.String(c.cfg.CancelURL),
		CustomerEmail:     stripe.String(order.CustomerEmail),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(string(stripe.CurrencyUSD)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(fmt.Sprintf("Menya Kotetsu order %s", order.OrderNumber)),
					},
					UnitAmount: stripe.Int64(int64(order.Total*100 + 0.5)),
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx

	sess, err := session.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe checkout session: %w", err)
	}
	return sess.URL, nil
}

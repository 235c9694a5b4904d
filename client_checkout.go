package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/MrEthical07/storefront/address"
	"github.com/MrEthical07/storefront/events"
	"github.com/MrEthical07/storefront/internal/transport"
	"github.com/MrEthical07/storefront/internal/validate"
	"github.com/MrEthical07/storefront/notify"
	"go.uber.org/zap"
)

const (
	msgInitiateFailed = "Failed to initiate order"
	msgPaymentFailed  = "Failed to place order"
	msgInvalidOrderID = "Invalid Order ID. Please check your order history or try again."

	shipwayPending = "pending"
)

// PlacedOrder is the permanent order created by a verified payment.
type PlacedOrder struct {
	Order
	// ShippingPending reports that the courier booking has not completed
	// yet. The order itself is placed.
	ShippingPending bool
}

// InitiateOrder creates a temporary order for the cart lines and returns
// the gateway order to pay. The address pair is added to the saved
// addresses once the API accepts the order.
func (c *Client) InitiateOrder(ctx context.Context, pair AddressPair, cart Cart) (InitiatedOrder, error) {
	if err := address.Validate(pair); err != nil {
		return InitiatedOrder{}, c.fail(ctx, err, "")
	}
	if cart.Empty() {
		return InitiatedOrder{}, c.fail(ctx, ErrEmptyCart, "")
	}
	if err := c.requireSession(ctx, "Please log in to proceed"); err != nil {
		return InitiatedOrder{}, err
	}

	eff := pair.Effective()
	shipping, err := json.Marshal(eff.Shipping)
	if err != nil {
		return InitiatedOrder{}, c.failSticky(ctx, fmt.Errorf("encode shipping address: %w", err), msgInitiateFailed)
	}
	billing, err := json.Marshal(eff.Billing)
	if err != nil {
		return InitiatedOrder{}, c.failSticky(ctx, fmt.Errorf("encode billing address: %w", err), msgInitiateFailed)
	}

	req := transport.Request{
		Method: http.MethodPost,
		Path:   "/user/orders/initiate",
		Body: map[string]any{
			"shippingAddress": string(shipping),
			"billingAddress":  string(billing),
			"pincode":         eff.Shipping.Pincode,
			"cartItemIds":     cart.ItemIDs(),
		},
	}
	var order InitiatedOrder
	res, err := c.call(ctx, req, "", &order)
	if err == nil {
		err = expectCreated(res, req, msgInitiateFailed)
	}
	if err != nil {
		fallback := msgInitiateFailed
		if transport.StatusCode(err) == http.StatusBadRequest {
			fallback = "Invalid request data"
		}
		return InitiatedOrder{}, c.failSticky(ctx, transport.WithFallback(err, fallback), fallback)
	}

	if _, err := c.addresses.Add(ctx, pair); err != nil {
		c.logger.Warn("saving checkout address failed", zap.Error(err))
	}
	c.metrics.Inc(MetricOrderInitiated)
	c.succeed(ctx, "Order initiated successfully")
	return order, nil
}

// paymentResult is the verification response. shipway_status sits next to
// the data envelope.
type paymentResult struct {
	Data struct {
		OrderID string `json:"orderId"`
	} `json:"data"`
	ShipwayStatus string `json:"shipway_status"`
}

// ConfirmPayment forwards a completed gateway payment for verification and
// returns the permanent order. OrderPlaced is published once the payment
// is verified.
func (c *Client) ConfirmPayment(ctx context.Context, pc PaymentConfirmation) (PlacedOrder, error) {
	if strings.TrimSpace(pc.OrderID) == "" {
		return PlacedOrder{}, c.fail(ctx, validate.Fail("orderId", "Order ID not found. Please go back and try again."), "")
	}
	if pc.RazorpayOrderID == "" || pc.RazorpayPaymentID == "" {
		return PlacedOrder{}, c.fail(ctx, validate.Fail("razorpayPaymentId", "Payment details are incomplete"), "")
	}
	if err := c.requireSession(ctx, "Please log in to complete your order"); err != nil {
		return PlacedOrder{}, err
	}

	res, err := c.call(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/user/orders/payment/success",
		Body:   pc,
	}, msgPaymentFailed, nil)
	if err != nil {
		if transport.StatusCode(err) == http.StatusBadRequest {
			c.notifier.Notify(ctx, notify.Error(msgInvalidOrderID).Sticky())
			return PlacedOrder{}, err
		}
		return PlacedOrder{}, c.failSticky(ctx, err, msgPaymentFailed)
	}

	var verified paymentResult
	if err := json.Unmarshal(res.Response.Body, &verified); err != nil || verified.Data.OrderID == "" {
		if err == nil {
			err = errors.New("payment verification returned no order id")
		}
		return PlacedOrder{}, c.failSticky(ctx, err, msgPaymentFailed)
	}
	orderID := verified.Data.OrderID

	userID := ""
	if id, ok := c.session.Identity(ctx); ok {
		userID = id.UserID
	}
	c.metrics.Inc(MetricOrderPlaced)
	c.bus.Publish(ctx, events.OrderPlaced(userID, orderID))

	placed := PlacedOrder{
		Order:           Order{OrderID: orderID},
		ShippingPending: strings.EqualFold(verified.ShipwayStatus, shipwayPending),
	}
	order, err := c.fetchOrder(ctx, orderID)
	if err != nil {
		return placed, c.fail(ctx, err, msgOrderDetailsFailed)
	}
	placed.Order = order

	if placed.ShippingPending {
		c.succeed(ctx, "Payment Successful! Shipping details are being processed.")
	} else {
		c.succeed(ctx, "Payment Successful!")
	}
	return placed, nil
}

// SavedAddresses returns the recently used address pairs, newest first.
func (c *Client) SavedAddresses(ctx context.Context) ([]AddressPair, error) {
	list, err := c.addresses.List(ctx)
	if err != nil {
		return nil, c.fail(ctx, err, "Failed to load saved addresses")
	}
	return list, nil
}

func (c *Client) fetchOrder(ctx context.Context, orderID string) (Order, error) {
	var o Order
	_, err := c.call(ctx, get("/user/orders/"+url.PathEscape(orderID), nil), msgOrderDetailsFailed, &o)
	return o, err
}

package storefront

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/MrEthical07/storefront/internal/transport"
	"github.com/MrEthical07/storefront/internal/validate"
)

const (
	msgOrdersFailed       = "Failed to fetch orders"
	msgOrderDetailsFailed = "Failed to fetch order details"
	msgInvoiceFailed      = "Failed to download invoice. Please try again."
)

// Orders lists the signed-in user's orders as the API returns them. Use
// FilterOrders to search and sort.
func (c *Client) Orders(ctx context.Context) ([]Order, error) {
	if err := c.requireSession(ctx, "Please log in to view your orders"); err != nil {
		return nil, err
	}
	var out []Order
	if _, err := c.call(ctx, get("/user/orders", nil), msgOrdersFailed, &out); err != nil {
		return nil, c.fail(ctx, err, msgOrdersFailed)
	}
	return out, nil
}

// Order fetches one order with its lines and amount breakdown.
func (c *Client) Order(ctx context.Context, orderID string) (Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return Order{}, c.fail(ctx, validate.Fail("orderId", "Order ID is required"), "")
	}
	if err := c.requireSession(ctx, "Please log in to view your orders"); err != nil {
		return Order{}, err
	}
	o, err := c.fetchOrder(ctx, orderID)
	if err != nil {
		return Order{}, c.fail(ctx, err, msgOrderDetailsFailed)
	}
	return o, nil
}

// Invoice downloads the PDF invoice of an order.
func (c *Client) Invoice(ctx context.Context, invoiceID string) ([]byte, error) {
	if strings.TrimSpace(invoiceID) == "" {
		return nil, c.fail(ctx, validate.Fail("invoiceId", "No invoice available for this order."), "")
	}
	if err := c.requireSession(ctx, "Please log in to download invoices"); err != nil {
		return nil, err
	}

	res, err := c.call(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   "/user/invoice/" + url.PathEscape(invoiceID) + "/pdf",
		Header: http.Header{"Accept": {"application/pdf"}},
	}, msgInvoiceFailed, nil)
	if err != nil {
		return nil, c.fail(ctx, err, msgInvoiceFailed)
	}
	if len(res.Response.Body) == 0 {
		return nil, c.fail(ctx, errors.New("invoice: empty body"), msgInvoiceFailed)
	}

	c.succeed(ctx, "Invoice downloaded successfully!")
	return res.Response.Body, nil
}

package storefront

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/url"
	"strconv"

	"github.com/MrEthical07/storefront/internal/transport"
	"github.com/MrEthical07/storefront/internal/validate"
	"go.uber.org/zap"
)

const (
	msgCartLogin   = "Please log in to update cart"
	msgCartFailed  = "Failed to update cart"
	defaultPlantUM = "1 Plant"
)

// Cart fetches the signed-in user's cart. Without a usable session it
// returns ErrNotLoggedIn and sends no request.
func (c *Client) Cart(ctx context.Context) (Cart, error) {
	if err := c.requireSession(ctx, "Please log in to view your cart"); err != nil {
		return Cart{}, err
	}
	cart, err := c.fetchCart(ctx)
	if err != nil {
		return Cart{}, c.failSticky(ctx, err, "Failed to load cart")
	}
	c.setLastCart(cart)
	return cart, nil
}

func (c *Client) fetchCart(ctx context.Context) (Cart, error) {
	var items []CartItem
	if _, err := c.call(ctx, get("/user/cart/usercart", nil), "Failed to load cart", &items); err != nil {
		return Cart{}, err
	}
	for i := range items {
		normalizeCartItem(&items[i])
	}
	return Cart{Items: items}, nil
}

func normalizeCartItem(it *CartItem) {
	if it.Quantity <= 0 {
		it.Quantity = 1
	}
	if it.AfterDiscountPrice == 0 {
		it.AfterDiscountPrice = it.Price
	}
	if it.ProductName == "" {
		it.ProductName = "Unknown Product"
	}
	if it.IsPlant() {
		if it.UnitMeasurement == "" {
			it.UnitMeasurement = defaultPlantUM
		}
		if it.PlantAge == "" {
			it.PlantAge = "1"
		}
	}
}

// refreshCart updates LastCart after a cart change. Failures are logged.
func (c *Client) refreshCart(ctx context.Context) {
	cart, err := c.fetchCart(ctx)
	if err != nil {
		c.logger.Debug("cart refresh after update failed", zap.Error(err))
		return
	}
	c.setLastCart(cart)
}

// AddToCart adds one unit of a variant. Adding a variant already in the
// cart fails with ErrAlreadyInCart.
func (c *Client) AddToCart(ctx context.Context, variantID, unitOfMeasurement string) error {
	const fallback = "Failed to add item to cart"
	if variantID == "" {
		return c.fail(ctx, validate.Fail("variantId", "Please select a product variant"), "")
	}
	if err := c.requireSession(ctx, "Please log in to add items to cart"); err != nil {
		return err
	}

	body := map[string]any{"variantId": variantID, "quantity": 1}
	if unitOfMeasurement != "" {
		body["unitOfMeasurement"] = unitOfMeasurement
	} else {
		body["unitOfMeasurement"] = nil
	}
	req := transport.Request{Method: http.MethodPost, Path: "/user/cart/add", Body: body}
	res, err := c.call(ctx, req, fallback, nil)
	if err == nil {
		err = expectCreated(res, req, fallback)
	}
	if err != nil {
		if transport.StatusCode(err) == http.StatusConflict {
			c.metrics.Inc(MetricCartConflict)
			return c.fail(ctx, errors.Join(ErrAlreadyInCart, err), fallback)
		}
		return c.fail(ctx, err, fallback)
	}

	c.metrics.Inc(MetricCartAdd)
	c.succeed(ctx, "Item added to cart successfully!")
	c.refreshCart(ctx)
	return nil
}

// UpdateQuantity sets the quantity of a cart line. Zero removes the line.
func (c *Client) UpdateQuantity(ctx context.Context, cartItemID string, quantity int) error {
	if quantity < 0 {
		return c.fail(ctx, validate.Fail("quantity", "Quantity cannot be negative"), "")
	}
	if quantity == 0 {
		return c.RemoveFromCart(ctx, cartItemID)
	}
	if err := c.requireSession(ctx, msgCartLogin); err != nil {
		return err
	}

	res, err := c.call(ctx, transport.Request{
		Method: http.MethodPut,
		Path:   "/user/cart/update/" + url.PathEscape(cartItemID),
		Body:   map[string]int{"quantity": quantity},
	}, msgCartFailed, nil)
	if err != nil {
		return c.failSticky(ctx, err, msgCartFailed)
	}

	msg := "Cart updated successfully"
	if env, eerr := res.Response.Envelope(); eerr == nil && env.Message != "" {
		msg = env.Message
	}
	c.succeed(ctx, msg)

	c.cartMu.Lock()
	for i := range c.lastCart.Items {
		if it := &c.lastCart.Items[i]; it.CartItemID == cartItemID {
			it.Quantity = quantity
			it.UnitMeasurement = quantityLabel(*it, quantity)
		}
	}
	c.cartMu.Unlock()
	return nil
}

// PlantAgePrice is the unit price of a plant of the given age in years.
// Ages without a listed price are derived from the base price.
func PlantAgePrice(p Product, age string) float64 {
	switch age {
	case "2":
		if p.SecondYearPrice > 0 {
			return p.SecondYearPrice
		}
		return p.Price * 1.5
	case "3":
		if p.ThirdYearPrice > 0 {
			return p.ThirdYearPrice
		}
		return p.Price * 2
	default:
		return p.Price
	}
}

// SizePrice is the unit price of the named size, or the base price.
func SizePrice(p Product, size string) float64 {
	for _, s := range p.AvailableSizes {
		if s.Size == size && s.Price > 0 {
			return s.Price
		}
	}
	return p.Price
}

// repriced carries the item's current discount over to newPrice.
func repriced(item CartItem, newPrice float64) (pct float64, after float64) {
	if item.Price <= 0 || item.Discount() == 0 {
		return 0, newPrice
	}
	pct = math.Round(item.Discount() / item.Price * 100)
	after = math.Round(newPrice*(1-pct/100)*100) / 100
	return pct, after
}

// SetPlantAge changes the age of a plant in the cart to "1", "2" or "3"
// years and reprices it.
func (c *Client) SetPlantAge(ctx context.Context, item CartItem, age string) (CartItem, error) {
	if age != "1" && age != "2" && age != "3" {
		return CartItem{}, c.fail(ctx, validate.Fail("plantAge", "Plant age must be 1, 2 or 3 years"), "")
	}
	return c.reprice(ctx, item, "/user/cart/updatePlantAge/", "Plant age updated successfully",
		func(p Product) (float64, map[string]any, func(*CartItem)) {
			price := PlantAgePrice(p, age)
			return price, map[string]any{"plantAge": age}, func(it *CartItem) { it.PlantAge = age }
		})
}

// SetSize changes the size of a cart line and reprices it.
func (c *Client) SetSize(ctx context.Context, item CartItem, size string) (CartItem, error) {
	if size == "" {
		return CartItem{}, c.fail(ctx, validate.Fail("unitMeasurement", "Please select a size"), "")
	}
	return c.reprice(ctx, item, "/user/cart/updateSize/", "Size updated successfully",
		func(p Product) (float64, map[string]any, func(*CartItem)) {
			price := SizePrice(p, size)
			return price, map[string]any{"unitMeasurement": size}, func(it *CartItem) { it.UnitMeasurement = size }
		})
}

type repriceFunc func(p Product) (price float64, body map[string]any, apply func(*CartItem))

func (c *Client) reprice(ctx context.Context, item CartItem, pathPrefix, successMsg string, fn repriceFunc) (CartItem, error) {
	if err := c.requireSession(ctx, msgCartLogin); err != nil {
		return CartItem{}, err
	}

	product, err := c.fetchProduct(ctx, item.ProductID, "Failed to fetch product details")
	if err != nil {
		return CartItem{}, c.failSticky(ctx, err, msgCartFailed)
	}

	price, body, apply := fn(product)
	pct, after := repriced(item, price)
	body["selectedPrice"] = price
	body["discountValue"] = pct
	body["isPercentageDiscount"] = pct > 0

	if _, err := c.call(ctx, transport.Request{
		Method: http.MethodPut,
		Path:   pathPrefix + url.PathEscape(item.CartItemID),
		Body:   body,
	}, msgCartFailed, nil); err != nil {
		return CartItem{}, c.failSticky(ctx, err, msgCartFailed)
	}

	updated := item
	apply(&updated)
	updated.Price = price
	updated.AfterDiscountPrice = after
	c.succeed(ctx, successMsg)
	c.replaceInLastCart(updated)
	return updated, nil
}

func (c *Client) replaceInLastCart(item CartItem) {
	c.cartMu.Lock()
	defer c.cartMu.Unlock()
	for i := range c.lastCart.Items {
		if c.lastCart.Items[i].CartItemID == item.CartItemID {
			c.lastCart.Items[i] = item
			return
		}
	}
}

// RemoveFromCart deletes a cart line.
func (c *Client) RemoveFromCart(ctx context.Context, cartItemID string) error {
	const fallback = "Failed to remove item from cart"
	if err := c.requireSession(ctx, "Please log in to remove cart item"); err != nil {
		return err
	}
	if _, err := c.call(ctx, transport.Request{
		Method: http.MethodDelete,
		Path:   "/user/cart/" + url.PathEscape(cartItemID),
	}, fallback, nil); err != nil {
		return c.failSticky(ctx, err, fallback)
	}
	c.succeed(ctx, "Item removed from cart")
	c.refreshCart(ctx)
	return nil
}

// quantityLabel renders a per-unit measurement for a new quantity, for
// example "3 kg" from "1 kg".
func quantityLabel(item CartItem, quantity int) string {
	if item.IsPlant() {
		return defaultPlantUM
	}
	if item.UnitMeasurement == "" {
		return ""
	}
	unit := item.UnitMeasurement
	i := 0
	for i < len(unit) && unit[i] >= '0' && unit[i] <= '9' {
		i++
	}
	for i < len(unit) && unit[i] == ' ' {
		i++
	}
	return strconv.Itoa(quantity) + " " + unit[i:]
}

package storefront

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/MrEthical07/storefront/address"
	"github.com/MrEthical07/storefront/session"
)

// User is the signed-in customer.
type User = session.Identity

// SessionState is the position in the token lifecycle.
type SessionState = session.State

const (
	SessionAnonymous     = session.StateAnonymous
	SessionAuthenticated = session.StateAuthenticated
	SessionRefreshing    = session.StateRefreshing
	SessionExpired       = session.StateExpired
)

// Address and AddressPair are the checkout address types.
type (
	Address     = address.Address
	AddressPair = address.Pair
)

// Category is a product category.
type Category struct {
	CategoryID   string `json:"categoryId"`
	CategoryName string `json:"categoryName"`
	CategoryImg  string `json:"categoryImg,omitempty"`
}

// Size is a purchasable size of a product with its own price.
type Size struct {
	Size  string  `json:"size"`
	Price float64 `json:"price"`
}

// Product is a catalog entry. Variants is filled by ProductsByCategory.
type Product struct {
	ProductID       string    `json:"productId"`
	ProductName     string    `json:"productName"`
	Description     string    `json:"description,omitempty"`
	CategoryID      string    `json:"categoryId,omitempty"`
	Images          []string  `json:"images,omitempty"`
	Price           float64   `json:"price"`
	SecondYearPrice float64   `json:"secondYearPrice,omitempty"`
	ThirdYearPrice  float64   `json:"thirdYearPrice,omitempty"`
	AvailableSizes  []Size    `json:"availableSizes,omitempty"`
	Variants        []Variant `json:"variants,omitempty"`
}

// Variant is the unit a customer adds to the cart.
type Variant struct {
	VariantID           string  `json:"variantId"`
	ProductID           string  `json:"productId,omitempty"`
	VariantName         string  `json:"variantName"`
	UnitOfMeasurement   string  `json:"unitOfMeasurement,omitempty"`
	OriginalAmount      float64 `json:"originalAmount"`
	AfterDiscountAmount float64 `json:"afterDiscountAmount"`
	DiscountPercentage  float64 `json:"discountPercentage,omitempty"`
}

// CartItem is a line in the user's cart.
type CartItem struct {
	CartItemID         string  `json:"cartItemId"`
	VariantID          string  `json:"variantId,omitempty"`
	ProductID          string  `json:"productId,omitempty"`
	ProductName        string  `json:"productName"`
	Category           string  `json:"category,omitempty"`
	ImageURL           string  `json:"imageUrl,omitempty"`
	Quantity           int     `json:"quantity"`
	Price              float64 `json:"price"`
	AfterDiscountPrice float64 `json:"afterDiscountPrice"`
	UnitMeasurement    string  `json:"unitMeasurement,omitempty"`
	PlantAge           string  `json:"plantAge,omitempty"`
	AvailableSizes     []Size  `json:"availableSizes,omitempty"`
}

// IsPlant reports whether the item is sold per plant.
func (c CartItem) IsPlant() bool {
	return strings.EqualFold(c.Category, "plants") ||
		strings.Contains(strings.ToLower(c.ProductName), "plant")
}

// Discount is the absolute discount per unit.
func (c CartItem) Discount() float64 {
	if c.Price > c.AfterDiscountPrice {
		return c.Price - c.AfterDiscountPrice
	}
	return 0
}

// LineTotal is the discounted price times quantity.
func (c CartItem) LineTotal() float64 {
	price := c.AfterDiscountPrice
	if price == 0 {
		price = c.Price
	}
	return price * float64(c.Quantity)
}

// Cart is the user's cart as last fetched.
type Cart struct {
	Items []CartItem
}

func (c Cart) Empty() bool { return len(c.Items) == 0 }

// Total is the sum of line totals rounded to paise.
func (c Cart) Total() float64 {
	var sum float64
	for _, it := range c.Items {
		sum += it.LineTotal()
	}
	return math.Round(sum*100) / 100
}

// ItemIDs returns the cart item ids in order.
func (c Cart) ItemIDs() []string {
	ids := make([]string, 0, len(c.Items))
	for _, it := range c.Items {
		ids = append(ids, it.CartItemID)
	}
	return ids
}

// OrderItem is a line of a placed order.
type OrderItem struct {
	ProductName         string  `json:"productName"`
	ImageURL            string  `json:"imageUrl,omitempty"`
	Quantity            int     `json:"quantity"`
	UnitMeasurement     string  `json:"unitMeasurement,omitempty"`
	AfterDiscountAmount float64 `json:"afterDiscountAmount"`
}

// Order is a placed order. List responses fill ProductNames; detail
// responses fill OrderItems and the amount breakdown.
type Order struct {
	OrderID               string      `json:"orderId"`
	OrderStatus           string      `json:"orderStatus"`
	RazorpayOrderStatus   string      `json:"razorpayOrderStatus,omitempty"`
	PlacedAt              time.Time   `json:"placedAt"`
	ProductNames          []string    `json:"productNames,omitempty"`
	OrderItems            []OrderItem `json:"orderItems,omitempty"`
	ShippingAddress       string      `json:"shippingAddress,omitempty"`
	OriginalAmount        float64     `json:"originalAmount,omitempty"`
	ProductDiscountAmount float64     `json:"productDiscountAmount,omitempty"`
	OrderDiscountAmount   float64     `json:"orderDiscountAmount,omitempty"`
	SubtotalAmount        float64     `json:"subtotalAmount,omitempty"`
	ShippingAmount        float64     `json:"shippingAmount,omitempty"`
	TaxAmount             float64     `json:"taxAmount,omitempty"`
	TotalAmount           float64     `json:"totalAmount"`
	PaymentMethod         string      `json:"paymentMethod,omitempty"`
	InvoiceID             string      `json:"invoiceId,omitempty"`
}

// InitiatedOrder is the temporary order created before payment. The gateway
// overlay is opened with RazorpayOrderID and TotalAmount.
type InitiatedOrder struct {
	OrderID         string  `json:"orderId"`
	RazorpayOrderID string  `json:"razorpayOrderId"`
	TotalAmount     float64 `json:"totalAmount"`
	ShippingAmount  float64 `json:"shippingAmount,omitempty"`
}

// PaymentConfirmation is what the payment gateway hands back after a
// successful payment. OrderID is the temporary id from InitiateOrder.
type PaymentConfirmation struct {
	RazorpayOrderID   string `json:"razorpayOrderId"`
	RazorpayPaymentID string `json:"razorpayPaymentId"`
	RazorpaySignature string `json:"razorpaySignature"`
	Amount            string `json:"amount"`
	OrderID           string `json:"orderId"`
}

// Registration is the sign-up form.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phoneNo"`
	Password string `json:"password"`
}

// Order sort keys for OrderQuery.Sort.
const (
	SortNewest     = "newest"
	SortOldest     = "oldest"
	SortAmountHigh = "amount-high"
	SortAmountLow  = "amount-low"
)

// OrderQuery filters and sorts an order list.
type OrderQuery struct {
	// Search matches the order id or any product name, case-insensitively.
	Search string
	// Status matches OrderStatus case-insensitively. Empty or "all" matches
	// every order.
	Status string
	Sort   string
}

// FilterOrders applies q to orders without modifying them.
func FilterOrders(orders []Order, q OrderQuery) []Order {
	term := strings.ToLower(strings.TrimSpace(q.Search))
	status := strings.ToLower(strings.TrimSpace(q.Status))

	out := make([]Order, 0, len(orders))
	for _, o := range orders {
		if term != "" && !orderMatches(o, term) {
			continue
		}
		if status != "" && status != "all" && strings.ToLower(o.OrderStatus) != status {
			continue
		}
		out = append(out, o)
	}

	switch q.Sort {
	case SortNewest:
		sort.SliceStable(out, func(i, j int) bool { return out[i].PlacedAt.After(out[j].PlacedAt) })
	case SortOldest:
		sort.SliceStable(out, func(i, j int) bool { return out[i].PlacedAt.Before(out[j].PlacedAt) })
	case SortAmountHigh:
		sort.SliceStable(out, func(i, j int) bool { return out[i].TotalAmount > out[j].TotalAmount })
	case SortAmountLow:
		sort.SliceStable(out, func(i, j int) bool { return out[i].TotalAmount < out[j].TotalAmount })
	}
	return out
}

func orderMatches(o Order, term string) bool {
	if strings.Contains(strings.ToLower(o.OrderID), term) {
		return true
	}
	for _, name := range o.ProductNames {
		if strings.Contains(strings.ToLower(name), term) {
			return true
		}
	}
	return false
}

// Serviceability is the delivery check for a pincode.
type Serviceability struct {
	Pincode     string `json:"pincode"`
	Serviceable bool   `json:"serviceable"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	DeliveryETA string `json:"deliveryEta,omitempty"`
}

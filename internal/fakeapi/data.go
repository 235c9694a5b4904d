package fakeapi

import "time"

type user struct {
	UserID   string `json:"userId"`
	Role     string `json:"role"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phoneNo"`

	passwordHash string
}

type category struct {
	CategoryID   string `json:"categoryId"`
	CategoryName string `json:"categoryName"`
	CategoryImg  string `json:"categoryImg,omitempty"`
}

type size struct {
	Size  string  `json:"size"`
	Price float64 `json:"price"`
}

type product struct {
	ProductID       string   `json:"productId"`
	ProductName     string   `json:"productName"`
	Description     string   `json:"description,omitempty"`
	CategoryID      string   `json:"categoryId"`
	Images          []string `json:"images,omitempty"`
	Price           float64  `json:"price"`
	SecondYearPrice float64  `json:"secondYearPrice,omitempty"`
	ThirdYearPrice  float64  `json:"thirdYearPrice,omitempty"`
	AvailableSizes  []size   `json:"availableSizes,omitempty"`
}

type variant struct {
	VariantID           string  `json:"variantId"`
	ProductID           string  `json:"productId"`
	VariantName         string  `json:"variantName"`
	UnitOfMeasurement   string  `json:"unitOfMeasurement,omitempty"`
	OriginalAmount      float64 `json:"originalAmount"`
	AfterDiscountAmount float64 `json:"afterDiscountAmount"`
	DiscountPercentage  float64 `json:"discountPercentage,omitempty"`
}

type cartItem struct {
	CartItemID         string  `json:"cartItemId"`
	VariantID          string  `json:"variantId"`
	ProductID          string  `json:"productId"`
	ProductName        string  `json:"productName"`
	Category           string  `json:"category"`
	ImageURL           string  `json:"imageUrl,omitempty"`
	Quantity           int     `json:"quantity"`
	Price              float64 `json:"price"`
	AfterDiscountPrice float64 `json:"afterDiscountPrice"`
	UnitMeasurement    string  `json:"unitMeasurement,omitempty"`
	PlantAge           string  `json:"plantAge,omitempty"`
	AvailableSizes     []size  `json:"availableSizes,omitempty"`
}

type orderItem struct {
	ProductName         string  `json:"productName"`
	ImageURL            string  `json:"imageUrl,omitempty"`
	Quantity            int     `json:"quantity"`
	UnitMeasurement     string  `json:"unitMeasurement,omitempty"`
	AfterDiscountAmount float64 `json:"afterDiscountAmount"`
}

type order struct {
	OrderID             string      `json:"orderId"`
	OrderStatus         string      `json:"orderStatus"`
	RazorpayOrderStatus string      `json:"razorpayOrderStatus,omitempty"`
	PlacedAt            time.Time   `json:"placedAt"`
	ProductNames        []string    `json:"productNames"`
	OrderItems          []orderItem `json:"orderItems"`
	ShippingAddress     string      `json:"shippingAddress"`
	OriginalAmount      float64     `json:"originalAmount"`
	SubtotalAmount      float64     `json:"subtotalAmount"`
	ShippingAmount      float64     `json:"shippingAmount"`
	TotalAmount         float64     `json:"totalAmount"`
	PaymentMethod       string      `json:"paymentMethod"`
	InvoiceID           string      `json:"invoiceId,omitempty"`
}

// initiated is a temporary order waiting for payment.
type initiated struct {
	OrderID         string  `json:"orderId"`
	RazorpayOrderID string  `json:"razorpayOrderId"`
	TotalAmount     float64 `json:"totalAmount"`
	ShippingAmount  float64 `json:"shippingAmount"`

	userID   string
	shipping string
	items    []cartItem
}

type serviceability struct {
	Pincode     string `json:"pincode"`
	Serviceable bool   `json:"serviceable"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	DeliveryETA string `json:"deliveryEta,omitempty"`
}

// Shipping is free from freeShippingAbove.
const (
	freeShippingAbove = 500
	shippingCharge    = 50
)

func (s *Server) seed() error {
	hash, err := hashPassword(SeedPassword)
	if err != nil {
		return err
	}
	s.users[SeedEmail] = &user{
		UserID:       SeedUserID,
		Role:         "user",
		Name:         SeedName,
		Email:        SeedEmail,
		Phone:        SeedPhone,
		passwordHash: hash,
	}

	s.categories = []category{
		{CategoryID: "cat-seeds", CategoryName: "Seeds"},
		{CategoryID: "cat-plants", CategoryName: "Plants"},
		{CategoryID: "cat-fert", CategoryName: "Fertilizers"},
	}
	s.products = []product{
		{
			ProductID: "p-tomato", ProductName: "Tomato Seeds", CategoryID: "cat-seeds",
			Description: "Hybrid tomato seeds", Price: 120,
		},
		{
			ProductID: "p-chilli", ProductName: "Chilli Seeds", CategoryID: "cat-seeds",
			Description: "Green chilli seeds", Price: 90,
		},
		{
			ProductID: "p-mango", ProductName: "Mango Plant", CategoryID: "cat-plants",
			Description: "Alphonso grafted sapling", Price: 400, SecondYearPrice: 600, ThirdYearPrice: 800,
		},
		{
			ProductID: "p-neem", ProductName: "Neem Oil", CategoryID: "cat-fert",
			Description: "Cold pressed neem oil", Price: 250,
			AvailableSizes: []size{{Size: "500ml", Price: 250}, {Size: "1L", Price: 450}},
		},
	}
	s.variants = map[string][]variant{
		"p-tomato": {
			{VariantID: "v-tomato-100g", ProductID: "p-tomato", VariantName: "100 g", UnitOfMeasurement: "100 g",
				OriginalAmount: 120, AfterDiscountAmount: 108, DiscountPercentage: 10},
			{VariantID: "v-tomato-250g", ProductID: "p-tomato", VariantName: "250 g", UnitOfMeasurement: "250 g",
				OriginalAmount: 260, AfterDiscountAmount: 260},
		},
		"p-chilli": {
			{VariantID: "v-chilli-50g", ProductID: "p-chilli", VariantName: "50 g", UnitOfMeasurement: "50 g",
				OriginalAmount: 90, AfterDiscountAmount: 90},
		},
		"p-mango": {
			{VariantID: "v-mango-1", ProductID: "p-mango", VariantName: "1 Plant", UnitOfMeasurement: "1 Plant",
				OriginalAmount: 400, AfterDiscountAmount: 360, DiscountPercentage: 10},
		},
		"p-neem": {
			{VariantID: "v-neem-500", ProductID: "p-neem", VariantName: "500ml", UnitOfMeasurement: "500ml",
				OriginalAmount: 250, AfterDiscountAmount: 250},
		},
	}
	s.pincodes = map[string]serviceability{
		"500075": {Pincode: "500075", Serviceable: true, City: "Hyderabad", State: "Telangana", DeliveryETA: "2-4 days"},
		"500001": {Pincode: "500001", Serviceable: true, City: "Hyderabad", State: "Telangana", DeliveryETA: "2-4 days"},
		"110001": {Pincode: "110001", Serviceable: false, City: "New Delhi", State: "Delhi"},
	}
	return nil
}

func (s *Server) productByID(id string) (product, bool) {
	for _, p := range s.products {
		if p.ProductID == id {
			return p, true
		}
	}
	return product{}, false
}

func (s *Server) variantByID(id string) (variant, bool) {
	for _, vs := range s.variants {
		for _, v := range vs {
			if v.VariantID == id {
				return v, true
			}
		}
	}
	return variant{}, false
}

func (s *Server) categoryName(id string) string {
	for _, c := range s.categories {
		if c.CategoryID == id {
			return c.CategoryName
		}
	}
	return ""
}

func (s *Server) userByID(id string) (*user, bool) {
	for _, u := range s.users {
		if u.UserID == id {
			return u, true
		}
	}
	return nil, false
}

func (s *Server) userByPhone(phone string) (*user, bool) {
	for _, u := range s.users {
		if u.Phone == phone {
			return u, true
		}
	}
	return nil, false
}

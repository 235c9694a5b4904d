package fakeapi

import (
	"fmt"
	"math"
	"net/http"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.record)
	u := r.PathPrefix("/user").Subrouter()

	u.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost).Name("auth.login")
	u.HandleFunc("/login/otp/request", s.handleLoginOTPRequest).Methods(http.MethodPost).Name("auth.login_otp_request")
	u.HandleFunc("/login/otp/verify", s.handleLoginOTPVerify).Methods(http.MethodPost).Name("auth.login_otp_verify")
	u.HandleFunc("/register/otp/request", s.handleRegisterOTPRequest).Methods(http.MethodPost).Name("auth.register_otp_request")
	u.HandleFunc("/register/otp/verify", s.handleRegisterOTPVerify).Methods(http.MethodPost).Name("auth.register_otp_verify")
	u.HandleFunc("/refresh-token", s.handleRefresh).Methods(http.MethodPost).Name("auth.refresh")
	u.Handle("/details/{userId}", s.guard(s.handleUserDetails)).Methods(http.MethodGet).Name("auth.details")

	u.HandleFunc("/categories", s.handleCategories).Methods(http.MethodGet).Name("catalog.categories")
	u.HandleFunc("/products", s.handleProducts).Methods(http.MethodGet).Name("catalog.products")
	u.HandleFunc("/products/search", s.handleSearch).Methods(http.MethodGet).Name("catalog.search")
	u.HandleFunc("/products/category/{id}", s.handleProductsByCategory).Methods(http.MethodGet).Name("catalog.by_category")
	u.HandleFunc("/products/get/{id}", s.handleProduct).Methods(http.MethodGet).Name("catalog.product")
	u.HandleFunc("/products/{id}", s.handleProduct).Methods(http.MethodGet).Name("catalog.product_by_id")
	u.HandleFunc("/product-variants/product/{id}", s.handleVariants).Methods(http.MethodGet).Name("catalog.variants")
	u.HandleFunc("/pincode/{pincode}", s.handlePincode).Methods(http.MethodGet).Name("catalog.pincode")

	u.Handle("/cart/usercart", s.guard(s.handleCart)).Methods(http.MethodGet).Name("cart.get")
	u.Handle("/cart/add", s.guard(s.handleCartAdd)).Methods(http.MethodPost).Name("cart.add")
	u.Handle("/cart/update/{id}", s.guard(s.handleCartQuantity)).Methods(http.MethodPut).Name("cart.update")
	u.Handle("/cart/updatePlantAge/{id}", s.guard(s.handleCartReprice)).Methods(http.MethodPut).Name("cart.update_plant_age")
	u.Handle("/cart/updateSize/{id}", s.guard(s.handleCartReprice)).Methods(http.MethodPut).Name("cart.update_size")
	u.Handle("/cart/{id}", s.guard(s.handleCartRemove)).Methods(http.MethodDelete).Name("cart.remove")

	u.Handle("/orders/initiate", s.guard(s.handleInitiate)).Methods(http.MethodPost).Name("orders.initiate")
	u.Handle("/orders/payment/success", s.guard(s.handlePaymentSuccess)).Methods(http.MethodPost).Name("orders.payment_success")
	u.Handle("/orders", s.guard(s.handleOrders)).Methods(http.MethodGet).Name("orders.list")
	u.Handle("/orders/{id}", s.guard(s.handleOrder)).Methods(http.MethodGet).Name("orders.get")
	u.Handle("/invoice/{id}/pdf", s.guard(s.handleInvoice)).Methods(http.MethodGet).Name("orders.invoice")
	return r
}

/*
====================================
CATALOG
====================================
*/

func (s *Server) handleCategories(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, s.categories, "")
}

func (s *Server) handleProducts(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, s.products, "")
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("query")))
	out := make([]product, 0)
	for _, p := range s.products {
		if q != "" && strings.Contains(strings.ToLower(p.ProductName), q) {
			out = append(out, p)
		}
	}
	writeData(w, http.StatusOK, out, "")
}

func (s *Server) handleProductsByCategory(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	out := make([]product, 0)
	for _, p := range s.products {
		if p.CategoryID == id {
			out = append(out, p)
		}
	}
	writeData(w, http.StatusOK, out, "")
}

func (s *Server) handleProduct(w http.ResponseWriter, r *http.Request) {
	p, ok := s.productByID(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "Product not found")
		return
	}
	writeData(w, http.StatusOK, p, "")
}

func (s *Server) handleVariants(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, ok := s.productByID(id); !ok {
		writeError(w, http.StatusNotFound, "Product not found")
		return
	}
	vs := s.variants[id]
	if vs == nil {
		vs = []variant{}
	}
	writeData(w, http.StatusOK, vs, "")
}

func (s *Server) handlePincode(w http.ResponseWriter, r *http.Request) {
	pin, ok := s.pincodes[mux.Vars(r)["pincode"]]
	if !ok {
		writeError(w, http.StatusNotFound, "Pincode not found")
		return
	}
	writeData(w, http.StatusOK, pin, "")
}

/*
====================================
CART
====================================
*/

func (s *Server) handleCart(w http.ResponseWriter, r *http.Request) {
	uid := userIDFromContext(r.Context())
	s.mu.Lock()
	items := append([]cartItem{}, s.carts[uid]...)
	s.mu.Unlock()
	writeData(w, http.StatusOK, items, "")
}

func (s *Server) handleCartAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VariantID         string  `json:"variantId"`
		Quantity          int     `json:"quantity"`
		UnitOfMeasurement *string `json:"unitOfMeasurement"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	v, ok := s.variantByID(req.VariantID)
	if !ok {
		writeError(w, http.StatusNotFound, "Variant not found")
		return
	}
	p, _ := s.productByID(v.ProductID)
	if req.Quantity <= 0 {
		req.Quantity = 1
	}

	uid := userIDFromContext(r.Context())
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.carts[uid] {
		if it.VariantID == req.VariantID {
			writeError(w, http.StatusConflict, "Item already exists in cart")
			return
		}
	}
	um := v.UnitOfMeasurement
	if req.UnitOfMeasurement != nil && *req.UnitOfMeasurement != "" {
		um = *req.UnitOfMeasurement
	}
	item := cartItem{
		CartItemID:         s.nextID("ci"),
		VariantID:          v.VariantID,
		ProductID:          p.ProductID,
		ProductName:        p.ProductName,
		Category:           s.categoryName(p.CategoryID),
		Quantity:           req.Quantity,
		Price:              v.OriginalAmount,
		AfterDiscountPrice: v.AfterDiscountAmount,
		UnitMeasurement:    um,
		AvailableSizes:     p.AvailableSizes,
	}
	if strings.EqualFold(item.Category, "plants") {
		item.PlantAge = "1"
	}
	s.carts[uid] = append(s.carts[uid], item)
	writeData(w, http.StatusCreated, item, "Item added to cart")
}

// findCartItemLocked returns the index of cart item id for uid, or -1.
func (s *Server) findCartItemLocked(uid, id string) int {
	return slices.IndexFunc(s.carts[uid], func(it cartItem) bool { return it.CartItemID == id })
}

func (s *Server) handleCartQuantity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := readJSON(r, &req); err != nil || req.Quantity <= 0 {
		writeError(w, http.StatusBadRequest, "Quantity must be positive")
		return
	}

	uid := userIDFromContext(r.Context())
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.findCartItemLocked(uid, mux.Vars(r)["id"])
	if i < 0 {
		writeError(w, http.StatusNotFound, "Cart item not found")
		return
	}
	s.carts[uid][i].Quantity = req.Quantity
	writeData(w, http.StatusOK, s.carts[uid][i], "Cart updated successfully")
}

func (s *Server) handleCartReprice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlantAge             string  `json:"plantAge"`
		UnitMeasurement      string  `json:"unitMeasurement"`
		SelectedPrice        float64 `json:"selectedPrice"`
		DiscountValue        float64 `json:"discountValue"`
		IsPercentageDiscount bool    `json:"isPercentageDiscount"`
	}
	if err := readJSON(r, &req); err != nil || req.SelectedPrice <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid price")
		return
	}

	uid := userIDFromContext(r.Context())
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.findCartItemLocked(uid, mux.Vars(r)["id"])
	if i < 0 {
		writeError(w, http.StatusNotFound, "Cart item not found")
		return
	}
	it := &s.carts[uid][i]
	if req.PlantAge != "" {
		it.PlantAge = req.PlantAge
	}
	if req.UnitMeasurement != "" {
		it.UnitMeasurement = req.UnitMeasurement
	}
	it.Price = req.SelectedPrice
	it.AfterDiscountPrice = req.SelectedPrice
	if req.IsPercentageDiscount && req.DiscountValue > 0 {
		it.AfterDiscountPrice = math.Round(req.SelectedPrice*(1-req.DiscountValue/100)*100) / 100
	}
	writeData(w, http.StatusOK, *it, "Cart item updated")
}

func (s *Server) handleCartRemove(w http.ResponseWriter, r *http.Request) {
	uid := userIDFromContext(r.Context())
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.findCartItemLocked(uid, mux.Vars(r)["id"])
	if i < 0 {
		writeError(w, http.StatusNotFound, "Cart item not found")
		return
	}
	s.carts[uid] = slices.Delete(s.carts[uid], i, i+1)
	writeData(w, http.StatusOK, map[string]string{"cartItemId": mux.Vars(r)["id"]}, "Item removed from cart")
}

/*
====================================
ORDERS
====================================
*/

func (s *Server) handleInitiate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ShippingAddress string   `json:"shippingAddress"`
		BillingAddress  string   `json:"billingAddress"`
		Pincode         string   `json:"pincode"`
		CartItemIDs     []string `json:"cartItemIds"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ShippingAddress == "" || req.BillingAddress == "" || len(req.CartItemIDs) == 0 {
		writeError(w, http.StatusBadRequest, "Shipping address, billing address and cart items are required")
		return
	}
	if pin, ok := s.pincodes[req.Pincode]; !ok || !pin.Serviceable {
		writeError(w, http.StatusBadRequest, "Delivery is not available for this pincode")
		return
	}

	uid := userIDFromContext(r.Context())
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []cartItem
	var subtotal float64
	for _, id := range req.CartItemIDs {
		i := s.findCartItemLocked(uid, id)
		if i < 0 {
			writeError(w, http.StatusBadRequest, "Cart item "+id+" not found")
			return
		}
		it := s.carts[uid][i]
		items = append(items, it)
		subtotal += it.AfterDiscountPrice * float64(it.Quantity)
	}
	shipping := 0.0
	if subtotal < freeShippingAbove {
		shipping = shippingCharge
	}

	o := &initiated{
		OrderID:         "tmp-" + uuid.NewString(),
		RazorpayOrderID: "order_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14],
		TotalAmount:     math.Round((subtotal+shipping)*100) / 100,
		ShippingAmount:  shipping,
		userID:          uid,
		shipping:        req.ShippingAddress,
		items:           items,
	}
	s.initiate[o.OrderID] = o
	writeData(w, http.StatusCreated, o, "Order initiated")
}

func (s *Server) handlePaymentSuccess(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RazorpayOrderID   string `json:"razorpayOrderId"`
		RazorpayPaymentID string `json:"razorpayPaymentId"`
		RazorpaySignature string `json:"razorpaySignature"`
		Amount            string `json:"amount"`
		OrderID           string `json:"orderId"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	uid := userIDFromContext(r.Context())
	s.mu.Lock()
	defer s.mu.Unlock()
	pending, ok := s.initiate[req.OrderID]
	if !ok || pending.userID != uid || pending.RazorpayOrderID != req.RazorpayOrderID {
		writeError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}
	delete(s.initiate, req.OrderID)

	placed := order{
		OrderID:             s.nextID("ORD"),
		OrderStatus:         "Processing",
		RazorpayOrderStatus: "paid",
		PlacedAt:            s.cfg.Now().UTC(),
		ShippingAddress:     pending.shipping,
		ShippingAmount:      pending.ShippingAmount,
		TotalAmount:         pending.TotalAmount,
		PaymentMethod:       "razorpay",
		ProductNames:        []string{},
		OrderItems:          []orderItem{},
	}
	for _, it := range pending.items {
		placed.ProductNames = append(placed.ProductNames, it.ProductName)
		placed.OrderItems = append(placed.OrderItems, orderItem{
			ProductName:         it.ProductName,
			Quantity:            it.Quantity,
			UnitMeasurement:     it.UnitMeasurement,
			AfterDiscountAmount: it.AfterDiscountPrice,
		})
		placed.OriginalAmount += it.Price * float64(it.Quantity)
		placed.SubtotalAmount += it.AfterDiscountPrice * float64(it.Quantity)
		if i := s.findCartItemLocked(uid, it.CartItemID); i >= 0 {
			s.carts[uid] = slices.Delete(s.carts[uid], i, i+1)
		}
	}
	placed.InvoiceID = s.nextID("INV")
	s.invoices[placed.InvoiceID] = placed.OrderID
	s.orders[uid] = append(s.orders[uid], placed)

	shipway := "created"
	if s.shippingPending.Load() {
		shipway = "pending"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "success",
		"message":        "Payment verified",
		"data":           map[string]string{"orderId": placed.OrderID},
		"shipway_status": shipway,
	})
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	uid := userIDFromContext(r.Context())
	s.mu.Lock()
	out := append([]order{}, s.orders[uid]...)
	s.mu.Unlock()
	writeData(w, http.StatusOK, out, "")
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	uid := userIDFromContext(r.Context())
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders[uid] {
		if o.OrderID == id {
			writeData(w, http.StatusOK, o, "")
			return
		}
	}
	writeError(w, http.StatusNotFound, "Order not found")
}

func (s *Server) handleInvoice(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	orderID, ok := s.invoices[id]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "Invoice not found")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "%%PDF-1.4\n%% invoice %s for order %s\n%%%%EOF\n", id, orderID)
}

package storefront

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleOrders() []Order {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return []Order{
		{OrderID: "ORD-1", OrderStatus: "Delivered", PlacedAt: base, TotalAmount: 500, ProductNames: []string{"Tomato Seeds"}},
		{OrderID: "ORD-2", OrderStatus: "Processing", PlacedAt: base.Add(48 * time.Hour), TotalAmount: 1200, ProductNames: []string{"Mango Plant"}},
		{OrderID: "ORD-3", OrderStatus: "processing", PlacedAt: base.Add(24 * time.Hour), TotalAmount: 90, ProductNames: []string{"Chilli Seeds", "Neem Oil"}},
	}
}

func orderIDs(orders []Order) []string {
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.OrderID)
	}
	return ids
}

func TestFilterOrders(t *testing.T) {
	orders := sampleOrders()

	tests := []struct {
		name string
		q    OrderQuery
		want []string
	}{
		{"no filter keeps order", OrderQuery{}, []string{"ORD-1", "ORD-2", "ORD-3"}},
		{"status all", OrderQuery{Status: "all"}, []string{"ORD-1", "ORD-2", "ORD-3"}},
		{"status case-insensitive", OrderQuery{Status: "PROCESSING"}, []string{"ORD-2", "ORD-3"}},
		{"search product name", OrderQuery{Search: "seeds"}, []string{"ORD-1", "ORD-3"}},
		{"search order id", OrderQuery{Search: "ord-2"}, []string{"ORD-2"}},
		{"newest", OrderQuery{Sort: SortNewest}, []string{"ORD-2", "ORD-3", "ORD-1"}},
		{"oldest", OrderQuery{Sort: SortOldest}, []string{"ORD-1", "ORD-3", "ORD-2"}},
		{"amount high", OrderQuery{Sort: SortAmountHigh}, []string{"ORD-2", "ORD-1", "ORD-3"}},
		{"amount low with status", OrderQuery{Status: "processing", Sort: SortAmountLow}, []string{"ORD-3", "ORD-2"}},
		{"no match", OrderQuery{Search: "banana"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, orderIDs(FilterOrders(orders, tt.q)))
		})
	}

	assert.Equal(t, "ORD-1", orders[0].OrderID, "input must not be reordered")
}

func TestCartTotals(t *testing.T) {
	cart := Cart{Items: []CartItem{
		{CartItemID: "a", Price: 120, AfterDiscountPrice: 108, Quantity: 2},
		{CartItemID: "b", Price: 99.99, Quantity: 1},
	}}
	assert.InDelta(t, 315.99, cart.Total(), 0.001)
	assert.Equal(t, []string{"a", "b"}, cart.ItemIDs())
	assert.InDelta(t, 12, cart.Items[0].Discount(), 0.001)
	assert.True(t, Cart{}.Empty())
}

func TestPlantAgeAndSizePricing(t *testing.T) {
	listed := Product{Price: 400, SecondYearPrice: 600, ThirdYearPrice: 800}
	derived := Product{Price: 400}

	assert.Equal(t, 400.0, PlantAgePrice(listed, "1"))
	assert.Equal(t, 600.0, PlantAgePrice(listed, "2"))
	assert.Equal(t, 800.0, PlantAgePrice(listed, "3"))
	assert.Equal(t, 600.0, PlantAgePrice(derived, "2"))
	assert.Equal(t, 800.0, PlantAgePrice(derived, "3"))

	oil := Product{Price: 250, AvailableSizes: []Size{{Size: "500ml", Price: 250}, {Size: "1L", Price: 450}}}
	assert.Equal(t, 450.0, SizePrice(oil, "1L"))
	assert.Equal(t, 250.0, SizePrice(oil, "5L"))
}

func TestRepricedKeepsDiscountPercentage(t *testing.T) {
	item := CartItem{Price: 400, AfterDiscountPrice: 360}
	pct, after := repriced(item, 600)
	assert.Equal(t, 10.0, pct)
	assert.Equal(t, 540.0, after)

	pct, after = repriced(CartItem{Price: 250, AfterDiscountPrice: 250}, 450)
	assert.Zero(t, pct)
	assert.Equal(t, 450.0, after)
}

func TestQuantityLabel(t *testing.T) {
	assert.Equal(t, "3 kg", quantityLabel(CartItem{UnitMeasurement: "1 kg"}, 3))
	assert.Equal(t, "2 g", quantityLabel(CartItem{UnitMeasurement: "100 g"}, 2))
	assert.Equal(t, defaultPlantUM, quantityLabel(CartItem{Category: "Plants", UnitMeasurement: "1 Plant"}, 4))
	assert.Empty(t, quantityLabel(CartItem{}, 2))
}

func TestRegistrationChecks(t *testing.T) {
	valid := Registration{Name: "Asha", Email: "asha@example.in", Phone: "9876543210", Password: "secret1"}
	require.NoError(t, checkRegistration(valid))

	tests := []struct {
		name   string
		mutate func(*Registration)
		field  string
	}{
		{"blank name", func(r *Registration) { r.Name = "   " }, "name"},
		{"short name", func(r *Registration) { r.Name = "A" }, "name"},
		{"org domain", func(r *Registration) { r.Email = "asha@example.org" }, "email"},
		{"not an email", func(r *Registration) { r.Email = "asha.example.com" }, "email"},
		{"short password", func(r *Registration) { r.Password = "12345" }, "password"},
		{"short phone", func(r *Registration) { r.Phone = "98765" }, "phoneNo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.mutate(&r)
			err := checkRegistration(r)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}

	assert.NoError(t, checkEmail("someone@example.org", false), "login accepts any domain")
}

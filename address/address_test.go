package address

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/MrEthical07/storefront/internal/validate"
	"github.com/MrEthical07/storefront/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(city string) Address {
	return Address{
		FirstName:    "Ravi",
		LastName:     "Kumar",
		AddressLine1: "12 Market Road",
		City:         city,
		State:        "Telangana",
		Pincode:      "500075",
		Phone:        "9876543210",
	}
}

func TestValidateMessagesInFormOrder(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*Pair)
		want string
	}{
		{"ok", func(*Pair) {}, ""},
		{"shipping first name", func(p *Pair) { p.Shipping.FirstName = "" }, "Shipping firstName is required"},
		{"billing checked when different", func(p *Pair) {
			p.UseSameAddress = false
			p.Billing = sample("Pune")
			p.Billing.LastName = " "
		}, "Billing lastName is required"},
		{"billing ignored when same", func(p *Pair) { p.Billing = Address{} }, ""},
		{"shipping before billing for same field", func(p *Pair) {
			p.UseSameAddress = false
			p.Billing = Address{}
			p.Shipping.FirstName = ""
		}, "Shipping firstName is required"},
		{"pincode", func(p *Pair) { p.Shipping.Pincode = "5000" }, "Shipping pincode must be 6 digits"},
		{"phone", func(p *Pair) { p.Shipping.Phone = "98765" }, "Shipping phone number must be 10 digits"},
		{"billing pincode", func(p *Pair) {
			p.UseSameAddress = false
			p.Billing = sample("Pune")
			p.Billing.Pincode = "41100a"
		}, "Billing pincode must be 6 digits"},
		{"address line 2 optional", func(p *Pair) { p.Shipping.AddressLine2 = "" }, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := Pair{Shipping: sample("Hyderabad"), UseSameAddress: true}
			tc.mut(&p)
			err := Validate(p)
			if tc.want == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, validate.ErrInvalid))
			assert.Equal(t, tc.want, err.Error())
		})
	}
}

func TestEffective(t *testing.T) {
	p := Pair{Shipping: sample("Hyderabad"), Billing: sample("Pune"), UseSameAddress: true}
	assert.Equal(t, "Hyderabad", p.Effective().Billing.City)

	p.UseSameAddress = false
	assert.Equal(t, "Pune", p.Effective().Billing.City)
}

func TestPrependDoesNotAlias(t *testing.T) {
	list := []Pair{{Shipping: sample("a")}, {Shipping: sample("b")}}
	out := Prepend(list, Pair{Shipping: sample("c")}, 2)
	require.Len(t, out, 2)
	assert.Equal(t, "c", out[0].Shipping.City)
	assert.Equal(t, "a", out[1].Shipping.City)
	assert.Equal(t, "a", list[0].Shipping.City)
}

func TestBookNeverExceedsCapacity(t *testing.T) {
	ctx := context.Background()
	book := NewBook(storage.NewMemoryStore())

	for i := 1; i <= 6; i++ {
		list, err := book.Add(ctx, Pair{Shipping: sample(fmt.Sprintf("city-%d", i)), UseSameAddress: true})
		require.NoError(t, err)
		assert.LessOrEqual(t, len(list), DefaultCapacity)
	}

	list, err := book.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 5)
	assert.Equal(t, "city-6", list[0].Shipping.City, "newest first")
	assert.Equal(t, "city-2", list[4].Shipping.City, "oldest evicted")
	assert.Equal(t, "city-6", list[0].Billing.City, "same-address pairs store billing")

	latest, ok, err := book.Latest(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "city-6", latest.Shipping.City)
}

func TestBookCapacityCannotExceedFive(t *testing.T) {
	ctx := context.Background()
	book := NewBook(storage.NewMemoryStore(), WithCapacity(8))

	for i := 1; i <= 7; i++ {
		_, err := book.Add(ctx, Pair{Shipping: sample(fmt.Sprintf("city-%d", i)), UseSameAddress: true})
		require.NoError(t, err)
	}

	list, err := book.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, DefaultCapacity)
	assert.Equal(t, "city-7", list[0].Shipping.City)
}

func TestBookMsgpackAndClear(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	book := NewBook(store, WithCodec(storage.Msgpack{}), WithCapacity(2))

	for _, c := range []string{"x", "y", "z"} {
		_, err := book.Add(ctx, Pair{Shipping: sample(c), UseSameAddress: true})
		require.NoError(t, err)
	}
	list, err := book.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "z", list[0].Shipping.City)

	require.NoError(t, book.Clear(ctx))
	_, ok, err := book.Latest(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBookRecoversFromCorruptEntry(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, storage.Set(ctx, store, storage.KeySavedAddresses, []byte("{not json")))

	book := NewBook(store)
	_, err := book.List(ctx)
	require.Error(t, err)

	list, err := book.Add(ctx, Pair{Shipping: sample("fresh"), UseSameAddress: true})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

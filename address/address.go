// Package address holds shipping/billing addresses, their checkout
// validation, and the bounded list of recently used pairs.
package address

import (
	"strings"

	"github.com/MrEthical07/storefront/internal/validate"
)

// Address is one postal address as the order API expects it.
type Address struct {
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2"`
	City         string `json:"city"`
	State        string `json:"state"`
	Pincode      string `json:"pincode"`
	Phone        string `json:"phone"`
}

// Pair is the shipping and billing address used for one order.
type Pair struct {
	Shipping       Address `json:"shipping"`
	Billing        Address `json:"billing"`
	UseSameAddress bool    `json:"useSameAddress"`
}

// Effective returns the pair with Billing replaced by Shipping when
// UseSameAddress is set.
func (p Pair) Effective() Pair {
	if p.UseSameAddress {
		p.Billing = p.Shipping
	}
	return p
}

var requiredFields = []struct {
	name string
	get  func(Address) string
}{
	{"firstName", func(a Address) string { return a.FirstName }},
	{"lastName", func(a Address) string { return a.LastName }},
	{"addressLine1", func(a Address) string { return a.AddressLine1 }},
	{"city", func(a Address) string { return a.City }},
	{"state", func(a Address) string { return a.State }},
	{"pincode", func(a Address) string { return a.Pincode }},
	{"phone", func(a Address) string { return a.Phone }},
}

// Validate returns the first problem with p, checked field by field in form
// order. The billing address is only checked when it differs from shipping.
// The returned error matches validate.ErrInvalid.
func Validate(p Pair) error {
	checkBilling := !p.UseSameAddress
	for _, f := range requiredFields {
		if !validate.Check(strings.TrimSpace(f.get(p.Shipping)), "required") {
			return validate.Fail("shipping."+f.name, "Shipping "+f.name+" is required")
		}
		if checkBilling && !validate.Check(strings.TrimSpace(f.get(p.Billing)), "required") {
			return validate.Fail("billing."+f.name, "Billing "+f.name+" is required")
		}
	}
	if !validate.Digits(p.Shipping.Pincode, 6) {
		return validate.Fail("shipping.pincode", "Shipping pincode must be 6 digits")
	}
	if checkBilling && !validate.Digits(p.Billing.Pincode, 6) {
		return validate.Fail("billing.pincode", "Billing pincode must be 6 digits")
	}
	if !validate.Digits(p.Shipping.Phone, 10) {
		return validate.Fail("shipping.phone", "Shipping phone number must be 10 digits")
	}
	if checkBilling && !validate.Digits(p.Billing.Phone, 10) {
		return validate.Fail("billing.phone", "Billing phone number must be 10 digits")
	}
	return nil
}

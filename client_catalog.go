package storefront

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/MrEthical07/storefront/debounce"
	"github.com/MrEthical07/storefront/internal/transport"
	"github.com/MrEthical07/storefront/internal/validate"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// variantFetchLimit bounds concurrent variant requests per product list.
const variantFetchLimit = 8

// Categories lists the product categories.
func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	const fallback = "Failed to load categories"
	var out []Category
	if _, err := c.call(ctx, get("/user/categories", nil), fallback, &out); err != nil {
		return nil, c.fail(ctx, err, fallback)
	}
	return out, nil
}

// Products lists every product without variants.
func (c *Client) Products(ctx context.Context) ([]Product, error) {
	const fallback = "Failed to fetch products"
	var out []Product
	if _, err := c.call(ctx, get("/user/products", nil), fallback, &out); err != nil {
		return nil, c.fail(ctx, err, fallback)
	}
	return out, nil
}

// ProductsByCategory lists a category's products with their variants.
// categoryID "all" lists every product. A product whose variants cannot be
// loaded is returned with none.
func (c *Client) ProductsByCategory(ctx context.Context, categoryID string) ([]Product, error) {
	const fallback = "Failed to fetch products"
	path := "/user/products"
	if categoryID != "" && categoryID != "all" {
		path = "/user/products/category/" + url.PathEscape(categoryID)
	}

	var products []Product
	if _, err := c.call(ctx, get(path, nil), fallback, &products); err != nil {
		return nil, c.fail(ctx, err, fallback)
	}
	if err := c.attachVariants(ctx, products); err != nil {
		return nil, c.fail(ctx, err, fallback)
	}
	return products, nil
}

// Product fetches one product with its prices and sizes.
func (c *Client) Product(ctx context.Context, productID string) (Product, error) {
	const fallback = "Failed to fetch product details"
	p, err := c.fetchProduct(ctx, productID, fallback)
	if err != nil {
		return Product{}, c.fail(ctx, err, fallback)
	}
	return p, nil
}

func (c *Client) fetchProduct(ctx context.Context, productID, fallback string) (Product, error) {
	var p Product
	_, err := c.call(ctx, get("/user/products/get/"+url.PathEscape(productID), nil), fallback, &p)
	return p, err
}

// Variants lists the variants of a product.
func (c *Client) Variants(ctx context.Context, productID string) ([]Variant, error) {
	const fallback = "Failed to fetch product variants"
	out, err := c.fetchVariants(ctx, productID)
	if err != nil {
		return nil, c.fail(ctx, err, fallback)
	}
	return out, nil
}

func (c *Client) fetchVariants(ctx context.Context, productID string) ([]Variant, error) {
	var out []Variant
	_, err := c.call(ctx, get("/user/product-variants/product/"+url.PathEscape(productID), nil),
		"Failed to fetch product variants", &out)
	return out, err
}

// attachVariants fills Variants of every product concurrently.
func (c *Client) attachVariants(ctx context.Context, products []Product) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(variantFetchLimit)
	for i := range products {
		p := &products[i]
		g.Go(func() error {
			vs, err := c.fetchVariants(gctx, p.ProductID)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				c.logger.Debug("variants unavailable",
					zap.String("product_id", p.ProductID), zap.Error(err))
				vs = nil
			}
			p.Variants = vs
			return nil
		})
	}
	return g.Wait()
}

// Search finds products by name with their variants. A blank query returns
// nothing without a request.
func (c *Client) Search(ctx context.Context, query string) ([]Product, error) {
	const fallback = "Failed to search products"
	out, err := c.search(ctx, query)
	if err != nil {
		return nil, c.fail(ctx, err, fallback)
	}
	return out, nil
}

func (c *Client) search(ctx context.Context, query string) ([]Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	var out []Product
	if _, err := c.call(ctx, get("/user/products/search", url.Values{"query": {query}}),
		"Failed to search products", &out); err != nil {
		return nil, err
	}
	if err := c.attachVariants(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// SearchFunc receives debounced search results.
type SearchFunc func(query string, products []Product, err error)

// NewSearch returns a debounced search for type-ahead input. Each Submit
// restarts the quiet period; only the result for the most recently issued
// query reaches onResult. Close it when done.
func (c *Client) NewSearch(onResult SearchFunc) *debounce.Debouncer[string, []Product] {
	return debounce.New(c.cfg.Debounce.SearchQuiet,
		debounce.Func[string, []Product](c.search),
		debounce.Deliver[string, []Product](onResult),
		c.debounceOptions("search")...,
	)
}

// CheckPincode reports whether the storefront delivers to pincode. An
// unknown pincode is reported as not serviceable.
func (c *Client) CheckPincode(ctx context.Context, pincode string) (Serviceability, error) {
	s, err := c.checkPincode(ctx, pincode)
	if err != nil {
		return Serviceability{}, c.fail(ctx, err, "Failed to check pincode")
	}
	return s, nil
}

func (c *Client) checkPincode(ctx context.Context, pincode string) (Serviceability, error) {
	if !validate.Digits(pincode, 6) {
		return Serviceability{}, validate.Fail("pincode", "Pincode must be 6 digits")
	}
	var s Serviceability
	_, err := c.call(ctx, get("/user/pincode/"+pincode, nil), "Failed to check pincode", &s)
	if transport.StatusCode(err) == http.StatusNotFound {
		return Serviceability{Pincode: pincode}, nil
	}
	if err != nil {
		return Serviceability{}, err
	}
	if s.Pincode == "" {
		s.Pincode = pincode
	}
	return s, nil
}

// PincodeFunc receives debounced serviceability results.
type PincodeFunc func(pincode string, s Serviceability, err error)

// NewPincodeCheck returns a debounced serviceability check for pincode
// input. Partial pincodes typed within the quiet period never reach the API.
func (c *Client) NewPincodeCheck(onResult PincodeFunc) *debounce.Debouncer[string, Serviceability] {
	return debounce.New(c.cfg.Debounce.PincodeQuiet,
		debounce.Func[string, Serviceability](c.checkPincode),
		debounce.Deliver[string, Serviceability](onResult),
		c.debounceOptions("pincode")...,
	)
}

func (c *Client) debounceOptions(name string) []debounce.Option {
	return []debounce.Option{
		debounce.WithClock(c.clock),
		debounce.WithContext(c.bgCtx),
		debounce.WithLogger(c.logger.Named("debounce").With(zap.String("input", name))),
		debounce.WithStaleHook(func() { c.metrics.Inc(MetricDebounceStale) }),
	}
}

func get(path string, query url.Values) transport.Request {
	return transport.Request{Method: http.MethodGet, Path: path, Query: query}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	storefront "github.com/MrEthical07/storefront"
	"github.com/MrEthical07/storefront/metrics/export/otel"
	"github.com/MrEthical07/storefront/metrics/export/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func runCategories(ctx context.Context, c *storefront.Client) error {
	cats, err := c.Categories(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME")
	for _, cat := range cats {
		fmt.Fprintf(tw, "%s\t%s\n", cat.CategoryID, cat.CategoryName)
	}
	return tw.Flush()
}

func runSearch(ctx context.Context, c *storefront.Client, args []string) error {
	products, err := c.Search(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	printProducts(products)
	return nil
}

func printProducts(products []storefront.Product) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRODUCT\tNAME\tPRICE\tVARIANTS")
	for _, p := range products {
		names := make([]string, 0, len(p.Variants))
		for _, v := range p.Variants {
			names = append(names, fmt.Sprintf("%s (%s, %.2f)", v.VariantName, v.VariantID, v.AfterDiscountAmount))
		}
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%s\n", p.ProductID, p.ProductName, p.Price, strings.Join(names, ", "))
	}
	_ = tw.Flush()
}

func runPincode(ctx context.Context, c *storefront.Client, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: pincode <pincode>")
	}
	s, err := c.CheckPincode(ctx, args[0])
	if err != nil {
		return err
	}
	if !s.Serviceable {
		fmt.Printf("%s: not serviceable\n", s.Pincode)
		return nil
	}
	fmt.Printf("%s: serviceable, %s, %s, delivery in %s\n", s.Pincode, s.City, s.State, s.DeliveryETA)
	return nil
}

// ensureLogin reuses a stored session when the backend is persistent.
func ensureLogin(ctx context.Context, c *storefront.Client, opts options) error {
	if c.EnsureValid(ctx) {
		return nil
	}
	_, err := c.Login(ctx, opts.email, opts.password)
	return err
}

func runCart(ctx context.Context, c *storefront.Client, opts options) error {
	if err := ensureLogin(ctx, c, opts); err != nil {
		return err
	}
	cart, err := c.Cart(ctx)
	if err != nil {
		return err
	}
	printCart(cart)
	return nil
}

func printCart(cart storefront.Cart) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ITEM\tPRODUCT\tQTY\tUNIT\tPRICE")
	for _, it := range cart.Items {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%.2f\n", it.CartItemID, it.ProductName, it.Quantity, it.UnitMeasurement, it.LineTotal())
	}
	fmt.Fprintf(tw, "\t\t\tTOTAL\t%.2f\n", cart.Total())
	_ = tw.Flush()
}

func runOrders(ctx context.Context, c *storefront.Client, opts options) error {
	if err := ensureLogin(ctx, c, opts); err != nil {
		return err
	}
	orders, err := c.Orders(ctx)
	if err != nil {
		return err
	}
	printOrders(storefront.FilterOrders(orders, storefront.OrderQuery{Sort: storefront.SortNewest}))
	return nil
}

func printOrders(orders []storefront.Order) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ORDER\tSTATUS\tPLACED\tTOTAL\tINVOICE\tITEMS")
	for _, o := range orders {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%s\t%s\n", o.OrderID, o.OrderStatus,
			o.PlacedAt.Format("2006-01-02 15:04"), o.TotalAmount, o.InvoiceID, strings.Join(o.ProductNames, ", "))
	}
	_ = tw.Flush()
}

// runDemo walks one purchase end to end. Payment confirmation only passes
// against the fake API, which does not check gateway signatures.
func runDemo(ctx context.Context, c *storefront.Client, opts options) error {
	if !opts.fake {
		fmt.Fprintln(os.Stderr, "demo confirms a made-up payment; use -fake unless the API accepts it")
	}
	if err := ensureLogin(ctx, c, opts); err != nil {
		return err
	}

	products, err := c.ProductsByCategory(ctx, "all")
	if err != nil {
		return err
	}
	var variantID string
	for _, p := range products {
		if len(p.Variants) > 0 {
			variantID = p.Variants[0].VariantID
			break
		}
	}
	if variantID == "" {
		return errors.New("no product has a variant to buy")
	}

	if err := c.AddToCart(ctx, variantID, ""); err != nil && !errors.Is(err, storefront.ErrAlreadyInCart) {
		return err
	}
	cart, err := c.Cart(ctx)
	if err != nil {
		return err
	}
	printCart(cart)

	pair := storefront.AddressPair{
		Shipping: storefront.Address{
			FirstName: "Ravi", LastName: "Kumar", AddressLine1: "12 Farm Road",
			City: "Hyderabad", State: "Telangana", Pincode: "500075", Phone: "9876543210",
		},
		UseSameAddress: true,
	}
	if _, err := c.CheckPincode(ctx, pair.Shipping.Pincode); err != nil {
		return err
	}
	initiated, err := c.InitiateOrder(ctx, pair, cart)
	if err != nil {
		return err
	}
	fmt.Printf("initiated %s, pay %.2f via %s\n", initiated.OrderID, initiated.TotalAmount, initiated.RazorpayOrderID)

	placed, err := c.ConfirmPayment(ctx, storefront.PaymentConfirmation{
		RazorpayOrderID:   initiated.RazorpayOrderID,
		RazorpayPaymentID: "pay_demo",
		RazorpaySignature: "demo",
		Amount:            fmt.Sprintf("%.2f", initiated.TotalAmount),
		OrderID:           initiated.OrderID,
	})
	if err != nil {
		return err
	}
	fmt.Printf("placed %s (shipping pending: %t)\n", placed.OrderID, placed.ShippingPending)

	orders, err := c.Orders(ctx)
	if err != nil {
		return err
	}
	printOrders(orders)
	return nil
}

func printMetrics(ctx context.Context, c *storefront.Client, withOTel bool) error {
	fmt.Print(prometheus.New(c).Render())
	if !withOTel {
		return nil
	}

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	exp, err := otel.New(provider.Meter("storefront"), c)
	if err != nil {
		return err
	}
	defer func() { _ = exp.Close() }()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		return fmt.Errorf("collect: %w", err)
	}
	fmt.Println("# opentelemetry")
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					fmt.Printf("%s %d\n", m.Name, dp.Value)
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					fmt.Printf("%s %d\n", m.Name, dp.Value)
				}
			}
		}
	}
	return nil
}

package storefront

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"

	"github.com/MrEthical07/storefront/internal/validate"
	"github.com/MrEthical07/storefront/notify"
	"github.com/MrEthical07/storefront/storage"
	"golang.org/x/sync/errgroup"
)

const msgWishlistFailed = "Failed to load wishlist products. Please try again."

// Wishlist returns the saved product ids in the order they were added.
// The wishlist is kept locally and survives logout.
func (c *Client) Wishlist(ctx context.Context) ([]string, error) {
	c.wishMu.Lock()
	defer c.wishMu.Unlock()
	ids, err := c.loadWishlist(ctx)
	if err != nil {
		return nil, c.fail(ctx, err, "Failed to load wishlist")
	}
	return ids, nil
}

// ToggleWishlist adds productID to the wishlist, or removes it when already
// present. It reports whether the product is now in the wishlist.
func (c *Client) ToggleWishlist(ctx context.Context, productID string) (bool, error) {
	if productID == "" {
		return false, c.fail(ctx, validate.Fail("productId", "Product ID is required"), "")
	}
	c.wishMu.Lock()
	defer c.wishMu.Unlock()

	ids, err := c.loadWishlist(ctx)
	if err != nil {
		return false, c.fail(ctx, err, "Failed to update wishlist")
	}
	added := !slices.Contains(ids, productID)
	if added {
		ids = append(ids, productID)
	} else {
		ids = slices.DeleteFunc(ids, func(id string) bool { return id == productID })
	}
	if err := c.saveWishlist(ctx, ids); err != nil {
		return false, c.fail(ctx, err, "Failed to update wishlist")
	}

	if added {
		c.notifier.Notify(ctx, notify.Info("Added to wishlist"))
	} else {
		c.notifier.Notify(ctx, notify.Info("Removed from wishlist"))
	}
	return added, nil
}

// RemoveFromWishlist drops productID. Removing an absent id is not an error.
func (c *Client) RemoveFromWishlist(ctx context.Context, productID string) error {
	c.wishMu.Lock()
	defer c.wishMu.Unlock()

	ids, err := c.loadWishlist(ctx)
	if err != nil {
		return c.fail(ctx, err, "Failed to update wishlist")
	}
	ids = slices.DeleteFunc(ids, func(id string) bool { return id == productID })
	if err := c.saveWishlist(ctx, ids); err != nil {
		return c.fail(ctx, err, "Failed to update wishlist")
	}
	c.notifier.Notify(ctx, notify.Info("Removed from wishlist"))
	return nil
}

// WishlistProducts fetches every wishlisted product with its variants. Any
// failed product fails the whole call.
func (c *Client) WishlistProducts(ctx context.Context) ([]Product, error) {
	c.wishMu.Lock()
	ids, err := c.loadWishlist(ctx)
	c.wishMu.Unlock()
	if err != nil {
		return nil, c.fail(ctx, err, msgWishlistFailed)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	out := make([]Product, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(variantFetchLimit)
	for i, id := range ids {
		g.Go(func() error {
			var p Product
			if _, err := c.call(gctx, get("/user/products/"+url.PathEscape(id), nil), msgWishlistFailed, &p); err != nil {
				return err
			}
			vs, err := c.fetchVariants(gctx, id)
			if err != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			p.Variants = vs
			out[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, c.fail(ctx, err, msgWishlistFailed)
	}
	return out, nil
}

func (c *Client) loadWishlist(ctx context.Context) ([]string, error) {
	raw, err := c.store.Get(ctx, storage.KeyWishlist)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("wishlist: load: %w", err)
	}
	var ids []string
	if err := c.codec.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("wishlist: decode: %w", err)
	}
	return ids, nil
}

func (c *Client) saveWishlist(ctx context.Context, ids []string) error {
	raw, err := c.codec.Marshal(ids)
	if err != nil {
		return fmt.Errorf("wishlist: encode: %w", err)
	}
	if err := storage.Set(ctx, c.store, storage.KeyWishlist, raw); err != nil {
		return fmt.Errorf("wishlist: save: %w", err)
	}
	return nil
}

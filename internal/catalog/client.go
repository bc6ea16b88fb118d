package catalog

import (
	"context"
	"fmt"
	"net/url"

	"github.com/pawmart/pawfront/internal/gateway"
)

// Client exposes the resource backend's listing and order operations.
// All persistence lives behind the backend; this client only shapes
// requests and decodes responses.
type Client struct {
	gw *gateway.Gateway
}

// NewClient creates a catalog client over the given gateway
func NewClient(gw *gateway.Gateway) *Client {
	return &Client{gw: gw}
}

// Listings fetches all listings, optionally filtered by category
func (c *Client) Listings(ctx context.Context, src gateway.SnapshotSource, category Category) ([]Listing, error) {
	path := "/listings"
	if category != "" {
		path += "?category=" + url.QueryEscape(string(category))
	}

	result, err := c.gw.Get(ctx, src, path)
	if err != nil {
		return nil, err
	}

	var listings []Listing
	if err := result.Decode(&listings); err != nil {
		return nil, fmt.Errorf("decoding listings: %w", err)
	}
	return listings, nil
}

// Recent fetches the newest listings for the home page
func (c *Client) Recent(ctx context.Context, src gateway.SnapshotSource, limit int) ([]Listing, error) {
	result, err := c.gw.Get(ctx, src, fmt.Sprintf("/listings?limit=%d&sort=newest", limit))
	if err != nil {
		return nil, err
	}

	var listings []Listing
	if err := result.Decode(&listings); err != nil {
		return nil, fmt.Errorf("decoding listings: %w", err)
	}
	return listings, nil
}

// Listing fetches one listing by ID
func (c *Client) Listing(ctx context.Context, src gateway.SnapshotSource, id string) (*Listing, error) {
	result, err := c.gw.Get(ctx, src, "/listings/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}

	var listing Listing
	if err := result.Decode(&listing); err != nil {
		return nil, fmt.Errorf("decoding listing: %w", err)
	}
	return &listing, nil
}

// MyListings fetches the caller's own listings
func (c *Client) MyListings(ctx context.Context, src gateway.SnapshotSource) ([]Listing, error) {
	result, err := c.gw.Get(ctx, src, "/listings/mine")
	if err != nil {
		return nil, err
	}

	var listings []Listing
	if err := result.Decode(&listings); err != nil {
		return nil, fmt.Errorf("decoding listings: %w", err)
	}
	return listings, nil
}

// CreateListing publishes a new listing. Pets are adoption-only: their
// price is forced to zero regardless of what the form submitted.
func (c *Client) CreateListing(ctx context.Context, src gateway.SnapshotSource, listing NewListing) (*Listing, error) {
	if !listing.Category.Valid() {
		return nil, fmt.Errorf("unknown category: %s", listing.Category)
	}
	if listing.Category == CategoryPets {
		listing.Price = 0
	}

	result, err := c.gw.Post(ctx, src, "/listings", listing)
	if err != nil {
		return nil, err
	}

	var created Listing
	if err := result.Decode(&created); err != nil {
		return nil, fmt.Errorf("decoding created listing: %w", err)
	}
	return &created, nil
}

// UpdateListing replaces a listing the caller owns
func (c *Client) UpdateListing(ctx context.Context, src gateway.SnapshotSource, id string, listing NewListing) (*Listing, error) {
	if listing.Category == CategoryPets {
		listing.Price = 0
	}

	result, err := c.gw.Put(ctx, src, "/listings/"+url.PathEscape(id), listing)
	if err != nil {
		return nil, err
	}

	var updated Listing
	if err := result.Decode(&updated); err != nil {
		return nil, fmt.Errorf("decoding updated listing: %w", err)
	}
	return &updated, nil
}

// DeleteListing removes a listing the caller owns
func (c *Client) DeleteListing(ctx context.Context, src gateway.SnapshotSource, id string) error {
	_, err := c.gw.Delete(ctx, src, "/listings/"+url.PathEscape(id))
	return err
}

// CreateOrder places an order
func (c *Client) CreateOrder(ctx context.Context, src gateway.SnapshotSource, order NewOrder) (*Order, error) {
	if order.Quantity < 1 {
		order.Quantity = 1
	}

	result, err := c.gw.Post(ctx, src, "/orders", order)
	if err != nil {
		return nil, err
	}

	var created Order
	if err := result.Decode(&created); err != nil {
		return nil, fmt.Errorf("decoding created order: %w", err)
	}
	return &created, nil
}

// MyOrders fetches the caller's orders
func (c *Client) MyOrders(ctx context.Context, src gateway.SnapshotSource) ([]Order, error) {
	result, err := c.gw.Get(ctx, src, "/orders")
	if err != nil {
		return nil, err
	}

	var orders []Order
	if err := result.Decode(&orders); err != nil {
		return nil, fmt.Errorf("decoding orders: %w", err)
	}
	return orders, nil
}

// Package catalog models listings and orders as served by the resource
// backend, and normalizes the backend's historically inconsistent field
// names into one canonical schema at the boundary.
package catalog

import "encoding/json"

// Category is a listing category
type Category string

const (
	CategoryPets        Category = "Pets"
	CategoryFood        Category = "Food"
	CategoryAccessories Category = "Accessories"
	CategoryCare        Category = "Care"
)

// Categories lists all valid categories in display order
var Categories = []Category{CategoryPets, CategoryFood, CategoryAccessories, CategoryCare}

// Valid reports whether c is a known category
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Listing is a marketplace listing
type Listing struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    Category `json:"category"`
	Price       float64  `json:"price"`
	ImageURL    string   `json:"imageUrl"`
	Location    string   `json:"location"`
	SellerID    string   `json:"sellerId"`
	SellerName  string   `json:"sellerName"`
	CreatedAt   string   `json:"createdAt"`
}

// Adoption reports whether this is a free adoption listing
func (l *Listing) Adoption() bool {
	return l.Category == CategoryPets
}

// UnmarshalJSON normalizes the backend's field aliases: documents written
// by different app versions use _id/id, name/title, Price/price, and
// image/imageUrl interchangeably.
func (l *Listing) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID          string   `json:"id"`
		MongoID     string   `json:"_id"`
		Title       string   `json:"title"`
		Name        string   `json:"name"`
		Description string   `json:"description"`
		Category    Category `json:"category"`
		Price       *float64 `json:"price"`
		PriceUpper  *float64 `json:"Price"`
		ImageURL    string   `json:"imageUrl"`
		Image       string   `json:"image"`
		Location    string   `json:"location"`
		SellerID    string   `json:"sellerId"`
		SellerName  string   `json:"sellerName"`
		CreatedAt   string   `json:"createdAt"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	l.ID = firstNonEmpty(raw.ID, raw.MongoID)
	l.Title = firstNonEmpty(raw.Title, raw.Name)
	l.Description = raw.Description
	l.Category = raw.Category
	l.ImageURL = firstNonEmpty(raw.ImageURL, raw.Image)
	l.Location = raw.Location
	l.SellerID = raw.SellerID
	l.SellerName = raw.SellerName
	l.CreatedAt = raw.CreatedAt

	switch {
	case raw.Price != nil:
		l.Price = *raw.Price
	case raw.PriceUpper != nil:
		l.Price = *raw.PriceUpper
	}
	return nil
}

// NewListing is the payload for creating or updating a listing
type NewListing struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    Category `json:"category"`
	Price       float64  `json:"price"`
	ImageURL    string   `json:"imageUrl"`
	Location    string   `json:"location"`
}

// Order is a placed order
type Order struct {
	ID           string  `json:"id"`
	ListingID    string  `json:"listingId"`
	ListingTitle string  `json:"listingTitle"`
	BuyerID      string  `json:"buyerId"`
	BuyerName    string  `json:"buyerName"`
	Price        float64 `json:"price"`
	Quantity     int     `json:"quantity"`
	Address      string  `json:"address"`
	Phone        string  `json:"phone"`
	Notes        string  `json:"notes"`
	Date         string  `json:"date"`
}

// UnmarshalJSON normalizes order field aliases from the backend
func (o *Order) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID           string   `json:"id"`
		MongoID      string   `json:"_id"`
		ListingID    string   `json:"listingId"`
		ListingTitle string   `json:"listingTitle"`
		ProductTitle string   `json:"productTitle"`
		BuyerID      string   `json:"buyerId"`
		BuyerName    string   `json:"buyerName"`
		Price        *float64 `json:"price"`
		PriceUpper   *float64 `json:"Price"`
		Quantity     int      `json:"quantity"`
		Address      string   `json:"address"`
		Phone        string   `json:"phone"`
		Notes        string   `json:"notes"`
		Date         string   `json:"date"`
		CreatedAt    string   `json:"createdAt"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	o.ID = firstNonEmpty(raw.ID, raw.MongoID)
	o.ListingID = raw.ListingID
	o.ListingTitle = firstNonEmpty(raw.ListingTitle, raw.ProductTitle)
	o.BuyerID = raw.BuyerID
	o.BuyerName = raw.BuyerName
	o.Quantity = raw.Quantity
	o.Address = raw.Address
	o.Phone = raw.Phone
	o.Notes = raw.Notes
	o.Date = firstNonEmpty(raw.Date, raw.CreatedAt)

	switch {
	case raw.Price != nil:
		o.Price = *raw.Price
	case raw.PriceUpper != nil:
		o.Price = *raw.PriceUpper
	}
	return nil
}

// NewOrder is the payload for placing an order
type NewOrder struct {
	ListingID string `json:"listingId"`
	Quantity  int    `json:"quantity"`
	Address   string `json:"address"`
	Phone     string `json:"phone"`
	Notes     string `json:"notes"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

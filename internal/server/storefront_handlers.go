package server

import (
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/pawmart/pawfront/internal/catalog"
	"github.com/pawmart/pawfront/internal/cookie"
	"github.com/pawmart/pawfront/internal/crypto"
	"github.com/pawmart/pawfront/internal/gateway"
	"github.com/pawmart/pawfront/internal/log"
)

const homePageListings = 8

// StorefrontHandlers serves every listing and order view. All data comes
// from the resource backend through the gateway; a backend failure renders
// the page with an inline notice instead of failing the request.
type StorefrontHandlers struct {
	catalog *catalog.Client
	cookies *cookie.Manager
	csrf    *crypto.CSRFProtection
}

// NewStorefrontHandlers creates the storefront handler set
func NewStorefrontHandlers(catalogClient *catalog.Client, cookies *cookie.Manager, csrf *crypto.CSRFProtection) *StorefrontHandlers {
	return &StorefrontHandlers{
		catalog: catalogClient,
		cookies: cookies,
		csrf:    csrf,
	}
}

func (h *StorefrontHandlers) header(w http.ResponseWriter, r *http.Request) PageHeader {
	header := PageHeader{Flash: cookie.PopFlash(w, r)}
	if snapshot := SnapshotFrom(r); snapshot.Principal != nil {
		header.SignedIn = true
		header.DisplayName = snapshot.Principal.DisplayName
		if header.DisplayName == "" {
			header.DisplayName = snapshot.Principal.Email
		}
	}
	return header
}

func (h *StorefrontHandlers) csrfToken(r *http.Request) string {
	token, err := h.csrf.GenerateToken(SessionID(r))
	if err != nil {
		log.LogErrorWithFields("server", "Failed to generate CSRF token", map[string]any{
			"error": err.Error(),
		})
		return ""
	}
	return token
}

// requireCSRF validates the form's CSRF token; on failure it writes a 403
// and returns false
func (h *StorefrontHandlers) requireCSRF(w http.ResponseWriter, r *http.Request) bool {
	if err := h.csrf.ValidateToken(SessionID(r), r.PostFormValue("csrf_token")); err != nil {
		log.LogWarnWithFields("server", "Rejected form post", map[string]any{
			"path":  r.URL.Path,
			"error": err.Error(),
		})
		http.Error(w, "Forbidden", http.StatusForbidden)
		return false
	}
	return true
}

// loadErrorMessage turns a gateway failure into an inline page notice
func loadErrorMessage(err error) string {
	var reqErr *gateway.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Message
	}
	return "Could not reach the marketplace. Please try again."
}

// Home renders the landing page with recent listings
func (h *StorefrontHandlers) Home(w http.ResponseWriter, r *http.Request) {
	data := ListingsPageData{
		PageHeader: h.header(w, r),
		Title:      "Welcome to PawMart",
		Categories: catalog.Categories,
	}

	listings, err := h.catalog.Recent(r.Context(), requestSnapshotSource{r}, homePageListings)
	if err != nil {
		data.LoadError = loadErrorMessage(err)
	} else {
		data.Listings = listings
	}
	renderTemplate(w, listingsTemplate, data)
}

// Browse renders all listings, optionally filtered by category
func (h *StorefrontHandlers) Browse(w http.ResponseWriter, r *http.Request) {
	category := catalog.Category(r.URL.Query().Get("category"))
	if category != "" && !category.Valid() {
		http.NotFound(w, r)
		return
	}

	title := "Pets & Supplies"
	if category != "" {
		title = string(category)
	}
	data := ListingsPageData{
		PageHeader: h.header(w, r),
		Title:      title,
		Categories: catalog.Categories,
		Selected:   category,
	}

	listings, err := h.catalog.Listings(r.Context(), requestSnapshotSource{r}, category)
	if err != nil {
		data.LoadError = loadErrorMessage(err)
	} else {
		data.Listings = listings
	}
	renderTemplate(w, listingsTemplate, data)
}

// ListingDetail renders one listing with its order form
func (h *StorefrontHandlers) ListingDetail(w http.ResponseWriter, r *http.Request) {
	data := ListingDetailPageData{
		PageHeader: h.header(w, r),
		CSRFToken:  h.csrfToken(r),
	}

	listing, err := h.catalog.Listing(r.Context(), requestSnapshotSource{r}, r.PathValue("id"))
	if err != nil {
		data.LoadError = loadErrorMessage(err)
	} else {
		data.Listing = listing
	}
	renderTemplate(w, listingDetailTemplate, data)
}

// PlaceOrder handles the order form post on a listing
func (h *StorefrontHandlers) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if !h.requireCSRF(w, r) {
		return
	}

	listingID := r.PathValue("id")
	quantity, _ := strconv.Atoi(r.PostFormValue("quantity"))

	_, err := h.catalog.CreateOrder(r.Context(), requestSnapshotSource{r}, catalog.NewOrder{
		ListingID: listingID,
		Quantity:  quantity,
		Address:   r.PostFormValue("address"),
		Phone:     r.PostFormValue("phone"),
		Notes:     r.PostFormValue("notes"),
	})
	if err != nil {
		cookie.SetFlash(w, cookie.Flash{Kind: "error", Message: loadErrorMessage(err)})
		http.Redirect(w, r, "/listing/"+listingID, http.StatusSeeOther)
		return
	}

	cookie.SetFlash(w, cookie.Flash{Kind: "success", Message: "Order placed!"})
	http.Redirect(w, r, "/my-orders", http.StatusSeeOther)
}

// NewListingPage renders the add-listing form
func (h *StorefrontHandlers) NewListingPage(w http.ResponseWriter, r *http.Request) {
	renderTemplate(w, listingFormTemplate, ListingFormPageData{
		PageHeader: h.header(w, r),
		Categories: catalog.Categories,
		CSRFToken:  h.csrfToken(r),
	})
}

// CreateListing handles the add-listing form post
func (h *StorefrontHandlers) CreateListing(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if !h.requireCSRF(w, r) {
		return
	}

	price, _ := strconv.ParseFloat(r.PostFormValue("price"), 64)
	form := catalog.NewListing{
		Title:       r.PostFormValue("title"),
		Description: r.PostFormValue("description"),
		Category:    catalog.Category(r.PostFormValue("category")),
		Price:       price,
		ImageURL:    r.PostFormValue("image"),
		Location:    r.PostFormValue("location"),
	}

	if form.Title == "" || !form.Category.Valid() {
		h.renderListingForm(w, r, form, "Title and a valid category are required.")
		return
	}

	_, err := h.catalog.CreateListing(r.Context(), requestSnapshotSource{r}, form)
	if err != nil {
		h.renderListingForm(w, r, form, loadErrorMessage(err))
		return
	}

	cookie.SetFlash(w, cookie.Flash{Kind: "success", Message: "Listing published."})
	http.Redirect(w, r, "/my-listings", http.StatusSeeOther)
}

func (h *StorefrontHandlers) renderListingForm(w http.ResponseWriter, r *http.Request, form catalog.NewListing, message string) {
	renderTemplate(w, listingFormTemplate, ListingFormPageData{
		PageHeader:   h.header(w, r),
		Categories:   catalog.Categories,
		Form:         form,
		CSRFToken:    h.csrfToken(r),
		ErrorMessage: message,
	})
}

// MyListings renders the seller's own listings
func (h *StorefrontHandlers) MyListings(w http.ResponseWriter, r *http.Request) {
	data := MyListingsPageData{
		PageHeader: h.header(w, r),
		CSRFToken:  h.csrfToken(r),
	}

	listings, err := h.catalog.MyListings(r.Context(), requestSnapshotSource{r})
	if err != nil {
		data.LoadError = loadErrorMessage(err)
	} else {
		data.Listings = listings
	}
	renderTemplate(w, myListingsTemplate, data)
}

// DeleteListing handles the delete form post on my-listings
func (h *StorefrontHandlers) DeleteListing(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if !h.requireCSRF(w, r) {
		return
	}

	err := h.catalog.DeleteListing(r.Context(), requestSnapshotSource{r}, r.PathValue("id"))
	if err != nil {
		cookie.SetFlash(w, cookie.Flash{Kind: "error", Message: loadErrorMessage(err)})
	} else {
		cookie.SetFlash(w, cookie.Flash{Kind: "success", Message: "Listing deleted."})
	}
	http.Redirect(w, r, "/my-listings", http.StatusSeeOther)
}

// MyOrders renders the buyer's orders
func (h *StorefrontHandlers) MyOrders(w http.ResponseWriter, r *http.Request) {
	data := MyOrdersPageData{PageHeader: h.header(w, r)}

	orders, err := h.catalog.MyOrders(r.Context(), requestSnapshotSource{r})
	if err != nil {
		data.LoadError = loadErrorMessage(err)
	} else {
		data.Orders = orders
	}
	renderTemplate(w, myOrdersTemplate, data)
}

// ExportOrders downloads the caller's orders as a CSV report
func (h *StorefrontHandlers) ExportOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.catalog.MyOrders(r.Context(), requestSnapshotSource{r})
	if err != nil {
		cookie.SetFlash(w, cookie.Flash{Kind: "error", Message: loadErrorMessage(err)})
		http.Redirect(w, r, "/my-orders", http.StatusSeeOther)
		return
	}

	buyer := ""
	if snapshot := SnapshotFrom(r); snapshot.Principal != nil {
		buyer = snapshot.Principal.DisplayName
		if buyer == "" {
			buyer = snapshot.Principal.Email
		}
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="my-orders.csv"`)

	writer := csv.NewWriter(w)
	_ = writer.Write([]string{"Product", "Buyer", "Price", "Qty", "Address", "Date"})
	for _, order := range orders {
		_ = writer.Write([]string{
			order.ListingTitle,
			buyer,
			fmt.Sprintf("%.2f", order.Price),
			strconv.Itoa(order.Quantity),
			order.Address,
			order.Date,
		})
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		log.LogErrorWithFields("server", "CSV export failed", map[string]any{
			"error": err.Error(),
		})
	}
}

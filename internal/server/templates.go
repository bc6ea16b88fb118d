package server

import (
	_ "embed"
	"html/template"
	"net/http"

	"github.com/pawmart/pawfront/internal/catalog"
	"github.com/pawmart/pawfront/internal/cookie"
	"github.com/pawmart/pawfront/internal/log"
)

//go:embed templates/pending.html
var pendingTemplateHTML string

//go:embed templates/signin.html
var signinTemplateHTML string

//go:embed templates/register.html
var registerTemplateHTML string

//go:embed templates/forgot_password.html
var forgotPasswordTemplateHTML string

//go:embed templates/listings.html
var listingsTemplateHTML string

//go:embed templates/listing_detail.html
var listingDetailTemplateHTML string

//go:embed templates/listing_form.html
var listingFormTemplateHTML string

//go:embed templates/my_listings.html
var myListingsTemplateHTML string

//go:embed templates/my_orders.html
var myOrdersTemplateHTML string

//go:embed templates/admin.html
var adminTemplateHTML string

var (
	pendingTemplate        = template.Must(template.New("pending").Parse(pendingTemplateHTML))
	signinTemplate         = template.Must(template.New("signin").Parse(signinTemplateHTML))
	registerTemplate       = template.Must(template.New("register").Parse(registerTemplateHTML))
	forgotPasswordTemplate = template.Must(template.New("forgot_password").Parse(forgotPasswordTemplateHTML))
	listingsTemplate       = template.Must(template.New("listings").Parse(listingsTemplateHTML))
	listingDetailTemplate  = template.Must(template.New("listing_detail").Parse(listingDetailTemplateHTML))
	listingFormTemplate    = template.Must(template.New("listing_form").Parse(listingFormTemplateHTML))
	myListingsTemplate     = template.Must(template.New("my_listings").Parse(myListingsTemplateHTML))
	myOrdersTemplate       = template.Must(template.New("my_orders").Parse(myOrdersTemplateHTML))
	adminTemplate          = template.Must(template.New("admin").Parse(adminTemplateHTML))
)

// PageHeader is shared chrome for every page
type PageHeader struct {
	SignedIn    bool
	DisplayName string
	Flash       *cookie.Flash
}

// SignInPageData feeds the sign-in page
type SignInPageData struct {
	PageHeader
	ReturnToken  string
	GoogleURL    string
	Email        string
	ErrorMessage string
}

// RegisterPageData feeds the registration page
type RegisterPageData struct {
	PageHeader
	Email        string
	DisplayName  string
	AvatarURL    string
	ErrorMessage string
}

// ForgotPasswordPageData feeds the password-reset request page
type ForgotPasswordPageData struct {
	PageHeader
	Email        string
	ErrorMessage string
}

// ListingsPageData feeds the home and browse pages
type ListingsPageData struct {
	PageHeader
	Title      string
	Categories []catalog.Category
	Selected   catalog.Category
	Listings   []catalog.Listing
	LoadError  string
}

// ListingDetailPageData feeds the listing detail / order page
type ListingDetailPageData struct {
	PageHeader
	Listing   *catalog.Listing
	CSRFToken string
	LoadError string
}

// ListingFormPageData feeds the add-listing page
type ListingFormPageData struct {
	PageHeader
	Categories   []catalog.Category
	Form         catalog.NewListing
	CSRFToken    string
	ErrorMessage string
}

// MyListingsPageData feeds the seller's own-listings page
type MyListingsPageData struct {
	PageHeader
	Listings  []catalog.Listing
	CSRFToken string
	LoadError string
}

// MyOrdersPageData feeds the buyer's orders page
type MyOrdersPageData struct {
	PageHeader
	Orders    []catalog.Order
	LoadError string
}

// AdminPageData feeds the admin dashboard
type AdminPageData struct {
	PageHeader
	Users       []AdminUserRow
	Sessions    []AdminSessionRow
	CSRFToken   string
	Message     string
	MessageType string
}

// AdminUserRow is one user in the dashboard
type AdminUserRow struct {
	ID          string
	Email       string
	DisplayName string
	Enabled     bool
	FirstSeen   string
	LastSeen    string
}

// AdminSessionRow is one live session in the dashboard
type AdminSessionRow struct {
	ID     string
	Status string
	Email  string
}

func renderTemplate(w http.ResponseWriter, tmpl *template.Template, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		log.LogErrorWithFields("server", "Template rendering failed", map[string]any{
			"template": tmpl.Name(),
			"error":    err.Error(),
		})
	}
}

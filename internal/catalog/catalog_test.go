package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawmart/pawfront/internal/gateway"
	"github.com/pawmart/pawfront/internal/session"
)

type anonymous struct{}

func (anonymous) Snapshot() session.Snapshot { return session.Anonymous }

func TestListingUnmarshalNormalizesAliases(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Listing
	}{
		{
			name: "canonical fields",
			raw:  `{"id":"1","title":"Hamster wheel","category":"Accessories","price":12.5,"imageUrl":"https://img/x.png"}`,
			want: Listing{ID: "1", Title: "Hamster wheel", Category: CategoryAccessories, Price: 12.5, ImageURL: "https://img/x.png"},
		},
		{
			name: "legacy mongo fields",
			raw:  `{"_id":"abc","name":"Golden retriever","category":"Pets","Price":0,"image":"https://img/dog.png"}`,
			want: Listing{ID: "abc", Title: "Golden retriever", Category: CategoryPets, Price: 0, ImageURL: "https://img/dog.png"},
		},
		{
			name: "canonical wins over alias",
			raw:  `{"id":"1","_id":"abc","title":"Cat tree","name":"old name","category":"Accessories","price":30}`,
			want: Listing{ID: "1", Title: "Cat tree", Category: CategoryAccessories, Price: 30},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Listing
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOrderUnmarshalNormalizesAliases(t *testing.T) {
	raw := `{"_id":"o1","productTitle":"Parrot food","buyerName":"Alice","Price":8,"quantity":2,"address":"12 Main St","createdAt":"2025-03-01"}`

	var got Order
	require.NoError(t, json.Unmarshal([]byte(raw), &got))

	assert.Equal(t, "o1", got.ID)
	assert.Equal(t, "Parrot food", got.ListingTitle)
	assert.Equal(t, 8.0, got.Price)
	assert.Equal(t, 2, got.Quantity)
	assert.Equal(t, "2025-03-01", got.Date)
}

func TestCategoryValid(t *testing.T) {
	assert.True(t, CategoryPets.Valid())
	assert.True(t, CategoryCare.Valid())
	assert.False(t, Category("Vehicles").Valid())
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	backend := httptest.NewServer(handler)
	t.Cleanup(backend.Close)
	return NewClient(gateway.New(backend.URL, nil))
}

func TestCreateListingForcesAdoptionPriceToZero(t *testing.T) {
	var got NewListing
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","title":"Tabby cat","category":"Pets","price":0}`))
	}))

	created, err := client.CreateListing(context.Background(), anonymous{}, NewListing{
		Title:    "Tabby cat",
		Category: CategoryPets,
		Price:    250,
	})
	require.NoError(t, err)

	assert.Equal(t, 0.0, got.Price)
	assert.Equal(t, 0.0, created.Price)
}

func TestCreateListingRejectsUnknownCategory(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("backend must not be called")
	}))

	_, err := client.CreateListing(context.Background(), anonymous{}, NewListing{
		Title:    "Mystery",
		Category: "Vehicles",
	})
	assert.Error(t, err)
}

func TestUpdateListingForcesAdoptionPriceToZero(t *testing.T) {
	var got NewListing
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/listings/42", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"42","title":"Beagle puppy","category":"Pets","price":0}`))
	}))

	updated, err := client.UpdateListing(context.Background(), anonymous{}, "42", NewListing{
		Title:    "Beagle puppy",
		Category: CategoryPets,
		Price:    100,
	})
	require.NoError(t, err)

	assert.Equal(t, 0.0, got.Price)
	assert.Equal(t, "42", updated.ID)
}

func TestListingsByCategory(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/listings", r.URL.Path)
		assert.Equal(t, "Food", r.URL.Query().Get("category"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"1","title":"Dog kibble","category":"Food","price":20}]`))
	}))

	listings, err := client.Listings(context.Background(), anonymous{}, CategoryFood)
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, "Dog kibble", listings[0].Title)
}

func TestCreateOrderDefaultsQuantity(t *testing.T) {
	var got NewOrder
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"o1","listingId":"1","quantity":1}`))
	}))

	_, err := client.CreateOrder(context.Background(), anonymous{}, NewOrder{ListingID: "1"})
	require.NoError(t, err)
	assert.Equal(t, 1, got.Quantity)
}

func TestDeleteListingSurfacesBackendError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"not your listing"}`))
	}))

	err := client.DeleteListing(context.Background(), anonymous{}, "42")
	var reqErr *gateway.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusForbidden, reqErr.Status)
	assert.Equal(t, "not your listing", reqErr.Message)
}

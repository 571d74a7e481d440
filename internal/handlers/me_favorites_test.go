package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/anuntul/api/internal/domain"
	"github.com/anuntul/api/internal/services"
)

type stubFavoriteService struct {
	listFn   func(ctx context.Context, userID string) ([]domain.FavoriteListing, error)
	addFn    func(ctx context.Context, userID, listingID string) (bool, error)
	removeFn func(ctx context.Context, userID, listingID string) error
}

func (s *stubFavoriteService) List(ctx context.Context, userID string) ([]domain.FavoriteListing, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, userID)
}

func (s *stubFavoriteService) Add(ctx context.Context, userID, listingID string) (bool, error) {
	if s.addFn == nil {
		return true, nil
	}
	return s.addFn(ctx, userID, listingID)
}

func (s *stubFavoriteService) Remove(ctx context.Context, userID, listingID string) error {
	if s.removeFn == nil {
		return nil
	}
	return s.removeFn(ctx, userID, listingID)
}

var _ services.FavoriteService = (*stubFavoriteService)(nil)

func newMeTestRouter(t *testing.T, favorites services.FavoriteService, listings services.ListingService) chi.Router {
	t.Helper()

	if favorites == nil {
		favorites = &stubFavoriteService{}
	}
	if listings == nil {
		listings = &stubListingService{}
	}

	handlers, err := NewMeHandlers(MeHandlersDeps{
		Favorites: favorites,
		Listings:  listings,
	})
	if err != nil {
		t.Fatalf("NewMeHandlers returned error: %v", err)
	}

	r := chi.NewRouter()
	handlers.Routes(r)
	return r
}

func TestListFavorites(t *testing.T) {
	addedAt := time.Date(2026, time.August, 29, 18, 30, 0, 0, time.UTC)
	favorites := &stubFavoriteService{
		listFn: func(_ context.Context, userID string) ([]domain.FavoriteListing, error) {
			if userID != "user-1" {
				t.Fatalf("unexpected user id %q", userID)
			}
			return []domain.FavoriteListing{{ListingID: "lst_1", AddedAt: addedAt}}, nil
		},
	}
	router := newMeTestRouter(t, favorites, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/favorites", nil, "user-1"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}

	var body struct {
		Items []struct {
			ListingID string `json:"listingId"`
			AddedAt   string `json:"addedAt"`
		} `json:"items"`
	}
	decodeBody(t, rec, &body)
	if len(body.Items) != 1 || body.Items[0].ListingID != "lst_1" {
		t.Fatalf("unexpected items %+v", body.Items)
	}
	if body.Items[0].AddedAt != "2026-08-29T18:30:00Z" {
		t.Fatalf("unexpected addedAt %q", body.Items[0].AddedAt)
	}
}

func TestListFavoritesRequiresAuth(t *testing.T) {
	router := newMeTestRouter(t, nil, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/favorites", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestAddFavoriteStatuses(t *testing.T) {
	created := true
	favorites := &stubFavoriteService{
		addFn: func(_ context.Context, _, _ string) (bool, error) {
			return created, nil
		},
	}
	router := newMeTestRouter(t, favorites, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPut, "/favorites/lst_1", nil, "user-1"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 for new favorite got %d", rec.Code)
	}

	created = false
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPut, "/favorites/lst_1", nil, "user-1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for existing favorite got %d", rec.Code)
	}
}

func TestAddFavoriteLimitReached(t *testing.T) {
	favorites := &stubFavoriteService{
		addFn: func(_ context.Context, _, _ string) (bool, error) {
			return false, services.ErrFavoriteLimitReached
		},
	}
	router := newMeTestRouter(t, favorites, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPut, "/favorites/lst_1", nil, "user-1"))

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", rec.Code)
	}

	var body struct {
		Error string `json:"error"`
	}
	decodeBody(t, rec, &body)
	if body.Error != "favorite_limit_reached" {
		t.Fatalf("expected favorite_limit_reached got %q", body.Error)
	}
}

func TestAddFavoriteMissingListing(t *testing.T) {
	favorites := &stubFavoriteService{
		addFn: func(_ context.Context, _, _ string) (bool, error) {
			return false, services.ErrFavoriteListingNotFound
		},
	}
	router := newMeTestRouter(t, favorites, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPut, "/favorites/lst_missing", nil, "user-1"))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}

func TestRemoveFavorite(t *testing.T) {
	var removed string
	favorites := &stubFavoriteService{
		removeFn: func(_ context.Context, _, listingID string) error {
			removed = listingID
			return nil
		},
	}
	router := newMeTestRouter(t, favorites, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodDelete, "/favorites/lst_1", nil, "user-1"))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", rec.Code)
	}
	if removed != "lst_1" {
		t.Fatalf("expected removal of lst_1 got %q", removed)
	}
}

func TestMyListingsScopedToCaller(t *testing.T) {
	var captured domain.ListingFilter
	listings := &stubListingService{
		searchFn: func(_ context.Context, filter domain.ListingFilter) (domain.ListingPage, error) {
			captured = filter
			return domain.ListingPage{}, nil
		},
	}
	router := newMeTestRouter(t, nil, listings)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/listings?status=inactive&userId=user-2", nil, "user-1"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if captured.UserID != "user-1" {
		t.Fatalf("expected filter forced to caller, got %q", captured.UserID)
	}
	if captured.Status != domain.ListingStatusInactive {
		t.Fatalf("expected status inactive got %q", captured.Status)
	}
}

func TestUpdateMyListingStatus(t *testing.T) {
	var captured services.UpdateListingStatusCommand
	listings := &stubListingService{
		updateStatusFn: func(_ context.Context, cmd services.UpdateListingStatusCommand) (domain.Listing, error) {
			captured = cmd
			return domain.Listing{ID: cmd.ListingID, Status: cmd.Status}, nil
		},
	}
	router := newMeTestRouter(t, nil, listings)

	body := strings.NewReader(`{"status":"sold"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPatch, "/listings/lst_1/status", body, "user-1"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body %s", rec.Code, rec.Body.String())
	}
	if captured.ActorID != "user-1" || captured.ActorRole != "user" {
		t.Fatalf("unexpected actor %q/%q", captured.ActorID, captured.ActorRole)
	}
	if captured.Status != domain.ListingStatusSold {
		t.Fatalf("expected sold got %q", captured.Status)
	}
}

func TestDeleteMyListingForbidden(t *testing.T) {
	listings := &stubListingService{
		deleteFn: func(_ context.Context, _ services.DeleteListingCommand) error {
			return services.ErrListingUnauthorized
		},
	}
	router := newMeTestRouter(t, nil, listings)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodDelete, "/listings/lst_1", nil, "user-1"))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rec.Code)
	}
}

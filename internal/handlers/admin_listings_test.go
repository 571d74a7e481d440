package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/anuntul/api/internal/domain"
	"github.com/anuntul/api/internal/platform/auth"
	"github.com/anuntul/api/internal/services"
)

func newAdminTestRouter(t *testing.T, listings services.ListingService) chi.Router {
	t.Helper()

	handlers, err := NewAdminHandlers(AdminHandlersDeps{Listings: listings})
	if err != nil {
		t.Fatalf("NewAdminHandlers returned error: %v", err)
	}

	r := chi.NewRouter()
	handlers.Routes(r)
	return r
}

func adminRequest(method, target string, body *strings.Reader) *http.Request {
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, body)
	}
	identity := &auth.Identity{UID: "admin-1", Roles: []string{auth.RoleAdmin}}
	return req.WithContext(auth.WithIdentity(req.Context(), identity))
}

func TestAdminUpdateListingStatus(t *testing.T) {
	var captured services.UpdateListingStatusCommand
	listings := &stubListingService{
		updateStatusFn: func(_ context.Context, cmd services.UpdateListingStatusCommand) (domain.Listing, error) {
			captured = cmd
			return domain.Listing{ID: cmd.ListingID, Status: cmd.Status}, nil
		},
	}
	router := newAdminTestRouter(t, listings)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, adminRequest(http.MethodPatch, "/listings/lst_1/status", strings.NewReader(`{"status":"hidden"}`)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body %s", rec.Code, rec.Body.String())
	}
	if captured.ListingID != "lst_1" {
		t.Fatalf("unexpected listing id %q", captured.ListingID)
	}
	if captured.Status != domain.ListingStatusHidden {
		t.Fatalf("expected hidden got %q", captured.Status)
	}
	if captured.ActorID != "admin-1" || captured.ActorRole != auth.RoleAdmin {
		t.Fatalf("unexpected actor %q/%q", captured.ActorID, captured.ActorRole)
	}

	var body struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	decodeBody(t, rec, &body)
	if body.ID != "lst_1" || body.Status != "hidden" {
		t.Fatalf("unexpected response %+v", body)
	}
}

func TestAdminUpdateListingStatusRejectsUnknown(t *testing.T) {
	router := newAdminTestRouter(t, &stubListingService{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, adminRequest(http.MethodPatch, "/listings/lst_1/status", strings.NewReader(`{"status":"archived"}`)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestAdminUpdateListingStatusInvalidTransition(t *testing.T) {
	listings := &stubListingService{
		updateStatusFn: func(_ context.Context, _ services.UpdateListingStatusCommand) (domain.Listing, error) {
			return domain.Listing{}, services.ErrListingInvalidState
		},
	}
	router := newAdminTestRouter(t, listings)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, adminRequest(http.MethodPatch, "/listings/lst_1/status", strings.NewReader(`{"status":"active"}`)))

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", rec.Code)
	}

	var body struct {
		Error string `json:"error"`
	}
	decodeBody(t, rec, &body)
	if body.Error != "invalid_status_transition" {
		t.Fatalf("expected invalid_status_transition got %q", body.Error)
	}
}

func TestAdminDeleteListing(t *testing.T) {
	var captured services.DeleteListingCommand
	listings := &stubListingService{
		deleteFn: func(_ context.Context, cmd services.DeleteListingCommand) error {
			captured = cmd
			return nil
		},
	}
	router := newAdminTestRouter(t, listings)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, adminRequest(http.MethodDelete, "/listings/lst_1", nil))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", rec.Code)
	}
	if captured.ListingID != "lst_1" || captured.ActorRole != auth.RoleAdmin {
		t.Fatalf("unexpected command %+v", captured)
	}
}

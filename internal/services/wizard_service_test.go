package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/anuntul/api/internal/catalog"
	"github.com/anuntul/api/internal/wizard"
)

type stubCreator struct {
	id    string
	err   error
	calls int
}

func (s *stubCreator) CreateListing(_ context.Context, _ wizard.Payload) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.id, nil
}

func newTestWizardService(t *testing.T, creator wizard.ListingCreator) (WizardService, *wizard.SessionStore) {
	t.Helper()
	store, err := wizard.NewSessionStore(wizard.SessionStoreDeps{
		Tree:  catalog.LoadDefault(),
		Clock: func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("new session store: %v", err)
	}
	submitter, err := wizard.NewSubmitter(wizard.SubmitterDeps{Listings: creator})
	if err != nil {
		t.Fatalf("new submitter: %v", err)
	}
	service, err := NewWizardService(WizardServiceDeps{Store: store, Submitter: submitter})
	if err != nil {
		t.Fatalf("new wizard service: %v", err)
	}
	return service, store
}

func sPtr(s string) *string   { return &s }
func fPtr(f float64) *float64 { return &f }

func completeForm(t *testing.T, ctx context.Context, service WizardService, sessionID, userID string) {
	t.Helper()
	if _, err := service.UpdateForm(ctx, sessionID, userID, wizard.FormPatch{CategoryID: sPtr("vehicule")}); err != nil {
		t.Fatalf("update form: %v", err)
	}
	if _, err := service.UpdateForm(ctx, sessionID, userID, wizard.FormPatch{SubcategoryID: sPtr("masini")}); err != nil {
		t.Fatalf("update form: %v", err)
	}
	if _, err := service.UpdateForm(ctx, sessionID, userID, wizard.FormPatch{
		Title:       sPtr("Vand Dacia Logan"),
		Description: sPtr("Stare foarte buna, un singur proprietar."),
		Price:       fPtr(3500),
		LocationID:  sPtr("cluj"),
		Phone:       sPtr("0740123456"),
	}); err != nil {
		t.Fatalf("update form: %v", err)
	}
}

func TestAdvanceGatesOnCurrentStepValidation(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestWizardService(t, &stubCreator{id: "lst_1"})

	session, err := service.StartSession(ctx, "user-1")
	if err != nil {
		t.Fatalf("start session: %v", err)
	}

	// No category selected yet: the session stays on step 0 with errors.
	session, err = service.Advance(ctx, session.ID(), "user-1")
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if session.CurrentStep() != 0 {
		t.Fatalf("expected to stay on step 0, got %d", session.CurrentStep())
	}
	if len(session.Errors()["categoryId"]) == 0 {
		t.Fatalf("expected category error recorded, got %v", session.Errors())
	}

	if _, err := service.UpdateForm(ctx, session.ID(), "user-1", wizard.FormPatch{CategoryID: sPtr("vehicule")}); err != nil {
		t.Fatalf("update form: %v", err)
	}
	session, err = service.Advance(ctx, session.ID(), "user-1")
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if session.CurrentStep() != 1 {
		t.Fatalf("expected step 1 after valid advance, got %d", session.CurrentStep())
	}
}

func TestSubmitTearsDownSession(t *testing.T) {
	ctx := context.Background()
	creator := &stubCreator{id: "lst_1"}
	service, store := newTestWizardService(t, creator)

	session, err := service.StartSession(ctx, "user-1")
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	completeForm(t, ctx, service, session.ID(), "user-1")

	listingID, err := service.Submit(ctx, session.ID(), "user-1")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if listingID != "lst_1" {
		t.Fatalf("expected lst_1, got %s", listingID)
	}
	if creator.calls != 1 {
		t.Fatalf("expected one create call, got %d", creator.calls)
	}
	if _, err := store.Get(session.ID(), "user-1"); !errors.Is(err, wizard.ErrSessionNotFound) {
		t.Fatalf("expected session discarded after submit, got %v", err)
	}
}

func TestSubmitKeepsSessionOnRejection(t *testing.T) {
	ctx := context.Background()
	creator := &stubCreator{err: errors.New("backend down")}
	service, store := newTestWizardService(t, creator)

	session, err := service.StartSession(ctx, "user-1")
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	completeForm(t, ctx, service, session.ID(), "user-1")

	if _, err := service.Submit(ctx, session.ID(), "user-1"); !errors.Is(err, wizard.ErrSubmissionRejected) {
		t.Fatalf("expected ErrSubmissionRejected, got %v", err)
	}
	// The session survives so the user can correct and retry.
	if _, err := store.Get(session.ID(), "user-1"); err != nil {
		t.Fatalf("expected session retained after rejection, got %v", err)
	}
}

func TestWizardServiceEnforcesOwnership(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestWizardService(t, &stubCreator{id: "lst_1"})

	session, err := service.StartSession(ctx, "user-1")
	if err != nil {
		t.Fatalf("start session: %v", err)
	}

	if _, err := service.GetSession(ctx, session.ID(), "user-2"); !errors.Is(err, wizard.ErrSessionForbidden) {
		t.Fatalf("expected ErrSessionForbidden, got %v", err)
	}
	if _, err := service.Advance(ctx, session.ID(), "user-2"); !errors.Is(err, wizard.ErrSessionForbidden) {
		t.Fatalf("expected ErrSessionForbidden on advance, got %v", err)
	}
}

func TestDiscardRemovesSession(t *testing.T) {
	ctx := context.Background()
	service, store := newTestWizardService(t, &stubCreator{id: "lst_1"})

	session, err := service.StartSession(ctx, "user-1")
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	if err := service.Discard(ctx, session.ID(), "user-1"); err != nil {
		t.Fatalf("discard: %v", err)
	}
	if _, err := store.Get(session.ID(), "user-1"); !errors.Is(err, wizard.ErrSessionNotFound) {
		t.Fatalf("expected session removed, got %v", err)
	}
}

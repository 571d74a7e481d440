package services

import (
	"context"
	"errors"

	"github.com/anuntul/api/internal/wizard"
)

// WizardServiceDeps bundles collaborators for the wizard service.
type WizardServiceDeps struct {
	Store     *wizard.SessionStore
	Submitter *wizard.Submitter
}

type wizardService struct {
	store     *wizard.SessionStore
	submitter *wizard.Submitter
}

// NewWizardService wires dependencies into a concrete WizardService implementation.
func NewWizardService(deps WizardServiceDeps) (WizardService, error) {
	if deps.Store == nil {
		return nil, errors.New("wizard service: session store is required")
	}
	if deps.Submitter == nil {
		return nil, errors.New("wizard service: submitter is required")
	}
	return &wizardService{
		store:     deps.Store,
		submitter: deps.Submitter,
	}, nil
}

func (s *wizardService) StartSession(_ context.Context, userID string) (*wizard.Session, error) {
	return s.store.Create(userID)
}

func (s *wizardService) GetSession(_ context.Context, sessionID, userID string) (*wizard.Session, error) {
	return s.store.Get(sessionID, userID)
}

func (s *wizardService) UpdateForm(ctx context.Context, sessionID, userID string, patch wizard.FormPatch) (*wizard.Session, error) {
	session, err := s.GetSession(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	session.UpdateFormData(patch)
	return session, nil
}

// Advance validates the current step and moves forward only when it passes;
// a failing step keeps the session in place with its errors recorded.
func (s *wizardService) Advance(ctx context.Context, sessionID, userID string) (*wizard.Session, error) {
	session, err := s.GetSession(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session.Validate() {
		session.NextStep()
	}
	return session, nil
}

func (s *wizardService) Back(ctx context.Context, sessionID, userID string) (*wizard.Session, error) {
	session, err := s.GetSession(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	session.PrevStep()
	return session, nil
}

func (s *wizardService) GoTo(ctx context.Context, sessionID, userID string, step int) (*wizard.Session, error) {
	session, err := s.GetSession(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	session.GoToStep(step)
	return session, nil
}

func (s *wizardService) Validate(ctx context.Context, sessionID, userID string) (*wizard.Session, bool, error) {
	session, err := s.GetSession(ctx, sessionID, userID)
	if err != nil {
		return nil, false, err
	}
	ok := session.Validate()
	return session, ok, nil
}

func (s *wizardService) Submit(ctx context.Context, sessionID, userID string) (string, error) {
	session, err := s.GetSession(ctx, sessionID, userID)
	if err != nil {
		return "", err
	}

	listingID, err := s.submitter.Submit(ctx, session)
	if err != nil {
		return "", err
	}

	// A published wizard is done; the session is torn down so a fresh one
	// starts clean.
	s.store.Delete(session.ID())
	return listingID, nil
}

func (s *wizardService) Discard(ctx context.Context, sessionID, userID string) error {
	session, err := s.GetSession(ctx, sessionID, userID)
	if err != nil {
		return err
	}
	s.store.Delete(session.ID())
	return nil
}

var _ WizardService = (*wizardService)(nil)

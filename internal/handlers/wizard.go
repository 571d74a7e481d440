package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/anuntul/api/internal/catalog"
	"github.com/anuntul/api/internal/platform/auth"
	"github.com/anuntul/api/internal/platform/httpx"
	"github.com/anuntul/api/internal/platform/storage"
	"github.com/anuntul/api/internal/services"
	"github.com/anuntul/api/internal/wizard"
)

const (
	defaultUploadURLValidity = 15 * time.Minute
	maxUploadSize            = 10 << 20
)

var allowedImageContentTypes = []string{"image/jpeg", "image/png", "image/webp"}

// UploadSigner produces signed URLs for direct-to-bucket uploads.
type UploadSigner interface {
	SignedURL(ctx context.Context, bucket, object string, opts storage.SignedURLOptions) (storage.SignedURLResult, error)
}

// WizardHandlers serves the authenticated wizard session endpoints.
type WizardHandlers struct {
	wizard      services.WizardService
	tree        *catalog.Tree
	uploads     UploadSigner
	bucket      string
	uploadValid time.Duration
	newUploadID func() string
	limiter     RateLimiter
}

// WizardHandlersDeps bundles collaborators for WizardHandlers.
type WizardHandlersDeps struct {
	Wizard           services.WizardService
	Tree             *catalog.Tree
	Uploads          UploadSigner
	Bucket           string
	UploadValidity   time.Duration
	UploadIDGen      func() string
	SessionRateLimit RateLimiter
}

// NewWizardHandlers constructs the wizard endpoint handlers. The upload signer
// is optional; without it the upload-url endpoint reports unavailability.
func NewWizardHandlers(deps WizardHandlersDeps) (*WizardHandlers, error) {
	if deps.Wizard == nil {
		return nil, errors.New("wizard handlers: wizard service is required")
	}
	if deps.Tree == nil {
		return nil, errors.New("wizard handlers: catalog tree is required")
	}

	uploadValid := deps.UploadValidity
	if uploadValid <= 0 {
		uploadValid = defaultUploadURLValidity
	}

	return &WizardHandlers{
		wizard:      deps.Wizard,
		tree:        deps.Tree,
		uploads:     deps.Uploads,
		bucket:      deps.Bucket,
		uploadValid: uploadValid,
		newUploadID: deps.UploadIDGen,
		limiter:     deps.SessionRateLimit,
	}, nil
}

// Routes registers the wizard endpoints on the provided router.
func (h *WizardHandlers) Routes(r chi.Router) {
	r.Post("/sessions", h.startSession)
	r.Route("/sessions/{sessionID}", func(session chi.Router) {
		session.Get("/", h.getSession)
		session.Delete("/", h.discardSession)
		session.Patch("/form", h.updateForm)
		session.Post("/advance", h.advance)
		session.Post("/back", h.back)
		session.Post("/goto", h.goTo)
		session.Post("/validate", h.validate)
		session.Post("/images/upload-url", h.imageUploadURL)
		session.Post("/submit", h.submit)
	})
}

func (h *WizardHandlers) startSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	if h.limiter != nil && !h.limiter.Allow(identity.UID) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many wizard sessions, slow down", http.StatusTooManyRequests))
		return
	}

	session, err := h.wizard.StartSession(ctx, identity.UID)
	if err != nil {
		writeWizardError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, buildSessionPayload(session))
}

func (h *WizardHandlers) getSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, sessionID, ok := h.sessionRequest(ctx, w, r)
	if !ok {
		return
	}

	session, err := h.wizard.GetSession(ctx, sessionID, identity.UID)
	if err != nil {
		writeWizardError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildSessionPayload(session))
}

func (h *WizardHandlers) discardSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, sessionID, ok := h.sessionRequest(ctx, w, r)
	if !ok {
		return
	}

	if err := h.wizard.Discard(ctx, sessionID, identity.UID); err != nil {
		writeWizardError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type formPatchRequest struct {
	CategoryID      *string        `json:"categoryId"`
	CategoryName    *string        `json:"categoryName"`
	SubcategoryID   *string        `json:"subcategoryId"`
	SubcategoryName *string        `json:"subcategoryName"`
	Title           *string        `json:"title"`
	Description     *string        `json:"description"`
	Price           *float64       `json:"price"`
	LocationID      *string        `json:"locationId"`
	Phone           *string        `json:"phone"`
	Images          []string       `json:"images"`
	CustomFields    map[string]any `json:"customFields"`
}

func (h *WizardHandlers) updateForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, sessionID, ok := h.sessionRequest(ctx, w, r)
	if !ok {
		return
	}

	var body formPatchRequest
	if err := decodeJSONBody(r, &body); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is not valid JSON", http.StatusBadRequest))
		return
	}

	patch := wizard.FormPatch{
		CategoryID:      body.CategoryID,
		CategoryName:    body.CategoryName,
		SubcategoryID:   body.SubcategoryID,
		SubcategoryName: body.SubcategoryName,
		Title:           body.Title,
		Description:     body.Description,
		Price:           body.Price,
		LocationID:      body.LocationID,
		Phone:           body.Phone,
		Images:          body.Images,
	}

	// Custom field values are type-checked against the descriptors before the
	// session is touched, so a malformed value never lands in form data.
	if body.CustomFields != nil {
		session, err := h.wizard.GetSession(ctx, sessionID, identity.UID)
		if err != nil {
			writeWizardError(ctx, w, err)
			return
		}

		subcategoryID := session.FormData().SubcategoryID
		if body.SubcategoryID != nil {
			subcategoryID = *body.SubcategoryID
		}

		normalized, err := wizard.NormalizeCustomFields(h.tree, subcategoryID, body.CustomFields)
		if err != nil {
			var fieldErr *wizard.FieldValueError
			if errors.As(err, &fieldErr) {
				httpx.WriteError(ctx, w, httpx.NewError("invalid_custom_field", fieldErr.Message, http.StatusBadRequest).
					WithDetails(map[string]any{"field": fieldErr.FieldID}))
				return
			}
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
			return
		}
		patch.CustomFields = normalized
	}

	session, err := h.wizard.UpdateForm(ctx, sessionID, identity.UID, patch)
	if err != nil {
		writeWizardError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildSessionPayload(session))
}

func (h *WizardHandlers) advance(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, func(ctx context.Context, sessionID, userID string) (*wizard.Session, error) {
		return h.wizard.Advance(ctx, sessionID, userID)
	})
}

func (h *WizardHandlers) back(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, func(ctx context.Context, sessionID, userID string) (*wizard.Session, error) {
		return h.wizard.Back(ctx, sessionID, userID)
	})
}

func (h *WizardHandlers) navigate(w http.ResponseWriter, r *http.Request, move func(context.Context, string, string) (*wizard.Session, error)) {
	ctx := r.Context()

	identity, sessionID, ok := h.sessionRequest(ctx, w, r)
	if !ok {
		return
	}

	session, err := move(ctx, sessionID, identity.UID)
	if err != nil {
		writeWizardError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildSessionPayload(session))
}

type goToRequest struct {
	Step int `json:"step"`
}

func (h *WizardHandlers) goTo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, sessionID, ok := h.sessionRequest(ctx, w, r)
	if !ok {
		return
	}

	var body goToRequest
	if err := decodeJSONBody(r, &body); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is not valid JSON", http.StatusBadRequest))
		return
	}

	session, err := h.wizard.GoTo(ctx, sessionID, identity.UID, body.Step)
	if err != nil {
		writeWizardError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildSessionPayload(session))
}

func (h *WizardHandlers) validate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, sessionID, ok := h.sessionRequest(ctx, w, r)
	if !ok {
		return
	}

	session, valid, err := h.wizard.Validate(ctx, sessionID, identity.UID)
	if err != nil {
		writeWizardError(ctx, w, err)
		return
	}

	payload := buildSessionPayload(session)
	payload.Valid = &valid
	writeJSONResponse(w, http.StatusOK, payload)
}

type uploadURLRequest struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	ContentMD5  string `json:"contentMd5"`
}

type uploadURLResponse struct {
	URL        string            `json:"url"`
	Method     string            `json:"method"`
	ObjectPath string            `json:"objectPath"`
	ExpiresAt  string            `json:"expiresAt"`
	Headers    map[string]string `json:"headers,omitempty"`
}

func (h *WizardHandlers) imageUploadURL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, sessionID, ok := h.sessionRequest(ctx, w, r)
	if !ok {
		return
	}

	if h.uploads == nil || h.bucket == "" || h.newUploadID == nil {
		httpx.WriteError(ctx, w, httpx.NewError("uploads_unavailable", "image uploads are not configured", http.StatusServiceUnavailable))
		return
	}

	// Ownership check happens before any signing work.
	if _, err := h.wizard.GetSession(ctx, sessionID, identity.UID); err != nil {
		writeWizardError(ctx, w, err)
		return
	}

	var body uploadURLRequest
	if err := decodeJSONBody(r, &body); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is not valid JSON", http.StatusBadRequest))
		return
	}

	objectPath, err := storage.BuildObjectPath(storage.PurposeWizardUpload, storage.PathParams{
		UserID:   identity.UID,
		UploadID: h.newUploadID(),
		FileName: strings.TrimSpace(body.FileName),
	})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	result, err := h.uploads.SignedURL(ctx, h.bucket, objectPath, storage.SignedURLOptions{
		Upload: &storage.UploadOptions{
			Method:              http.MethodPut,
			ContentType:         strings.TrimSpace(body.ContentType),
			ContentMD5:          strings.TrimSpace(body.ContentMD5),
			AllowedContentTypes: allowedImageContentTypes,
			MaxSize:             maxUploadSize,
			ExpiresIn:           h.uploadValid,
		},
	})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	writeJSONResponse(w, http.StatusOK, uploadURLResponse{
		URL:        result.URL,
		Method:     result.Method,
		ObjectPath: objectPath,
		ExpiresAt:  formatTime(result.ExpiresAt),
		Headers:    result.Headers,
	})
}

func (h *WizardHandlers) submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, sessionID, ok := h.sessionRequest(ctx, w, r)
	if !ok {
		return
	}

	listingID, err := h.wizard.Submit(ctx, sessionID, identity.UID)
	if err != nil {
		if errors.Is(err, wizard.ErrSubmissionRejected) {
			// The session survives a rejection with its error map populated,
			// so clients get the field messages alongside the failure.
			errorsMap := wizard.ValidationErrors{}
			if session, getErr := h.wizard.GetSession(ctx, sessionID, identity.UID); getErr == nil {
				errorsMap = session.Errors()
			}
			httpx.WriteError(ctx, w, httpx.NewError("submission_rejected", "listing could not be published", http.StatusUnprocessableEntity).
				WithDetails(map[string]any{"errors": errorsMap}))
			return
		}
		writeWizardError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, map[string]any{"listingId": listingID})
}

func (h *WizardHandlers) sessionRequest(ctx context.Context, w http.ResponseWriter, r *http.Request) (*auth.Identity, string, bool) {
	identity, authOK := requireIdentity(ctx, w)
	if !authOK {
		return nil, "", false
	}

	sessionID := strings.TrimSpace(chi.URLParam(r, "sessionID"))
	if sessionID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "session id is required", http.StatusBadRequest))
		return nil, "", false
	}

	return identity, sessionID, true
}

type sessionStepPayload struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
	Active      bool   `json:"active"`
}

type sessionFormPayload struct {
	CategoryID      string         `json:"categoryId"`
	CategoryName    string         `json:"categoryName,omitempty"`
	SubcategoryID   string         `json:"subcategoryId"`
	SubcategoryName string         `json:"subcategoryName,omitempty"`
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	Price           *float64       `json:"price"`
	LocationID      string         `json:"locationId"`
	Phone           string         `json:"phone"`
	Images          []string       `json:"images"`
	CustomFields    map[string]any `json:"customFields"`
}

type sessionPayload struct {
	ID          string                    `json:"id"`
	CurrentStep int                       `json:"currentStep"`
	CanGoNext   bool                      `json:"canGoNext"`
	CanGoPrev   bool                      `json:"canGoPrev"`
	Steps       []sessionStepPayload      `json:"steps"`
	Form        sessionFormPayload        `json:"form"`
	Errors      map[string][]string       `json:"errors"`
	Fields      []catalog.FieldDescriptor `json:"fields"`
	Valid       *bool                     `json:"valid,omitempty"`
}

func buildSessionPayload(session *wizard.Session) sessionPayload {
	steps := session.Steps()
	stepPayloads := make([]sessionStepPayload, 0, len(steps))
	for _, step := range steps {
		stepPayloads = append(stepPayloads, sessionStepPayload{
			ID:          string(step.ID),
			Title:       step.Title,
			Description: step.Description,
			Completed:   step.Completed,
			Active:      step.Active,
		})
	}

	form := session.FormData()
	images := form.Images
	if images == nil {
		images = []string{}
	}
	customFields := form.CustomFields
	if customFields == nil {
		customFields = map[string]any{}
	}

	errorsMap := session.Errors()
	if errorsMap == nil {
		errorsMap = wizard.ValidationErrors{}
	}

	fields := session.CustomFields()
	if fields == nil {
		fields = []catalog.FieldDescriptor{}
	}

	return sessionPayload{
		ID:          session.ID(),
		CurrentStep: session.CurrentStep(),
		CanGoNext:   session.CanGoNext(),
		CanGoPrev:   session.CanGoPrev(),
		Steps:       stepPayloads,
		Form: sessionFormPayload{
			CategoryID:      form.CategoryID,
			CategoryName:    form.CategoryName,
			SubcategoryID:   form.SubcategoryID,
			SubcategoryName: form.SubcategoryName,
			Title:           form.Title,
			Description:     form.Description,
			Price:           form.Price,
			LocationID:      form.LocationID,
			Phone:           form.Phone,
			Images:          images,
			CustomFields:    customFields,
		},
		Errors: errorsMap,
		Fields: fields,
	}
}

func writeWizardError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, wizard.ErrSessionNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("session_not_found", "wizard session not found or expired", http.StatusNotFound))
		return
	case errors.Is(err, wizard.ErrSessionForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("session_forbidden", "wizard session belongs to another user", http.StatusForbidden))
		return
	case errors.Is(err, wizard.ErrSubmissionInFlight):
		httpx.WriteError(ctx, w, httpx.NewError("submission_in_flight", "a submission is already running for this session", http.StatusConflict))
		return
	}

	httpx.WriteError(ctx, w, httpx.NewError("wizard_error", "wizard operation failed", http.StatusInternalServerError))
}

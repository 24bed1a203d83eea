package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"kolekta.org/internal/auth"
	"kolekta.org/internal/collection"
	"kolekta.org/internal/obs"
	"kolekta.org/internal/policy"
)

type createCollectionRequest struct {
	ClientID      string   `json:"client_id"`
	CollectorID   string   `json:"collector_id,omitempty"`
	Amount        int64    `json:"amount"`
	Description   string   `json:"description,omitempty"`
	PaymentMethod string   `json:"payment_method"`
	Latitude      *float64 `json:"latitude,omitempty"`
	Longitude     *float64 `json:"longitude,omitempty"`
	CollectedAt   string   `json:"collected_at,omitempty"`
}

type reasonRequest struct {
	Reason      string `json:"reason"`
	Description string `json:"description,omitempty"`
}

type resolveRequest struct {
	Outcome string `json:"outcome"`
	Note    string `json:"note,omitempty"`
}

type listCollectionsResponse struct {
	Items []collection.Collection `json:"items"`
	AsOf  time.Time               `json:"as_of"`
}

func (a *API) handleCollections(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createCollection(w, r)
	case http.MethodGet:
		a.listCollections(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleCollectionResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/collections/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	id, action, _ := strings.Cut(path, "/")
	if id == "" || strings.Contains(action, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if action == "" {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.getCollection(w, r, id)
		return
	}

	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	switch action {
	case "verify":
		a.transition(w, r, id, collection.EventVerify)
	case "reject":
		a.transition(w, r, id, collection.EventReject)
	case "dispute":
		a.transition(w, r, id, collection.EventDispute)
	case "resolve":
		a.transition(w, r, id, collection.EventResolve)
	case "reverse":
		a.transition(w, r, id, collection.EventReverse)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) createCollection(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "missing caller identity")
		return
	}
	var req createCollectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	in := collection.CreateInput{
		ClientID:      req.ClientID,
		CollectorID:   req.CollectorID,
		Amount:        req.Amount,
		Description:   req.Description,
		PaymentMethod: collection.Method(strings.ToLower(strings.TrimSpace(req.PaymentMethod))),
		Latitude:      req.Latitude,
		Longitude:     req.Longitude,
	}
	if raw := strings.TrimSpace(req.CollectedAt); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "collected_at must be RFC 3339")
			return
		}
		in.CollectedAt = ts.UTC()
	}

	c, err := a.collections.Create(r.Context(), caller, in)
	if err != nil {
		handleCollectionError(w, r, err)
		return
	}

	a.audit(r.Context(), "collection.create", "collection", c.ID, map[string]string{
		"client_id":      c.ClientID,
		"amount":         strconv.FormatInt(c.Amount, 10),
		"payment_method": string(c.PaymentMethod),
		"receipt_number": c.ReceiptNumber,
	})

	w.Header().Set("Location", "/v1/collections/"+c.ID)
	writeJSON(w, http.StatusCreated, c)
}

func (a *API) getCollection(w http.ResponseWriter, r *http.Request, id string) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "missing caller identity")
		return
	}
	c, err := a.collections.Get(r.Context(), caller, id)
	if err != nil {
		handleCollectionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) listCollections(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "missing caller identity")
		return
	}
	clientID := strings.TrimSpace(r.URL.Query().Get("client_id"))
	if clientID == "" {
		writeError(w, r, http.StatusBadRequest, "client_id query parameter is required")
		return
	}
	limit := 100
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > 1000 {
			writeError(w, r, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = v
	}

	items, err := a.collections.ListByClient(r.Context(), caller, clientID, limit)
	if err != nil {
		handleCollectionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listCollectionsResponse{Items: items, AsOf: time.Now().UTC()})
}

// transition dispatches one lifecycle event, reading the event-specific body
// where one is required.
func (a *API) transition(w http.ResponseWriter, r *http.Request, id string, evt collection.Event) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "missing caller identity")
		return
	}

	var (
		c   collection.Collection
		err error
	)
	switch evt {
	case collection.EventVerify:
		c, err = a.collections.Verify(r.Context(), caller, id)
	case collection.EventReject:
		var req reasonRequest
		if derr := decodeJSON(w, r, &req); derr != nil {
			writeError(w, r, http.StatusBadRequest, derr.Error())
			return
		}
		c, err = a.collections.Reject(r.Context(), caller, id, req.Reason)
	case collection.EventDispute:
		var req reasonRequest
		if derr := decodeJSON(w, r, &req); derr != nil {
			writeError(w, r, http.StatusBadRequest, derr.Error())
			return
		}
		c, err = a.collections.Dispute(r.Context(), caller, id, req.Reason, req.Description)
	case collection.EventResolve:
		var req resolveRequest
		if derr := decodeJSON(w, r, &req); derr != nil {
			writeError(w, r, http.StatusBadRequest, derr.Error())
			return
		}
		c, err = a.collections.Resolve(r.Context(), caller, id,
			collection.ResolutionOutcome(strings.ToLower(strings.TrimSpace(req.Outcome))), req.Note)
	case collection.EventReverse:
		c, err = a.collections.Reverse(r.Context(), caller, id)
	}

	obs.ObserveTransition(string(evt), err)
	if err != nil {
		handleCollectionError(w, r, err)
		return
	}

	a.audit(r.Context(), "collection."+string(evt), "collection", c.ID, map[string]string{
		"status": string(c.Status),
	})
	writeJSON(w, http.StatusOK, c)
}

func (a *API) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "missing caller identity")
		return
	}

	var from, to time.Time
	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "from must be RFC 3339")
			return
		}
		from = ts.UTC()
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "to must be RFC 3339")
			return
		}
		to = ts.UTC()
	}

	sum, err := a.collections.Summary(r.Context(), caller, from, to)
	if err != nil {
		handleCollectionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func handleCollectionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, collection.ErrNotFound), errors.Is(err, collection.ErrClientNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, collection.ErrInvalidAmount), errors.Is(err, collection.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, collection.ErrInvalidTransition), errors.Is(err, collection.ErrDuplicateDispute):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, policy.ErrUnauthorized):
		writeError(w, r, http.StatusForbidden, "forbidden")
	case errors.Is(err, collection.ErrStoreUnavailable):
		writeError(w, r, http.StatusServiceUnavailable, "store unavailable")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

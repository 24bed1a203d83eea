package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"kolekta.org/internal/auth"
	"kolekta.org/internal/directory"
	"kolekta.org/internal/policy"
)

type createOrganizationRequest struct {
	Name      string `json:"name"`
	Subdomain string `json:"subdomain"`
	Type      string `json:"type,omitempty"`
	Plan      string `json:"plan,omitempty"`
}

type createUserRequest struct {
	Email          string  `json:"email"`
	Password       string  `json:"password"`
	FullName       string  `json:"full_name,omitempty"`
	Role           string  `json:"role"`
	Status         string  `json:"status,omitempty"`
	BaseSalary     int64   `json:"base_salary,omitempty"`
	CommissionRate float64 `json:"commission_rate,omitempty"`
}

type createClientRequest struct {
	FullName            string `json:"full_name"`
	Phone               string `json:"phone,omitempty"`
	Email               string `json:"email,omitempty"`
	Address             string `json:"address,omitempty"`
	AssignedCollectorID string `json:"assigned_collector_id,omitempty"`
}

type assignCollectorRequest struct {
	CollectorID string `json:"collector_id"`
}

func (a *API) handleOrganizations(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "missing caller identity")
		return
	}
	if caller.Role != policy.RoleAdmin {
		writeError(w, r, http.StatusForbidden, "forbidden")
		return
	}

	switch r.Method {
	case http.MethodPost:
		var req createOrganizationRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		org, err := a.directory.CreateOrganization(r.Context(), req.Name, req.Subdomain, req.Type, req.Plan)
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		a.audit(r.Context(), "organization.create", "organization", org.ID, map[string]string{
			"subdomain": org.Subdomain,
		})
		w.Header().Set("Location", "/v1/organizations/"+org.ID)
		writeJSON(w, http.StatusCreated, org)
	case http.MethodGet:
		orgs, err := a.directory.ListOrganizations(r.Context())
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": orgs, "as_of": time.Now().UTC()})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleOrganizationResource(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "missing caller identity")
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/v1/organizations/")
	id, rest, _ := strings.Cut(path, "/")
	if id == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	// Non-admin callers only see their own organization.
	if caller.Role != policy.RoleAdmin && caller.OrganizationID != id {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch rest {
	case "":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		org, err := a.directory.GetOrganization(r.Context(), id)
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, org)
	case "users":
		a.handleOrganizationUsers(w, r, caller, id)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleOrganizationUsers(w http.ResponseWriter, r *http.Request, caller policy.Caller, orgID string) {
	elevated := caller.Role == policy.RoleAdmin || caller.Role == policy.RoleOrganization || caller.Role == policy.RoleManager
	if !elevated {
		writeError(w, r, http.StatusForbidden, "forbidden")
		return
	}

	switch r.Method {
	case http.MethodPost:
		var req createUserRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		user, err := a.directory.CreateUser(r.Context(), orgID, directory.CreateUserInput{
			Email:          req.Email,
			Password:       req.Password,
			FullName:       req.FullName,
			Role:           req.Role,
			Status:         req.Status,
			BaseSalary:     req.BaseSalary,
			CommissionRate: req.CommissionRate,
		})
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		a.audit(r.Context(), "user.create", "user", user.ID, map[string]string{
			"role": string(user.Role),
		})
		writeJSON(w, http.StatusCreated, user)
	case http.MethodGet:
		users, err := a.directory.ListUsersByOrg(r.Context(), orgID)
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": users, "as_of": time.Now().UTC()})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleClients(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "missing caller identity")
		return
	}

	switch r.Method {
	case http.MethodPost:
		if !policy.CanVerify(caller) {
			writeError(w, r, http.StatusForbidden, "forbidden")
			return
		}
		var req createClientRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		client, err := a.directory.CreateClient(r.Context(), caller.OrganizationID, directory.CreateClientInput{
			FullName:            req.FullName,
			Phone:               req.Phone,
			Email:               req.Email,
			Address:             req.Address,
			AssignedCollectorID: req.AssignedCollectorID,
		})
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		a.audit(r.Context(), "client.create", "client", client.ID, nil)
		w.Header().Set("Location", "/v1/clients/"+client.ID)
		writeJSON(w, http.StatusCreated, client)
	case http.MethodGet:
		collectorID := strings.TrimSpace(r.URL.Query().Get("collector_id"))
		if collectorID == "" {
			writeError(w, r, http.StatusBadRequest, "collector_id query parameter is required")
			return
		}
		if !policy.CanVerify(caller) && caller.ID != collectorID {
			writeError(w, r, http.StatusForbidden, "forbidden")
			return
		}
		clients, err := a.directory.ListClientsByCollector(r.Context(), collectorID)
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		filtered := clients[:0]
		for _, c := range clients {
			if c.OrganizationID == caller.OrganizationID {
				filtered = append(filtered, c)
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": filtered, "as_of": time.Now().UTC()})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleClientResource(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "missing caller identity")
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/v1/clients/")
	id, rest, _ := strings.Cut(path, "/")
	if id == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch rest {
	case "":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.getClient(w, r, caller, id)
	case "assign":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.assignCollector(w, r, caller, id)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) getClient(w http.ResponseWriter, r *http.Request, caller policy.Caller, id string) {
	client, err := a.directory.GetClient(r.Context(), id)
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	scope := policy.Scope{
		OrganizationID: client.OrganizationID,
		CollectorID:    client.AssignedCollectorID,
		ClientID:       client.ID,
	}
	if !policy.CanRead(caller, scope) {
		// Hidden and missing look the same.
		writeError(w, r, http.StatusNotFound, directory.ErrNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, client)
}

func (a *API) assignCollector(w http.ResponseWriter, r *http.Request, caller policy.Caller, id string) {
	if !policy.CanVerify(caller) {
		writeError(w, r, http.StatusForbidden, "forbidden")
		return
	}
	var req assignCollectorRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	existing, err := a.directory.GetClient(r.Context(), id)
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	if existing.OrganizationID != caller.OrganizationID {
		writeError(w, r, http.StatusNotFound, directory.ErrNotFound.Error())
		return
	}

	client, err := a.directory.AssignCollector(r.Context(), id, req.CollectorID)
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	a.audit(r.Context(), "client.assign_collector", "client", client.ID, map[string]string{
		"collector_id": client.AssignedCollectorID,
	})
	writeJSON(w, http.StatusOK, client)
}

func handleDirectoryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, directory.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, directory.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, directory.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

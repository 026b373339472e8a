package rbac

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/backlot-hq/backlot/internal/platform/httpx"
	"github.com/backlot-hq/backlot/internal/shared"
)

// Handler exposes role and permission administration plus permission
// introspection endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	evaluator *Evaluator
	guard     Middleware
	validate  *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, evaluator *Evaluator, guard Middleware) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		evaluator: evaluator,
		guard:     guard,
		validate:  validator.New(),
	}
}

// MountRoutes registers RBAC routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny(shared.PermRolesView))
		r.Get("/roles", h.listRoles)
		r.Get("/roles/{roleID}", h.getRole)
		r.Get("/users/{userID}/roles", h.listUserGlobalRoles)
		r.Get("/users/{userID}/teams/{teamID}/roles", h.listUserTeamRoles)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny(shared.PermRolesEdit))
		r.Post("/roles", h.createRole)
		r.Put("/roles/{roleID}", h.updateRole)
		r.Delete("/roles/{roleID}", h.deleteRole)
		r.Put("/roles/{roleID}/permissions", h.setRolePermissions)
		r.Post("/users/{userID}/roles", h.assignGlobalRole)
		r.Delete("/users/{userID}/roles/{roleID}", h.removeGlobalRole)
		r.Post("/members/{memberID}/roles", h.assignTeamRole)
		r.Delete("/members/{memberID}/roles/{roleID}", h.removeTeamRole)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny(shared.PermPermissionsView))
		r.Get("/permissions", h.listPermissions)
	})
	// Introspection for the signed-in user; requires a session only.
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAuth)
		r.Get("/me/permissions", h.myGlobalPermissions)
		r.Get("/me/teams/{teamID}/permissions", h.myTeamPermissions)
		r.Get("/me/channels/{channelID}/permissions", h.myChannelPermissions)
	})
}

type roleResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type permissionResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type assignmentResponse struct {
	Role       roleResponse `json:"role"`
	AssignedAt time.Time    `json:"assigned_at"`
	TeamName   string       `json:"team_name,omitempty"`
}

func toRoleResponse(role Role) roleResponse {
	return roleResponse{
		ID:          role.ID,
		Name:        role.Name,
		Description: role.Description,
		CreatedAt:   role.CreatedAt,
		UpdatedAt:   role.UpdatedAt,
	}
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.fail(w, "list roles", err)
		return
	}
	out := make([]roleResponse, 0, len(roles))
	for _, role := range roles {
		out = append(out, toRoleResponse(role))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": out})
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "roleID")
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	role, err := h.service.GetRole(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		h.fail(w, "get role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleResponse(role))
}

type roleRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=64"`
	Description string `json:"description" validate:"max=255"`
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	role, err := h.service.CreateRole(r.Context(), req.Name, req.Description)
	if err != nil {
		h.fail(w, "create role", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRoleResponse(role))
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "roleID")
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	var req roleRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	role, err := h.service.UpdateRole(r.Context(), id, req.Name, req.Description)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		h.fail(w, "update role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleResponse(role))
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "roleID")
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.service.DeleteRole(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		h.fail(w, "delete role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ListPermissions(r.Context())
	if err != nil {
		h.fail(w, "list permissions", err)
		return
	}
	out := make([]permissionResponse, 0, len(perms))
	for _, perm := range perms {
		out = append(out, permissionResponse{ID: perm.ID, Name: perm.Name, Description: perm.Description})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": out})
}

type setRolePermissionsRequest struct {
	PermissionIDs []int64 `json:"permission_ids" validate:"required"`
}

func (h *Handler) setRolePermissions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "roleID")
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	var req setRolePermissionsRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.service.SetRolePermissions(r.Context(), id, req.PermissionIDs); err != nil {
		h.fail(w, "set role permissions", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type assignRoleRequest struct {
	RoleID int64 `json:"role_id" validate:"required,gt=0"`
}

func (h *Handler) assignGlobalRole(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	var req assignRoleRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.service.AssignGlobalRole(r.Context(), h.actorID(r), userID, req.RoleID); err != nil {
		h.fail(w, "assign global role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeGlobalRole(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	roleID, err := pathID(r, "roleID")
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.service.RemoveGlobalRole(r.Context(), h.actorID(r), userID, roleID); err != nil {
		h.fail(w, "remove global role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) assignTeamRole(w http.ResponseWriter, r *http.Request) {
	memberID, err := pathID(r, "memberID")
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	var req assignRoleRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.service.AssignTeamRole(r.Context(), h.actorID(r), memberID, req.RoleID); err != nil {
		h.fail(w, "assign team role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeTeamRole(w http.ResponseWriter, r *http.Request) {
	memberID, err := pathID(r, "memberID")
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	roleID, err := pathID(r, "roleID")
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.service.RemoveTeamRole(r.Context(), h.actorID(r), memberID, roleID); err != nil {
		h.fail(w, "remove team role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listUserGlobalRoles(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	assignments, err := h.evaluator.GlobalRoles(r.Context(), userID)
	if err != nil {
		h.fail(w, "list user global roles", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": toAssignmentResponses(assignments)})
}

func (h *Handler) listUserTeamRoles(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	teamID, err := pathID(r, "teamID")
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	assignments, err := h.evaluator.TeamRoles(r.Context(), userID, teamID)
	if err != nil {
		h.fail(w, "list user team roles", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": toAssignmentResponses(assignments)})
}

func (h *Handler) myGlobalPermissions(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	perms, err := h.evaluator.GlobalPermissions(r.Context(), principal.UserID)
	if err != nil {
		h.fail(w, "my global permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

func (h *Handler) myTeamPermissions(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	teamID, err := pathID(r, "teamID")
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	perms, err := h.evaluator.TeamPermissions(r.Context(), principal.UserID, teamID)
	if err != nil {
		h.fail(w, "my team permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

func (h *Handler) myChannelPermissions(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	channelID, err := pathID(r, "channelID")
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	perms, err := h.evaluator.ChannelPermissions(r.Context(), principal.UserID, channelID)
	if err != nil {
		h.fail(w, "my channel permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

func toAssignmentResponses(assignments []RoleAssignment) []assignmentResponse {
	out := make([]assignmentResponse, 0, len(assignments))
	for _, a := range assignments {
		out = append(out, assignmentResponse{
			Role:       toRoleResponse(a.Role),
			AssignedAt: a.AssignedAt,
			TeamName:   a.TeamName,
		})
	}
	return out
}

func (h *Handler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	return h.validate.Struct(dst)
}

func (h *Handler) actorID(r *http.Request) int64 {
	if principal, ok := PrincipalFromContext(r.Context()); ok {
		return principal.UserID
	}
	return 0
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if h.logger != nil {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func pathID(r *http.Request, param string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, param), 10, 64)
}

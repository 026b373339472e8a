package teams

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
	"github.com/backlot-hq/backlot/internal/rbac"
	"github.com/backlot-hq/backlot/internal/shared"
)

// Handler manages team endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	guard    rbac.Middleware
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, guard: guard, validate: validator.New()}
}

// MountRoutes registers team routes. Member and channel management is scoped
// to the team named in the URL, so a team-scoped grant of the manage
// permissions suffices; listing teams needs the global view permission.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny(shared.PermTeamsView))
		r.Get("/", h.listTeams)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny(shared.PermTeamsEdit))
		r.Post("/", h.createTeam)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission(shared.PermTeamsView, rbac.TeamScopeParam("teamID")))
		r.Get("/{teamID}", h.getTeam)
		r.Get("/{teamID}/members", h.listMembers)
		r.Get("/{teamID}/channels", h.listChannels)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission(shared.PermTeamMembersManage, rbac.TeamScopeParam("teamID")))
		r.Post("/{teamID}/members", h.addMember)
		r.Post("/{teamID}/members/{memberID}/disable", h.disableMember)
		r.Post("/{teamID}/members/{memberID}/enable", h.enableMember)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission(shared.PermChannelsManage, rbac.TeamScopeParam("teamID")))
		r.Post("/{teamID}/channels", h.createChannel)
		r.Post("/{teamID}/channels/{channelID}/link", h.linkChannel)
		r.Delete("/{teamID}/channels/{channelID}", h.unlinkChannel)
	})
}

type teamResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	OwnerID   int64     `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

type memberResponse struct {
	ID       int64     `json:"id"`
	TeamID   int64     `json:"team_id"`
	UserID   int64     `json:"user_id"`
	Disabled bool      `json:"disabled"`
	JoinedAt time.Time `json:"joined_at"`
}

type channelResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *Handler) listTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := h.service.ListTeams(r.Context())
	if err != nil {
		h.fail(w, "list teams", err)
		return
	}
	out := make([]teamResponse, 0, len(teams))
	for _, team := range teams {
		out = append(out, teamResponse{ID: team.ID, Name: team.Name, OwnerID: team.OwnerID, CreatedAt: team.CreatedAt})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"teams": out})
}

type createTeamRequest struct {
	Name string `json:"name" validate:"required,min=2,max=128"`
}

func (h *Handler) createTeam(w http.ResponseWriter, r *http.Request) {
	var req createTeamRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	team, err := h.service.CreateTeam(r.Context(), req.Name, h.actorID(r))
	if err != nil {
		h.fail(w, "create team", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, teamResponse{ID: team.ID, Name: team.Name, OwnerID: team.OwnerID, CreatedAt: team.CreatedAt})
}

func (h *Handler) getTeam(w http.ResponseWriter, r *http.Request) {
	teamID, err := pathID(r, "teamID")
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	team, err := h.service.GetTeam(r.Context(), teamID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		h.fail(w, "get team", err)
		return
	}
	httpx.JSON(w, http.StatusOK, teamResponse{ID: team.ID, Name: team.Name, OwnerID: team.OwnerID, CreatedAt: team.CreatedAt})
}

func (h *Handler) listMembers(w http.ResponseWriter, r *http.Request) {
	teamID, err := pathID(r, "teamID")
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	members, err := h.service.ListMembers(r.Context(), teamID)
	if err != nil {
		h.fail(w, "list members", err)
		return
	}
	out := make([]memberResponse, 0, len(members))
	for _, m := range members {
		out = append(out, memberResponse{ID: m.ID, TeamID: m.TeamID, UserID: m.UserID, Disabled: m.Disabled, JoinedAt: m.JoinedAt})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"members": out})
}

type addMemberRequest struct {
	UserID  int64   `json:"user_id" validate:"required,gt=0"`
	RoleIDs []int64 `json:"role_ids"`
}

func (h *Handler) addMember(w http.ResponseWriter, r *http.Request) {
	teamID, err := pathID(r, "teamID")
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	var req addMemberRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	member, err := h.service.AddMember(r.Context(), h.actorID(r), teamID, req.UserID, req.RoleIDs)
	if err != nil {
		h.fail(w, "add member", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, memberResponse{ID: member.ID, TeamID: member.TeamID, UserID: member.UserID, Disabled: member.Disabled, JoinedAt: member.JoinedAt})
}

func (h *Handler) disableMember(w http.ResponseWriter, r *http.Request) {
	h.setMemberDisabled(w, r, true)
}

func (h *Handler) enableMember(w http.ResponseWriter, r *http.Request) {
	h.setMemberDisabled(w, r, false)
}

func (h *Handler) setMemberDisabled(w http.ResponseWriter, r *http.Request, disabled bool) {
	memberID, err := pathID(r, "memberID")
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if disabled {
		err = h.service.DisableMember(r.Context(), h.actorID(r), memberID)
	} else {
		err = h.service.EnableMember(r.Context(), h.actorID(r), memberID)
	}
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		h.fail(w, "set member disabled", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createChannelRequest struct {
	Name string `json:"name" validate:"required,min=2,max=128"`
}

func (h *Handler) createChannel(w http.ResponseWriter, r *http.Request) {
	teamID, err := pathID(r, "teamID")
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	var req createChannelRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	channel, err := h.service.CreateChannel(r.Context(), h.actorID(r), teamID, req.Name)
	if err != nil {
		h.fail(w, "create channel", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, channelResponse{ID: channel.ID, Name: channel.Name, CreatedAt: channel.CreatedAt})
}

func (h *Handler) linkChannel(w http.ResponseWriter, r *http.Request) {
	teamID, err := pathID(r, "teamID")
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	channelID, err := pathID(r, "channelID")
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.service.LinkChannel(r.Context(), h.actorID(r), teamID, channelID); err != nil {
		h.fail(w, "link channel", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) unlinkChannel(w http.ResponseWriter, r *http.Request) {
	teamID, err := pathID(r, "teamID")
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	channelID, err := pathID(r, "channelID")
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.service.UnlinkChannel(r.Context(), h.actorID(r), teamID, channelID); err != nil {
		h.fail(w, "unlink channel", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listChannels(w http.ResponseWriter, r *http.Request) {
	teamID, err := pathID(r, "teamID")
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	channels, err := h.service.ListChannels(r.Context(), teamID)
	if err != nil {
		h.fail(w, "list channels", err)
		return
	}
	out := make([]channelResponse, 0, len(channels))
	for _, c := range channels {
		out = append(out, channelResponse{ID: c.ID, Name: c.Name, CreatedAt: c.CreatedAt})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"channels": out})
}

func (h *Handler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	return h.validate.Struct(dst)
}

func (h *Handler) actorID(r *http.Request) int64 {
	if principal, ok := rbac.PrincipalFromContext(r.Context()); ok {
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

package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/vsals/searchcoachdeploy/internal/app"
	"github.com/vsals/searchcoachdeploy/internal/domain"
	"github.com/vsals/searchcoachdeploy/internal/search"
)

type Leaderboards interface {
	GetLeaderboard(ctx context.Context, q app.LeaderboardQuery) ([]domain.LeaderboardRow, error)
}

type Tabs interface {
	Configure(ctx context.Context, teamID, groupID, createdBy string) (domain.TabConfiguration, error)
	ResolveScope(ctx context.Context, teamID, tabID, groupID string) (domain.TabConfiguration, error)
}

type Searcher interface {
	Search(ctx context.Context, f search.Filter) ([]search.WebPage, error)
}

// APIHandler serves the endpoints called by the leaderboard and search tabs.
type APIHandler struct {
	leaderboards Leaderboards
	tabs         Tabs
	searcher     Searcher
	log          logrus.FieldLogger
}

func NewAPIHandler(leaderboards Leaderboards, tabs Tabs, searcher Searcher, logger logrus.FieldLogger) *APIHandler {
	return &APIHandler{leaderboards: leaderboards, tabs: tabs, searcher: searcher, log: logger}
}

// GetLeaderboard handles GET /api/leaderboard/{teamId}/{tabId}?groupId=.
func (h *APIHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	teamID, tabID := vars["teamId"], vars["tabId"]
	groupID := r.URL.Query().Get("groupId")
	log := h.log.WithFields(logrus.Fields{"team_id": teamID, "tab_id": tabID})

	if _, err := h.tabs.ResolveScope(r.Context(), teamID, tabID, groupID); err != nil {
		log.WithError(err).Warn("leaderboard scope rejected")
		writeServiceError(w, err)
		return
	}

	rows, err := h.leaderboards.GetLeaderboard(r.Context(), app.LeaderboardQuery{
		TeamID:    teamID,
		GroupID:   groupID,
		CallerID:  UserID(r.Context()),
		AuthToken: AuthToken(r.Context()),
	})
	if err != nil {
		log.WithError(err).Error("build leaderboard")
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// ConfigureTab handles POST /api/tabconfiguration/{teamId}?groupId=.
func (h *APIHandler) ConfigureTab(w http.ResponseWriter, r *http.Request) {
	teamID := mux.Vars(r)["teamId"]
	groupID := r.URL.Query().Get("groupId")

	tab, err := h.tabs.Configure(r.Context(), teamID, groupID, UserID(r.Context()))
	if err != nil {
		h.log.WithError(err).WithField("team_id", teamID).Error("configure tab")
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tab)
}

// Search handles POST /api/search.
func (h *APIHandler) Search(w http.ResponseWriter, r *http.Request) {
	var filter search.Filter
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&filter); err != nil {
		writeError(w, http.StatusBadRequest, "invalid search filter body")
		return
	}

	pages, err := h.searcher.Search(r.Context(), filter)
	if err != nil {
		if errors.Is(err, search.ErrInvalidFilter) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		var status *search.HTTPStatusError
		if errors.As(err, &status) {
			h.log.WithError(err).Error("bing search failed")
			writeError(w, http.StatusBadGateway, "search provider unavailable")
			return
		}
		h.log.WithError(err).Error("search")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if len(pages) == 0 {
		writeError(w, http.StatusNotFound, "no results found")
		return
	}
	writeJSON(w, http.StatusOK, pages)
}

// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"

	"github.com/grandstand/cheer/internal/domain/model"
)

// AchievementDependencies defines the interface for achievement reads.
type AchievementDependencies interface {
	CurrentAchievement() (model.Achievement, bool)
}

// AchievementHandler handles achievement requests.
type AchievementHandler struct {
	deps AchievementDependencies
}

// NewAchievementHandler creates a new achievement handler.
func NewAchievementHandler(deps AchievementDependencies) *AchievementHandler {
	return &AchievementHandler{deps: deps}
}

// HandleGetAchievement handles GET /achievement requests, returning the
// unlock currently inside its display window, if any.
func (h *AchievementHandler) HandleGetAchievement(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	a, ok := h.deps.CurrentAchievement()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"unlocked": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"unlocked": true, "achievement": a})
}

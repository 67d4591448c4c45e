package web

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/fossabot/failmap/internal/service"
	"github.com/go-chi/chi/v5"
)

// intParam reads a numeric route parameter. The routes only match digits,
// so errors mean overflow.
func intParam(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

func (h *handler) report(w http.ResponseWriter, r *http.Request) {
	orgID, err := intParam(r, "organization_id")
	if err != nil {
		RespondWithError(w, r, http.StatusBadRequest, "Invalid organization id")
		return
	}
	weeks, _ := intParam(r, "weeks_back")

	report, err := h.reports.OrganizationReport(r.Context(), orgID, int(weeks))
	if errors.Is(err, service.ErrNoReport) {
		RespondWithJSON(w, r, http.StatusOK, struct{}{})
		return
	}
	if err != nil {
		RespondWithMappedError(w, r, err)
		return
	}
	RespondWithJSON(w, r, http.StatusOK, report)
}

func (h *handler) stats(w http.ResponseWriter, r *http.Request) {
	weeks, _ := intParam(r, "weeks_back")
	stats, err := h.reports.Stats(r.Context(), int(weeks))
	if err != nil {
		RespondWithMappedError(w, r, err)
		return
	}
	RespondWithJSON(w, r, http.StatusOK, stats)
}

func (h *handler) topfail(w http.ResponseWriter, r *http.Request) {
	weeks, _ := intParam(r, "weeks_back")
	list, err := h.reports.TopFail(r.Context(), int(weeks))
	if err != nil {
		RespondWithMappedError(w, r, err)
		return
	}
	RespondWithJSON(w, r, http.StatusOK, list)
}

func (h *handler) topwin(w http.ResponseWriter, r *http.Request) {
	weeks, _ := intParam(r, "weeks_back")
	list, err := h.reports.TopWin(r.Context(), int(weeks))
	if err != nil {
		RespondWithMappedError(w, r, err)
		return
	}
	RespondWithJSON(w, r, http.StatusOK, list)
}

func (h *handler) terribleURLs(w http.ResponseWriter, r *http.Request) {
	weeks, _ := intParam(r, "weeks_back")
	list, err := h.reports.TerribleURLs(r.Context(), int(weeks))
	if err != nil {
		RespondWithMappedError(w, r, err)
		return
	}
	RespondWithJSON(w, r, http.StatusOK, list)
}

func (h *handler) vulnstats(w http.ResponseWriter, r *http.Request) {
	weeks, _ := intParam(r, "weeks_back")
	stats, err := h.reports.VulnStats(r.Context(), int(weeks))
	if err != nil {
		RespondWithMappedError(w, r, err)
		return
	}
	RespondWithJSON(w, r, http.StatusOK, stats)
}

func (h *handler) latestScans(w http.ResponseWriter, r *http.Request) {
	list, err := h.reports.LatestScans(r.Context(), chi.URLParam(r, "scan_type"))
	if errors.Is(err, service.ErrNoReport) {
		RespondWithJSON(w, r, http.StatusOK, struct{}{})
		return
	}
	if err != nil {
		RespondWithMappedError(w, r, err)
		return
	}
	RespondWithJSON(w, r, http.StatusOK, list)
}

func (h *handler) organizationUpdates(w http.ResponseWriter, r *http.Request) {
	orgID, err := intParam(r, "organization_id")
	if err != nil {
		RespondWithError(w, r, http.StatusBadRequest, "Invalid organization id")
		return
	}
	list, err := h.reports.UpdatesOnOrganization(r.Context(), orgID)
	if errors.Is(err, service.ErrNoReport) {
		RespondWithJSON(w, r, http.StatusOK, struct{}{})
		return
	}
	if err != nil {
		RespondWithMappedError(w, r, err)
		return
	}
	RespondWithJSON(w, r, http.StatusOK, list)
}

func (h *handler) wantedURLs(w http.ResponseWriter, r *http.Request) {
	list, err := h.reports.WantedURLs(r.Context())
	if err != nil {
		RespondWithMappedError(w, r, err)
		return
	}
	RespondWithJSON(w, r, http.StatusOK, list)
}

package http

import (
	"net/http"

	"site-registry/internal/audit"
)

func (h *Handler) handleCreateSite(w http.ResponseWriter, r *http.Request) {
	var req siteCreateRequest
	if !h.decode(w, r, &req) || !h.validate(w, req) {
		return
	}
	site, err := h.sites.Create(r.Context(), req.toSite())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSiteResponse(*site))
	h.logAudit(r, audit.ActionSiteCreate, "site", site.ID, map[string]any{
		"name":    site.Name,
		"country": site.Country,
		"groups":  site.GroupIDs,
	})
}

func (h *Handler) handleListSites(w http.ResponseWriter, r *http.Request) {
	sites, err := h.sites.List(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSiteResponses(sites))
}

func (h *Handler) handleGetSite(w http.ResponseWriter, r *http.Request, id int64) {
	site, err := h.sites.Get(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSiteResponse(*site))
}

func (h *Handler) handleUpdateSite(w http.ResponseWriter, r *http.Request, id int64) {
	var req sitePatchRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.validator.Validate(req); err != nil {
		if _, getErr := h.sites.Get(r.Context(), id); getErr != nil {
			h.respondServiceError(w, r, getErr)
			return
		}
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	site, err := h.sites.Update(r.Context(), id, req.toPatch())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSiteResponse(*site))
	h.logAudit(r, audit.ActionSiteUpdate, "site", site.ID, map[string]any{
		"name":   site.Name,
		"groups": site.GroupIDs,
	})
}

func (h *Handler) handleDeleteSite(w http.ResponseWriter, r *http.Request, id int64) {
	if err := h.sites.Delete(r.Context(), id); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Site deleted successfully"})
	h.logAudit(r, audit.ActionSiteDelete, "site", id, nil)
}

package http

import (
	"net/http"

	"site-registry/internal/audit"
	masterdata "site-registry/internal/masterdata/domain"
)

func (h *Handler) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req groupCreateRequest
	if !h.decode(w, r, &req) || !h.validate(w, req) {
		return
	}
	group, err := h.groups.Create(r.Context(), req.toGroup())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toGroupResponse(*group))
	h.logAudit(r, audit.ActionGroupCreate, "group", group.ID, map[string]any{
		"name": group.Name,
		"type": group.Type,
	})
}

func (h *Handler) handleBulkCreateGroups(w http.ResponseWriter, r *http.Request) {
	var reqs []groupCreateRequest
	if !h.decode(w, r, &reqs) {
		return
	}
	groups := make([]masterdata.Group, 0, len(reqs))
	for _, req := range reqs {
		if !h.validate(w, req) {
			return
		}
		groups = append(groups, req.toGroup())
	}

	result, err := h.groups.BulkCreate(r.Context(), groups)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	skipped := result.Skipped
	if skipped == nil {
		skipped = []int64{}
	}
	writeJSON(w, http.StatusCreated, bulkCreateResponse{
		Message: "Groups created successfully",
		Created: toGroupResponses(result.Created),
		Skipped: skipped,
	})
	for _, group := range result.Created {
		h.logAudit(r, audit.ActionGroupBulkCreate, "group", group.ID, map[string]any{
			"name": group.Name,
			"type": group.Type,
		})
	}
}

func (h *Handler) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.groups.List(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toGroupResponses(groups))
}

func (h *Handler) handleGetGroup(w http.ResponseWriter, r *http.Request, id int64) {
	group, err := h.groups.Get(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toGroupResponse(*group))
}

func (h *Handler) handleUpdateGroup(w http.ResponseWriter, r *http.Request, id int64) {
	var req groupPatchRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.validator.Validate(req); err != nil {
		if _, getErr := h.groups.Get(r.Context(), id); getErr != nil {
			h.respondServiceError(w, r, getErr)
			return
		}
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	group, err := h.groups.Update(r.Context(), id, req.toPatch())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toGroupResponse(*group))
	h.logAudit(r, audit.ActionGroupUpdate, "group", group.ID, map[string]any{
		"name": group.Name,
		"type": group.Type,
	})
}

func (h *Handler) handleDeleteGroup(w http.ResponseWriter, r *http.Request, id int64) {
	if err := h.groups.Delete(r.Context(), id); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Group deleted successfully"})
	h.logAudit(r, audit.ActionGroupDelete, "group", id, nil)
}

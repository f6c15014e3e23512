package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"site-registry/internal/audit"
	"site-registry/internal/auth"
	masterdataapp "site-registry/internal/masterdata/application"
	masterdata "site-registry/internal/masterdata/domain"
	"site-registry/internal/validator"
)

const maxBodyBytes = 1 << 20

// Handler provides site, group and export HTTP endpoints.
type Handler struct {
	sites       *masterdataapp.SiteService
	groups      *masterdataapp.GroupService
	validator   *validator.Validator
	auditLogger audit.Logger
	logger      *zap.Logger
}

// NewHandler constructs a handler. auditLogger may be nil.
func NewHandler(sites *masterdataapp.SiteService, groups *masterdataapp.GroupService, auditLogger audit.Logger, logger *zap.Logger) (*Handler, error) {
	if sites == nil {
		return nil, errors.New("masterdata handler: nil site service")
	}
	if groups == nil {
		return nil, errors.New("masterdata handler: nil group service")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		sites:       sites,
		groups:      groups,
		validator:   validator.New(),
		auditLogger: auditLogger,
		logger:      logger,
	}, nil
}

// Register mounts the handler's routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	for _, pattern := range []string{"/sites", "/sites/", "/groups", "/groups/", "/exports/"} {
		mux.Handle(pattern, h)
	}
}

// ServeHTTP routes /sites/, /groups/ and /exports/ requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch parts[0] {
	case "sites":
		h.routeSites(w, r, parts[1:])
	case "groups":
		h.routeGroups(w, r, parts[1:])
	case "exports":
		h.routeExports(w, r, parts[1:])
	default:
		writeDetail(w, http.StatusNotFound, "Not Found")
	}
}

func (h *Handler) routeSites(w http.ResponseWriter, r *http.Request, rest []string) {
	switch len(rest) {
	case 0:
		switch r.Method {
		case http.MethodPost:
			h.handleCreateSite(w, r)
		case http.MethodGet:
			h.handleListSites(w, r)
		default:
			methodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	case 1:
		id, ok := parseID(rest[0])
		if !ok {
			writeDetail(w, http.StatusNotFound, masterdata.ErrSiteNotFound.Message)
			return
		}
		switch r.Method {
		case http.MethodGet:
			h.handleGetSite(w, r, id)
		case http.MethodPatch:
			h.handleUpdateSite(w, r, id)
		case http.MethodDelete:
			h.handleDeleteSite(w, r, id)
		default:
			methodNotAllowed(w, http.MethodGet, http.MethodPatch, http.MethodDelete)
		}
	default:
		writeDetail(w, http.StatusNotFound, "Not Found")
	}
}

func (h *Handler) routeGroups(w http.ResponseWriter, r *http.Request, rest []string) {
	switch {
	case len(rest) == 0:
		switch r.Method {
		case http.MethodPost:
			h.handleCreateGroup(w, r)
		case http.MethodGet:
			h.handleListGroups(w, r)
		default:
			methodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	case len(rest) == 1 && rest[0] == "bulk_create":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleBulkCreateGroups(w, r)
	case len(rest) == 1:
		id, ok := parseID(rest[0])
		if !ok {
			writeDetail(w, http.StatusNotFound, masterdata.ErrGroupNotFound.Message)
			return
		}
		switch r.Method {
		case http.MethodGet:
			h.handleGetGroup(w, r, id)
		case http.MethodPatch:
			h.handleUpdateGroup(w, r, id)
		case http.MethodDelete:
			h.handleDeleteGroup(w, r, id)
		default:
			methodNotAllowed(w, http.MethodGet, http.MethodPatch, http.MethodDelete)
		}
	default:
		writeDetail(w, http.StatusNotFound, "Not Found")
	}
}

func (h *Handler) routeExports(w http.ResponseWriter, r *http.Request, rest []string) {
	if len(rest) != 1 {
		writeDetail(w, http.StatusNotFound, "Not Found")
		return
	}
	var format string
	switch rest[0] {
	case "sites.xlsx":
		format = formatXLSX
	case "sites.pdf":
		format = formatPDF
	default:
		writeDetail(w, http.StatusNotFound, "Not Found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	h.handleExportSites(w, r, format)
}

// decode reads a JSON body into dst. Failures are reported to the client.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "read body error")
		return false
	}
	defer r.Body.Close()

	if err := json.Unmarshal(body, dst); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

func (h *Handler) validate(w http.ResponseWriter, payload any) bool {
	if err := h.validator.Validate(payload); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// respondServiceError maps registry errors to status codes.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var domainErr *masterdata.Error
	if errors.As(err, &domainErr) {
		switch domainErr.Kind {
		case masterdata.KindNotFound:
			writeDetail(w, http.StatusNotFound, domainErr.Error())
			return
		case masterdata.KindValidation, masterdata.KindIntegrity:
			writeDetail(w, http.StatusBadRequest, domainErr.Error())
			return
		}
	}
	h.logger.Error("request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeDetail(w, http.StatusInternalServerError, "internal error")
}

func (h *Handler) logAudit(r *http.Request, action, resourceType string, resourceID int64, meta map[string]any) {
	if h.auditLogger == nil {
		return
	}
	var id string
	if resourceID > 0 {
		id = strconv.FormatInt(resourceID, 10)
	}
	var metadata any
	if meta != nil {
		metadata = meta
	}
	entry, err := audit.NewEntry(action, resourceType, id, metadata)
	if err != nil {
		h.logger.Warn("audit entry failed", zap.String("action", action), zap.Error(err))
		return
	}
	if identity, ok := auth.IdentityFromContext(r.Context()); ok {
		entry.Actor = identity.Subject
		entry.Role = string(identity.Role)
	}
	entry.IP = audit.ClientIP(r)
	entry.UserAgent = r.UserAgent()
	if err := h.auditLogger.Log(r.Context(), entry); err != nil {
		h.logger.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

func parseID(value string) (int64, bool) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
}

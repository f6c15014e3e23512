package http

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"site-registry/internal/audit"
	masterdatainterfaces "site-registry/internal/masterdata/interfaces"
	"site-registry/internal/observability/metrics"
)

const (
	formatXLSX = "xlsx"
	formatPDF  = "pdf"
)

func (h *Handler) handleExportSites(w http.ResponseWriter, r *http.Request, format string) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveExport(format, result, time.Since(start))
	}()

	sites, err := h.sites.List(r.Context())
	if err != nil {
		result = metrics.ResultError
		h.respondServiceError(w, r, err)
		return
	}

	var (
		data        []byte
		contentType string
	)
	switch format {
	case formatPDF:
		contentType = masterdatainterfaces.ContentTypePDF
		data, err = masterdatainterfaces.BuildSitesPDF(sites, start)
	default:
		contentType = masterdatainterfaces.ContentTypeXLSX
		data, err = masterdatainterfaces.BuildSitesXLSX(sites)
	}
	if err != nil {
		result = metrics.ResultError
		h.logger.Error("site export failed", zap.String("format", format), zap.Error(err))
		writeDetail(w, http.StatusInternalServerError, "export "+format+" error")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="sites.%s"`, format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
	h.logAudit(r, audit.ActionSiteExport, "site", 0, map[string]any{"format": format, "count": len(sites)})
}

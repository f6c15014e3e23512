package application

import (
	"errors"
	"time"

	"go.uber.org/zap"

	masterdata "site-registry/internal/masterdata/domain"
	"site-registry/internal/observability/metrics"
)

const (
	entitySite  = "site"
	entityGroup = "group"
)

// observe records the outcome of one service operation.
func observe(logger *zap.Logger, entity, operation string, start time.Time, err error) {
	duration := time.Since(start)
	if err == nil {
		metrics.ObserveOperation(entity, operation, metrics.ResultSuccess, duration)
		return
	}

	var domainErr *masterdata.Error
	if errors.As(err, &domainErr) {
		metrics.ObserveOperation(entity, operation, metrics.ResultRejected, duration)
		if domainErr.Kind != masterdata.KindNotFound {
			metrics.IncRuleRejection(domainErr.Code)
		}
		logger.Debug("registry operation rejected",
			zap.String("entity", entity),
			zap.String("operation", operation),
			zap.String("code", domainErr.Code),
			zap.String("reason", domainErr.Error()),
		)
		return
	}

	metrics.ObserveOperation(entity, operation, metrics.ResultError, duration)
	logger.Error("registry operation failed",
		zap.String("entity", entity),
		zap.String("operation", operation),
		zap.Duration("duration", duration),
		zap.Error(err),
	)
}

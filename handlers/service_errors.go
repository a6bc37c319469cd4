package handlers

import (
	"errors"
	"net/http"

	"github.com/thermostatter/thermostatter-api/services"
	"github.com/thermostatter/thermostatter-api/utils"
	"go.uber.org/zap"
)

// HandleServiceError maps domain errors to HTTP responses.
// Credential and token failures share one body so callers cannot tell them apart.
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	details := services.GetErrorDetails(err)

	switch {
	case services.IsUnauthorizedError(err), services.IsInvalidTokenError(err):
		if err := utils.WriteUnauthorized(w, services.MsgInvalidCredentials); err != nil {
			logger.Error("failed to write unauthorized response", zap.Error(err))
		}

	case services.IsForbiddenError(err):
		if err := utils.WriteForbidden(w, services.MsgUserNotActive); err != nil {
			logger.Error("failed to write forbidden response", zap.Error(err))
		}

	case services.IsRegistrationFailedError(err):
		if err := utils.WriteBadRequest(w, services.MsgRegistrationFailed, nil); err != nil {
			logger.Error("failed to write registration failure response", zap.Error(err))
		}

	case services.IsValidationError(err):
		message := "Validation failed"
		var domainErr *services.DomainError
		if errors.As(err, &domainErr) {
			message = domainErr.Message
		}
		if err := utils.WriteBadRequest(w, message, details); err != nil {
			logger.Error("failed to write bad request response", zap.Error(err))
		}

	case services.IsInternalError(err):
		// Log internal errors but return generic message
		logger.Error("internal server error", zap.Error(err))
		if err := utils.WriteInternalServerError(w, "An internal error occurred"); err != nil {
			logger.Error("failed to write internal error response", zap.Error(err))
		}

	default:
		logger.Error("unhandled error type",
			zap.Error(err),
			zap.String("error_type", string(services.GetErrorType(err))))
		if err := utils.WriteInternalServerError(w, "An unexpected error occurred"); err != nil {
			logger.Error("failed to write internal error response", zap.Error(err))
		}
	}
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if utils.IsValidationError(err) {
		fields := utils.GetValidationFields(err)
		details := make(map[string]interface{})
		for k, v := range fields {
			details[k] = v
		}
		if err := utils.WriteBadRequest(w, "Validation failed", details); err != nil {
			logger.Error("failed to write validation error response", zap.Error(err))
		}
		return
	}

	if err := utils.WriteBadRequest(w, err.Error(), nil); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}

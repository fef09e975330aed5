package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"

	"classroom-backend/internal/logger"
	"classroom-backend/internal/middleware"
	"classroom-backend/internal/models"
	"classroom-backend/internal/pipeline"
	"classroom-backend/internal/services"
)

// genericFailureMessage is the only text a caller sees for a failed run
// other than a parameter problem.
const genericFailureMessage = "Something went wrong. Please try again."

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func requestID(r *http.Request) string {
	if id := chimiddleware.GetReqID(r.Context()); id != "" {
		return id
	}
	return r.Header.Get("X-Request-ID")
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: requestID(r),
		},
	}
}

func errorRespWithFields(code, message string, fields map[string]string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			Fields:    fields,
			RequestID: requestID(r),
		},
	}
}

// decodeAndValidate reads a JSON body into dst and runs struct validation.
func decodeAndValidate(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &services.ValidationError{Fields: map[string]string{"body": "Invalid request body"}}
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = validationMessage(fe)
		}
		return &services.ValidationError{Fields: fields}
	}
	return nil
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_with", "required_without":
		return "is required"
	case "email":
		return "must be a valid email"
	case "url":
		return "must be a valid URL"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "is invalid"
	}
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch e := err.(type) {
	case *services.ValidationError:
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", e.Fields, r))
	case *services.ConflictError:
		writeJSON(w, http.StatusConflict, errorResp("CONFLICT", e.Message, r))
	case *services.NotFoundError:
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", e.Message, r))
	case *services.UnauthorizedError:
		writeJSON(w, http.StatusUnauthorized, errorResp("UNAUTHORIZED", e.Message, r))
	case *services.ForbiddenError:
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", e.Message, r))
	default:
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Not found", r))
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An unexpected error occurred", r))
	}
}

var pipelineStatus = map[pipeline.ErrorCode]struct {
	status int
	code   string
}{
	pipeline.CodeInvalidParameters:   {http.StatusBadRequest, "VALIDATION_ERROR"},
	pipeline.CodeUpstreamUnavailable: {http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE"},
	pipeline.CodeUpstreamBlocked:     {http.StatusUnprocessableEntity, "CONTENT_BLOCKED"},
	pipeline.CodeOCRFailure:          {http.StatusBadGateway, "OCR_FAILED"},
	pipeline.CodeValidationFailure:   {http.StatusBadGateway, "GENERATION_INVALID"},
	pipeline.CodePersistenceFailure:  {http.StatusInternalServerError, "PERSISTENCE_FAILED"},
	pipeline.CodeCanceled:            {http.StatusServiceUnavailable, "REQUEST_CANCELED"},
}

// writePipelineFailure logs the full failure and answers with its status.
func writePipelineFailure(w http.ResponseWriter, r *http.Request, log *logger.Logger, out *pipeline.Outcome) {
	perr := out.Err
	if perr == nil {
		perr = &pipeline.Error{Code: pipeline.CodePersistenceFailure, Reason: "no-result"}
	}
	log.Warn("generation failed",
		"kind", out.Kind,
		"code", perr.Code,
		"reason", out.Reason(),
		"state_trace", out.Trace,
		"error", perr,
		"request_id", requestID(r),
		"email", middleware.GetEmail(r.Context()),
	)

	mapping, ok := pipelineStatus[perr.Code]
	if !ok {
		mapping = pipelineStatus[pipeline.CodePersistenceFailure]
	}
	if perr.Code == pipeline.CodeInvalidParameters {
		writeJSON(w, mapping.status, errorRespWithFields(mapping.code, "Validation failed", parameterFields(perr.Reason), r))
		return
	}
	writeJSON(w, mapping.status, errorResp(mapping.code, genericFailureMessage, r))
}

// parameterFields turns "missing-parameter:topic" into {"topic": "is required"}.
func parameterFields(reason string) map[string]string {
	kind, name, found := strings.Cut(reason, ":")
	if !found || name == "" {
		return map[string]string{"request": reason}
	}
	switch kind {
	case "missing-parameter", "missing-input":
		return map[string]string{name: "is required"}
	case "invalid-parameter":
		return map[string]string{name: "must be a positive whole number"}
	default:
		return map[string]string{"request": reason}
	}
}

// requireOwner answers 403 unless the path email belongs to the caller.
func requireOwner(w http.ResponseWriter, r *http.Request, pathEmail string) (string, bool) {
	caller := middleware.GetEmail(r.Context())
	if caller == "" || middleware.NormalizeEmail(pathEmail) != caller {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Access denied", r))
		return "", false
	}
	return caller, true
}

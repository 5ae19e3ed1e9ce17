package api

import (
	"AskArchive/backend/go/internal/archive_service/archive/schema"
	"AskArchive/backend/go/internal/models"
	"AskArchive/backend/go/pkg/logger"
	"net/http"

	"github.com/gin-gonic/gin"
)

// statusFor maps an error kind to the HTTP status returned to clients.
func statusFor(kind schema.Kind) int {
	switch kind {
	case schema.KindInvalidInput, schema.KindTranscriptsDisabled:
		return http.StatusBadRequest
	case schema.KindDuplicateSource, schema.KindBusy:
		return http.StatusConflict
	case schema.KindSourceUnavailable, schema.KindNoTranscript:
		return http.StatusNotFound
	case schema.KindEmbedding, schema.KindVectorStore, schema.KindGeneration:
		return http.StatusBadGateway
	case schema.KindLock:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	Kind       string `json:"kind,omitempty"`
	FailedSide string `json:"failed_side,omitempty"`
	Written    int    `json:"written,omitempty"`
}

// writeError logs err and writes the matching status and body.
func writeError(c *gin.Context, err error) {
	e, ok := schema.AsError(err)
	if !ok {
		e = &schema.Error{Kind: schema.KindUnknown, Message: "internal error", Err: err}
	}
	code := statusFor(e.Kind)

	body := ErrorResponse{
		Status:     schema.StatusError,
		Message:    e.Message,
		Kind:       e.Kind.String(),
		FailedSide: e.Side,
		Written:    e.Written,
	}
	if e.Kind == schema.KindDuplicateSource {
		body.Status = schema.StatusFailed
	}
	if body.Message == "" {
		body.Message = e.Kind.String()
	}

	log := requestLogger(c).WithError(models.ErrorInfo{
		Message:    err.Error(),
		Type:       e.Kind.String(),
		StatusCode: code,
	})
	if code >= http.StatusInternalServerError {
		log.Error("request failed")
	} else {
		log.Info("request rejected")
	}
	c.AbortWithStatusJSON(code, body)
}

// badRequest rejects malformed input that never reached the service.
func badRequest(c *gin.Context, message string) {
	writeError(c, schema.E(schema.KindInvalidInput, "bind", message, nil))
}

func requestLogger(c *gin.Context) *logger.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if l, ok := v.(*logger.Logger); ok {
			return l
		}
	}
	return logger.Discard()
}

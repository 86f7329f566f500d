package apperr

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const internalMessage = "Internal server error"

// Respond writes err as a JSON error body and aborts the chain. Internal and
// upstream causes are logged, never sent to the client.
func Respond(c *gin.Context, log *slog.Logger, err error) {
	kind := KindOf(err)
	status := HTTPStatus(kind)

	var e *Error
	_ = errors.As(err, &e)

	switch kind {
	case KindValidation:
		body := gin.H{"error": "Validation error"}
		if e != nil {
			if e.Message != "" {
				body["error"] = e.Message
			}
			if len(e.Fields) > 0 {
				body["details"] = e.Fields
			}
		}
		c.AbortWithStatusJSON(status, body)
	case KindInternal:
		if log != nil {
			log.Error("request failed",
				"method", c.Request.Method,
				"path", c.FullPath(),
				"request_id", c.GetString("request_id"),
				"error", err)
		}
		c.AbortWithStatusJSON(status, gin.H{"error": internalMessage})
	case KindUpstreamUnavailable:
		if log != nil {
			log.Warn("upstream unavailable", "path", c.FullPath(), "error", err)
		}
		c.AbortWithStatusJSON(status, gin.H{"error": e.Message})
	default:
		c.AbortWithStatusJSON(status, gin.H{"error": e.Message})
	}
}

// FromBinding converts a gin bind failure into a validation error with
// per-field detail.
func FromBinding(err error) *Error {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		fields := make([]FieldError, 0, len(ve))
		for _, fe := range ve {
			fields = append(fields, Field(lowerFirst(fe.Field()), tagMessage(fe)))
		}
		return Validation("Validation error", fields...)
	}
	return Validation("Validation error", Field("body", "invalid json"))
}

var registerOnce sync.Once

// UseJSONFieldNames makes gin's validator report fields by their json tag.
func UseJSONFieldNames() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
	})
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "email":
		return "must be a valid email"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "is invalid"
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

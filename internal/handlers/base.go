package handlers

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"studyforum/internal/apperr"
	"studyforum/internal/logger"
	"studyforum/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func init() {
	// 校验错误使用 JSON 字段名
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
	}
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// RespondError maps service errors to a status code and a JSON body.
// Causes of storage and upstream failures are logged, never returned.
func RespondError(c *gin.Context, log *logger.Logger, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid request", Errors: fieldErrors(verrs)})
		return
	}

	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		log.Error("Unhandled error", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Message: "Internal server error"})
		return
	}

	status := appErr.Status()
	body := ErrorResponse{Message: appErr.Message, Errors: appErr.Fields}
	switch appErr.Kind {
	case apperr.KindStorage, apperr.KindInternal:
		log.Error("Request failed", "path", c.FullPath(), "op", appErr.Message, "error", appErr.Err)
		body.Message = "Internal server error"
	case apperr.KindUpstream:
		log.Error("AI provider failed", "path", c.FullPath(), "error", appErr.Err)
	}
	c.AbortWithStatusJSON(status, body)
}

func fieldErrors(verrs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		var msg string
		switch fe.Tag() {
		case "required":
			msg = "is required"
		case "min":
			msg = "must be at least " + fe.Param() + " characters"
		case "max":
			msg = "must be at most " + fe.Param() + " characters"
		case "email":
			msg = "must be a valid email address"
		case "oneof":
			msg = "must be one of " + fe.Param()
		default:
			msg = "is invalid"
		}
		out[fe.Field()] = msg
	}
	return out
}

// bindJSON 解析请求体，失败时已写入 400
func bindJSON(c *gin.Context, log *logger.Logger, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			RespondError(c, log, err)
		} else {
			RespondError(c, log, apperr.Validation("Invalid request body", nil))
		}
		return false
	}
	return true
}

// currentUserID 返回当前登录用户 ID，未登录为空
func currentUserID(c *gin.Context) string {
	if user := middleware.CurrentUser(c); user != nil {
		return user.ID
	}
	return ""
}

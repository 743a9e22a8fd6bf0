package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"studyforum/internal/apperr"
	"studyforum/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func respond(err error) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	RespondError(c, logger.Nop(), err)
	return w
}

func TestRespondErrorKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
		body   string
	}{
		{apperr.NotFound("Post"), http.StatusNotFound, `{"message":"Post not found"}`},
		{apperr.Invalid("value", "must be 1 or -1"), http.StatusBadRequest, `{"message":"Invalid request","errors":{"value":"must be 1 or -1"}}`},
		{apperr.Forbidden("nope"), http.StatusForbidden, `{"message":"nope"}`},
		{apperr.Upstream(errors.New("llm http 500: secret body")), http.StatusBadGateway, `{"message":"AI provider request failed"}`},
		{apperr.Storage("insert vote", errors.New("disk full")), http.StatusInternalServerError, `{"message":"Internal server error"}`},
		{errors.New("boom"), http.StatusInternalServerError, `{"message":"Internal server error"}`},
	}
	for _, tc := range cases {
		w := respond(tc.err)
		assert.Equal(t, tc.status, w.Code, tc.err.Error())
		assert.JSONEq(t, tc.body, w.Body.String())
	}
}

func TestBindJSONTranslatesValidationErrors(t *testing.T) {
	var req chatRequest
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"conversationId":"x"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	assert.False(t, bindJSON(c, logger.Nop(), &req))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"message":"Invalid request","errors":{"message":"is required"}}`, w.Body.String())

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{not json`))
	assert.False(t, bindJSON(c, logger.Nop(), &req))
	assert.JSONEq(t, `{"message":"Invalid request body"}`, w.Body.String())
}

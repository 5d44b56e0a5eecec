package middleware

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/freight-service/pkg/errors"
)

func testRouter() (*gin.Engine, *slog.Logger) {
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := gin.New()
	router.Use(RequestID())
	return router, logger
}

func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) APIErrorResponse {
	t.Helper()
	var body APIErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestErrorHandlerRendersAttachedErrors(t *testing.T) {
	router, logger := testRouter()
	router.Use(ErrorHandler(logger))
	router.GET("/boom", func(c *gin.Context) {
		_ = c.Error(stderrors.New("repository write failed"))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeErrorBody(t, w)
	assert.Equal(t, errors.CodeInternalError, body.Code)
	assert.Equal(t, "/boom", body.Path)
	assert.NotEmpty(t, body.RequestID)
	// The raw cause never reaches the client.
	assert.NotContains(t, w.Body.String(), "repository write failed")
}

func TestRespondWithAppError(t *testing.T) {
	router, logger := testRouter()
	router.GET("/sessions/missing", func(c *gin.Context) {
		NewErrorResponder(c, logger).RespondWithAppError(errors.ErrNotFoundWithID("packing session", "SES-9"))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sessions/missing", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	body := decodeErrorBody(t, w)
	assert.Equal(t, errors.CodeNotFound, body.Code)
	assert.Equal(t, map[string]string{"id": "SES-9"}, body.Details)
}

func TestRecoveryTurnsPanicInto500(t *testing.T) {
	router, logger := testRouter()
	router.Use(Recovery(logger))
	router.GET("/panic", func(c *gin.Context) {
		panic("boxes slice out of range")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeErrorBody(t, w)
	assert.Equal(t, errors.CodeInternalError, body.Code)
	assert.NotContains(t, w.Body.String(), "out of range")
}

func TestRequestIDPropagatesCallerValue(t *testing.T) {
	router, _ := testRouter()
	router.GET("/", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "req-42")
	router.ServeHTTP(w, req)

	assert.Equal(t, "req-42", w.Header().Get(HeaderRequestID))
}

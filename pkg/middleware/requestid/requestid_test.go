package requestid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newRequestIDRouter(captured *string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Middleware())
	router.GET("/", func(c *gin.Context) {
		*captured = Value(c)
		c.Status(http.StatusOK)
	})
	return router
}

func TestRequestIDIssuedWhenMissing(t *testing.T) {
	var seen string
	router := newRequestIDRouter(&seen)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotEmpty(t, seen)
	require.Equal(t, seen, recorder.Header().Get("X-Request-ID"))
	_, err := uuid.Parse(seen)
	require.NoError(t, err)
}

func TestRequestIDKeptAcrossHops(t *testing.T) {
	var seen string
	router := newRequestIDRouter(&seen)

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "upstream-42")
	router.ServeHTTP(recorder, req)

	require.Equal(t, "upstream-42", seen)
	require.Equal(t, "upstream-42", recorder.Header().Get("X-Request-ID"))
}

func TestRequestIDOversizedInboundReplaced(t *testing.T) {
	var seen string
	router := newRequestIDRouter(&seen)

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", strings.Repeat("a", 65))
	router.ServeHTTP(recorder, req)

	require.NotEqual(t, strings.Repeat("a", 65), seen)
	_, err := uuid.Parse(seen)
	require.NoError(t, err)
}

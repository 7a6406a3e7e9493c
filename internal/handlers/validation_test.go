package handlers

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func contextWithQuery(t *testing.T, rawQuery string) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/?"+rawQuery, nil)
	return c
}

func TestParseIntQuery(t *testing.T) {
	c := contextWithQuery(t, "limit=25&bad=abc&padded=%2010%20")

	require.Equal(t, 25, parseIntQuery(c, "limit", 50))
	require.Equal(t, 50, parseIntQuery(c, "missing", 50))
	require.Equal(t, 50, parseIntQuery(c, "bad", 50))
	require.Equal(t, 10, parseIntQuery(c, "padded", 50))
}

func TestParseBoolQuery(t *testing.T) {
	c := contextWithQuery(t, "a=true&b=1&c=false&d=maybe")

	require.True(t, parseBoolQuery(c, "a"))
	require.True(t, parseBoolQuery(c, "b"))
	require.False(t, parseBoolQuery(c, "c"))
	require.False(t, parseBoolQuery(c, "d"))
	require.False(t, parseBoolQuery(c, "missing"))
}

func TestBindAndValidateRejectsBadJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest("POST", "/", nil)

	var req CreateNotificationRequest
	require.False(t, bindAndValidate(c, &req))
	require.Equal(t, 400, rec.Code)
}

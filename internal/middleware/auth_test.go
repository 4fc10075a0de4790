package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func mustHash(t *testing.T, secret string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	require.NoError(t, err)
	return string(hash)
}

func TestBearerToken_AcceptsValidToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hash := mustHash(t, "super-secret")

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodPost, "/schedule-runs", nil)
	c.Request.Header.Set("Authorization", "Bearer super-secret")

	called := false
	BearerToken(hash)(c)
	if !c.IsAborted() {
		called = true
	}

	assert.True(t, called)
	assert.NotEqual(t, http.StatusUnauthorized, recorder.Code)
}

func TestBearerToken_RejectsWrongToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hash := mustHash(t, "super-secret")

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodPost, "/schedule-runs", nil)
	c.Request.Header.Set("Authorization", "Bearer wrong-token")

	BearerToken(hash)(c)

	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestBearerToken_RejectsMissingHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hash := mustHash(t, "super-secret")

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodPost, "/schedule-runs", nil)

	BearerToken(hash)(c)

	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestBearerToken_RejectsMalformedScheme(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hash := mustHash(t, "super-secret")

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodPost, "/schedule-runs", nil)
	c.Request.Header.Set("Authorization", "Basic super-secret")

	BearerToken(hash)(c)

	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestBearerToken_RejectsUnconfiguredGateway(t *testing.T) {
	gin.SetMode(gin.TestMode)

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodPost, "/schedule-runs", nil)
	c.Request.Header.Set("Authorization", "Bearer anything")

	BearerToken("")(c)

	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
}

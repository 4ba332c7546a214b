package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func authRequest(t *testing.T, header string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/x", AuthMiddleware(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"uid": GetUserID(c)})
	})

	req := httptest.NewRequest("GET", "/x", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuthAcceptsUUIDSubject(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	token := signToken(t, "test-secret", jwt.MapClaims{
		"sub": "3e0b3a9e-8f35-4f4f-9b36-0f4f2a6a9a01",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	w := authRequest(t, "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "3e0b3a9e-8f35-4f4f-9b36-0f4f2a6a9a01")
}

func TestAuthRejectsNonUUIDSubject(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	// The store keys rows on UUID-typed user ids; a non-UUID subject must
	// fail here, not at insert time.
	token := signToken(t, "test-secret", jwt.MapClaims{
		"sub": "bob",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	w := authRequest(t, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRejectsMissingSubject(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	token := signToken(t, "test-secret", jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	w := authRequest(t, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRejectsWrongSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	token := signToken(t, "other-secret", jwt.MapClaims{
		"sub": "3e0b3a9e-8f35-4f4f-9b36-0f4f2a6a9a01",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	w := authRequest(t, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRejectsMissingHeader(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	w := authRequest(t, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

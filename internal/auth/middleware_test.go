package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, m *Manager) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin", RequireRole(m, RoleAdmin), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextSubject))
	})
	return r
}

func TestRequireRole(t *testing.T) {
	m, err := NewManager(Options{SigningKey: []byte("test-secret"), Issuer: "acquirer-gateway"})
	require.NoError(t, err)
	other, err := NewManager(Options{SigningKey: []byte("other-secret"), Issuer: "acquirer-gateway"})
	require.NoError(t, err)

	admin, err := m.Issue("ops@example.com", RoleAdmin, time.Minute)
	require.NoError(t, err)
	viewer, err := m.Issue("viewer@example.com", "viewer", time.Minute)
	require.NoError(t, err)
	expired, err := m.Issue("ops@example.com", RoleAdmin, -time.Minute)
	require.NoError(t, err)
	forged, err := other.Issue("ops@example.com", RoleAdmin, time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid admin", "Bearer " + admin, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + admin, http.StatusUnauthorized},
		{"wrong role", "Bearer " + viewer, http.StatusForbidden},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong key", "Bearer " + forged, http.StatusUnauthorized},
	}

	r := newTestRouter(t, m)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusOK {
				assert.Equal(t, "ops@example.com", w.Body.String())
			}
		})
	}
}

func TestNewManager_RequiresKey(t *testing.T) {
	_, err := NewManager(Options{})
	assert.Error(t, err)
}

package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func testSigner() *Signer {
	return NewSigner("classroll-test", "secret", time.Minute, time.Hour)
}

func TestIssueAndParse(t *testing.T) {
	s := testSigner()
	pair, err := s.Issue("2", "STUDENT")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	claims, err := s.ParseAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("ParseAccess failed: %v", err)
	}
	if claims.Subject != "2" || claims.Role != "STUDENT" {
		t.Errorf("Unexpected claims: %+v", claims)
	}
	if _, err := s.ParseRefresh(pair.RefreshToken); err != nil {
		t.Errorf("ParseRefresh failed: %v", err)
	}
}

func TestParseRejectsWrongKind(t *testing.T) {
	s := testSigner()
	pair, _ := s.Issue("2", "STUDENT")

	if _, err := s.ParseAccess(pair.RefreshToken); !errors.Is(err, ErrWrongTokenKind) {
		t.Errorf("Expected ErrWrongTokenKind, got %v", err)
	}
	if _, err := s.ParseRefresh(pair.AccessToken); !errors.Is(err, ErrWrongTokenKind) {
		t.Errorf("Expected ErrWrongTokenKind, got %v", err)
	}
}

func TestParseRejectsExpiredAndForeignTokens(t *testing.T) {
	s := testSigner()
	issuedAt := time.Now().Add(-2 * time.Minute)
	s.now = func() time.Time { return issuedAt }
	pair, _ := s.Issue("2", "STUDENT")
	s.now = time.Now

	if _, err := s.ParseAccess(pair.AccessToken); err == nil {
		t.Error("Expected expired token to be rejected")
	}

	other := NewSigner("classroll-test", "other-secret", time.Minute, time.Hour)
	foreign, _ := other.Issue("1", "ADMIN")
	if _, err := s.ParseAccess(foreign.AccessToken); err == nil {
		t.Error("Expected token signed with another key to be rejected")
	}

	wrongIssuer := NewSigner("someone-else", "secret", time.Minute, time.Hour)
	stray, _ := wrongIssuer.Issue("1", "ADMIN")
	if _, err := s.ParseAccess(stray.AccessToken); err == nil {
		t.Error("Expected issuer mismatch to be rejected")
	}
}

func newAuthRouter(s *Signer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin", SessionAuth(s), RequireRole("ADMIN"), func(c *gin.Context) {
		claims, _ := ClaimsFrom(c)
		c.String(http.StatusOK, claims.Subject)
	})
	return r
}

func TestMiddleware(t *testing.T) {
	s := testSigner()
	r := newAuthRouter(s)
	admin, _ := s.Issue("1", "ADMIN")
	student, _ := s.Issue("2", "STUDENT")

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"garbage token", "Bearer nope", http.StatusUnauthorized},
		{"refresh token", "Bearer " + admin.RefreshToken, http.StatusUnauthorized},
		{"wrong role", "Bearer " + student.AccessToken, http.StatusForbidden},
		{"admin", "bearer " + admin.AccessToken, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}

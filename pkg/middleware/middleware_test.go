package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Astemirdum/library-catalog/pkg/auth"
	md "github.com/Astemirdum/library-catalog/pkg/middleware"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

type stubAuthenticator map[string]string

func (s stubAuthenticator) Authenticate(_ context.Context, token string) (string, error) {
	sid, ok := s[token]
	if !ok {
		return "", errors.New("unknown token")
	}
	return sid, nil
}

func TestAdminAuth(t *testing.T) {
	tests := []struct {
		name         string
		header       string
		expectedCode int
		expectedBody string
	}{
		{name: "ok", header: "Bearer good", expectedCode: http.StatusOK, expectedBody: "sess-1"},
		{name: "no header", expectedCode: http.StatusUnauthorized, expectedBody: `{"message":"No Authorization Header"}`},
		{name: "not bearer", header: "Basic abc", expectedCode: http.StatusUnauthorized, expectedBody: `{"message":"Invalid Authorization Header"}`},
		{name: "revoked", header: "Bearer gone", expectedCode: http.StatusUnauthorized, expectedBody: `{"message":"admin session required"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			e.GET("/admin", func(c echo.Context) error {
				require.True(t, auth.IsAdmin(c.Request().Context()))
				return c.String(http.StatusOK, auth.GetSessionID(c.Request().Context()))
			}, md.AdminAuth(stubAuthenticator{"good": "sess-1"}))

			r := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.header != "" {
				r.Header.Set(md.AuthorizationHeader, tt.header)
			}
			w := httptest.NewRecorder()
			e.ServeHTTP(w, r)

			require.Equal(t, tt.expectedCode, w.Code)
			require.Equal(t, tt.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

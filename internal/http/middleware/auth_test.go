package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/pix-panel/internal/auth"
)

const jwtSecret = "mw-secret"

func authRouter(extra ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), Authenticate(auth.NewVerifier(jwtSecret), "token"))
	r.Use(extra...)
	r.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": UserID(c), "admin": IsAdmin(c)})
	})
	return r
}

func token(t *testing.T, uid, role string) string {
	t.Helper()
	tok, err := auth.Sign(jwtSecret, auth.Identity{UserID: uid, Role: role}, time.Hour)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return tok
}

func TestAuthenticate_CookieAndBearer(t *testing.T) {
	r := authRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: token(t, "u1", "user")})
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Body.String() != `{"admin":false,"user":"u1"}` {
		t.Fatalf("cookie: %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, "a1", "admin"))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Body.String() != `{"admin":true,"user":"a1"}` {
		t.Fatalf("bearer: %d %s", w.Code, w.Body.String())
	}
}

func TestAuthenticate_Rejects(t *testing.T) {
	r := authRouter()
	for name, setup := range map[string]func(*http.Request){
		"none":      func(*http.Request) {},
		"garbage":   func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "token", Value: "x.y.z"}) },
		"basic":     func(r *http.Request) { r.Header.Set("Authorization", "Basic dXNlcjpwYXNz") },
		"other key": func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+mustSign(t, "other")) },
	} {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			setup(req)
			r.ServeHTTP(w, req)
			if w.Code != http.StatusUnauthorized || decodeEnvelope(t, w).Code != "unauthorized" {
				t.Fatalf("got %d %s", w.Code, w.Body.String())
			}
		})
	}
}

func mustSign(t *testing.T, key string) string {
	t.Helper()
	tok, err := auth.Sign(key, auth.Identity{UserID: "u1", Role: "user"}, time.Hour)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return tok
}

func TestRequireAdmin(t *testing.T) {
	r := authRouter(RequireAdmin())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, "u1", "user"))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden || decodeEnvelope(t, w).Code != "forbidden" {
		t.Fatalf("user got %d", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, "a1", "admin"))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("admin got %d", w.Code)
	}
}

type fixedSwitch bool

func (f fixedSwitch) MaintenanceMode(context.Context) bool { return bool(f) }

func TestMaintenance(t *testing.T) {
	cases := []struct {
		name string
		on   bool
		role string
		want int
	}{
		{"off", false, "user", http.StatusOK},
		{"on user", true, "user", http.StatusServiceUnavailable},
		{"on admin", true, "admin", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.Use(withIdentity("u1", tc.role), Maintenance(fixedSwitch(tc.on)))
			r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
			if w.Code != tc.want {
				t.Fatalf("status = %d; want %d", w.Code, tc.want)
			}
			if tc.want == http.StatusServiceUnavailable && decodeEnvelope(t, w).Code != "maintenance" {
				t.Fatalf("body = %s", w.Body.String())
			}
		})
	}
}

func TestCronSecret(t *testing.T) {
	open := gin.New()
	open.Use(CronSecret(""))
	open.POST("/sweep", func(c *gin.Context) { c.Status(http.StatusOK) })
	w := httptest.NewRecorder()
	open.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sweep", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("open route: %d", w.Code)
	}

	guarded := gin.New()
	guarded.Use(CronSecret("tick"))
	guarded.POST("/sweep", func(c *gin.Context) { c.Status(http.StatusOK) })
	for hdr, want := range map[string]int{"": http.StatusUnauthorized, "tock": http.StatusUnauthorized, "tick": http.StatusOK} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/sweep", nil)
		if hdr != "" {
			req.Header.Set(HeaderCronSecret, hdr)
		}
		guarded.ServeHTTP(w, req)
		if w.Code != want {
			t.Fatalf("header %q: status %d; want %d", hdr, w.Code, want)
		}
	}
}

type provisionerFunc func(ctx context.Context, id, role string) error

func (f provisionerFunc) Provision(ctx context.Context, id, role string) error { return f(ctx, id, role) }

func TestProvisionUser(t *testing.T) {
	var calls []string
	ok := provisionerFunc(func(_ context.Context, id, role string) error {
		calls = append(calls, id+"/"+role)
		return nil
	})
	r := authRouter(ProvisionUser(ok))
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: token(t, "u7", "admin")})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || len(calls) != 1 || calls[0] != "u7/admin" {
		t.Fatalf("provisioned = %v, status %d", calls, w.Code)
	}

	down := provisionerFunc(func(context.Context, string, string) error { return errors.New("db down") })
	r = authRouter(ProvisionUser(down))
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: token(t, "u7", "user")})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable || decodeEnvelope(t, w).Code != "service_unavailable" {
		t.Fatalf("failing provisioner: %d %s", w.Code, w.Body.String())
	}
}

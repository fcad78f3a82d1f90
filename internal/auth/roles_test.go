package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/TjayDev-11/Servicesoko-sub000/internal/domain"
)

func newGuardedApp(guard fiber.Handler, role domain.Role) *fiber.App {
	app := newTestApp()
	app.Get("/guarded", func(c *fiber.Ctx) error {
		if role != "" {
			c.Locals(principalKey, &domain.Principal{UserID: "user-1", Role: role})
		}
		return c.Next()
	}, guard, func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

func guardStatus(t *testing.T, app *fiber.App) int {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/guarded", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	return resp.StatusCode
}

func TestRequireSeller(t *testing.T) {
	cases := []struct {
		role domain.Role
		want int
	}{
		{domain.RoleSeller, http.StatusOK},
		{domain.RoleBoth, http.StatusOK},
		{domain.RoleAdmin, http.StatusOK},
		{domain.RoleBuyer, http.StatusForbidden},
		{"", http.StatusForbidden},
	}
	for _, tc := range cases {
		if got := guardStatus(t, newGuardedApp(RequireSeller(), tc.role)); got != tc.want {
			t.Fatalf("role %q: expected %d, got %d", tc.role, tc.want, got)
		}
	}
}

func TestRequireAdmin(t *testing.T) {
	if got := guardStatus(t, newGuardedApp(RequireAdmin(), domain.RoleAdmin)); got != http.StatusOK {
		t.Fatalf("admin: expected 200, got %d", got)
	}
	if got := guardStatus(t, newGuardedApp(RequireAdmin(), domain.RoleSeller)); got != http.StatusForbidden {
		t.Fatalf("seller: expected 403, got %d", got)
	}
}

func TestRequireAuthenticated(t *testing.T) {
	if got := guardStatus(t, newGuardedApp(RequireAuthenticated(), domain.RoleBuyer)); got != http.StatusOK {
		t.Fatalf("buyer: expected 200, got %d", got)
	}
	if got := guardStatus(t, newGuardedApp(RequireAuthenticated(), "")); got != http.StatusUnauthorized {
		t.Fatalf("anonymous: expected 401, got %d", got)
	}
}

package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/tcioe/appointment-service/internal/appointment"
)

const principalKey contextKey = "principal"

// RequirePrincipal guards admin routes. The upstream gateway authenticates
// the caller and asserts identity and role through headers; requests without
// a usable assertion are rejected.
func RequirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.Header.Get("X-Principal-Id"))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid principal", "")
			return
		}

		role := appointment.Role(r.Header.Get("X-Principal-Role"))
		switch role {
		case appointment.RolePlatformAdmin, appointment.RoleEMISStaff,
			appointment.RoleDepartmentAdmin, appointment.RoleOfficial:
		default:
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid principal role", "")
			return
		}

		p := appointment.Principal{ID: id, Role: role}
		if dept, err := uuid.Parse(r.Header.Get("X-Department-Id")); err == nil {
			p.DepartmentID = &dept
		}
		if desig, err := uuid.Parse(r.Header.Get("X-Designation-Id")); err == nil {
			p.DesignationID = &desig
		}

		ctx := context.WithValue(r.Context(), principalKey, p)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func principalFrom(ctx context.Context) appointment.Principal {
	p, _ := ctx.Value(principalKey).(appointment.Principal)
	return p
}

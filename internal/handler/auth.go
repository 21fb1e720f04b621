package handler

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// AdminUser is the basic-auth user name accepted on /api/admin.
const AdminUser = "admin"

// requireAdmin is middleware that checks basic-auth credentials against the
// configured admin password hash.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(h.config.AdminPasswordHash) == 0 {
			writeError(w, r, http.StatusForbidden, "ErrAdminDisabled", nil)
			return
		}

		user, password, ok := r.BasicAuth()
		userOK := subtle.ConstantTimeCompare([]byte(user), []byte(AdminUser)) == 1
		// Always run bcrypt so a wrong user name costs the same as a wrong password.
		passErr := bcrypt.CompareHashAndPassword(h.config.AdminPasswordHash, []byte(password))
		if !ok || !userOK || passErr != nil {
			slog.Warn("admin authentication failed", "remote", r.RemoteAddr, "path", r.URL.Path)
			w.Header().Set("WWW-Authenticate", `Basic realm="interviewprep admin", charset="UTF-8"`)
			writeError(w, r, http.StatusUnauthorized, "ErrUnauthorized", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

package api

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/soaringjerry/Vox/internal/middleware"
	"github.com/soaringjerry/Vox/internal/services"
)

type verifyPasswordRequest struct {
	Password string `json:"password" validate:"max=1024"`
}

// POST /api/verify-password
// Every failure carries valid:false so clients can branch on one field.
func (rt *Router) handleVerifyPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req verifyPasswordRequest
	if err := rt.decodeJSON(r, &req); err != nil {
		rt.writeVerifyError(w, err)
		return
	}
	sess, err := rt.passwords.Verify(r.Context(), req.Password)
	if err != nil {
		rt.writeVerifyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":        true,
		"sessionToken": sess.Token,
		"expiresAt":    sess.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (rt *Router) writeVerifyError(w http.ResponseWriter, err error) {
	status, msg := rt.errorBody(err)
	writeJSON(w, status, map[string]any{"valid": false, "error": msg})
}

// GET|POST /api/get-recordings
func (rt *Router) handleGetRecordings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	recs, err := rt.recordings.List(r.Context())
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recordings": recs})
}

type downloadRequest struct {
	FilePath    string `json:"filePath" validate:"max=1024"`
	RecordingID string `json:"recordingId" validate:"omitempty,max=64"`
	AudioURL    string `json:"audioUrl" validate:"omitempty,url"`
}

// POST /api/download-recording
func (rt *Router) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req downloadRequest
	if err := rt.decodeJSON(r, &req); err != nil {
		rt.writeError(w, err)
		return
	}
	signed, err := rt.recordings.SignDownload(r.Context(), services.DownloadRequest{
		FilePath:    req.FilePath,
		RecordingID: req.RecordingID,
		AudioURL:    req.AudioURL,
	})
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"signedUrl": signed})
}

type manageRolesRequest struct {
	Action string `json:"action"`
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

// POST /api/manage-roles
// A non-admin caller is refused before the body is read.
func (rt *Router) handleManageRoles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	sess, _ := middleware.SessionFromContext(r.Context())
	if err := rt.roles.RequireAdmin(r.Context(), sess.UserID); err != nil {
		rt.writeError(w, err)
		return
	}
	var req manageRolesRequest
	if err := rt.decodeJSON(r, &req); err != nil {
		rt.writeError(w, err)
		return
	}
	res, err := rt.roles.Manage(r.Context(), sess.UserID, services.RoleRequest{Action: req.Action, UserID: req.UserID, Role: req.Role})
	if err != nil {
		rt.writeError(w, err)
		return
	}
	if res.Listed {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "roles": res.Roles})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": res.Message})
}

type setupAdminRequest struct {
	SetupSecret string `json:"setupSecret"`
	UserID      string `json:"userId"`
}

// POST /api/setup-initial-admin
func (rt *Router) handleSetupInitialAdmin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req setupAdminRequest
	if err := rt.decodeJSON(r, &req); err != nil {
		rt.writeError(w, err)
		return
	}
	if err := rt.roles.Bootstrap(r.Context(), req.SetupSecret, req.UserID); err != nil {
		rt.writeError(w, err)
		return
	}
	rt.logger.Info("initial admin created", zap.String("user_id", req.UserID))
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Initial admin created successfully"})
}

// POST /api/sign-out
func (rt *Router) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if err := rt.sessions.SignOut(r.Context(), middleware.SessionToken(r)); err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type whitelistRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// POST /api/check-whitelist
func (rt *Router) handleCheckWhitelist(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req whitelistRequest
	if err := rt.decodeJSON(r, &req); err != nil {
		rt.writeError(w, err)
		return
	}
	ok, err := rt.whitelist.Check(r.Context(), req.Email)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"allowed": ok})
}

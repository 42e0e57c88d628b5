package api

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/soaringjerry/Vox/internal/middleware"
	"github.com/soaringjerry/Vox/internal/services"
	"github.com/soaringjerry/Vox/internal/utils"
)

type Config struct {
	Store              Store
	Sessions           services.SessionStore // optional; defaults to Store
	Blobs              services.BlobStore
	Bucket             string
	RecordingsPassword string
	SetupSecret        string
	SessionTTL         time.Duration
	SignedURLTTL       time.Duration
	MaxUploadBytes     int64
	Logger             *zap.Logger
}

type Router struct {
	passwords  *services.PasswordService
	sessions   *services.SessionService
	recordings *services.RecordingService
	roles      *services.RoleService
	whitelist  *services.WhitelistService
	validate   *validator.Validate
	maxUpload  int64
	logger     *zap.Logger
}

func NewRouter(cfg Config) *Router {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sessions := cfg.Sessions
	if sessions == nil {
		sessions = cfg.Store
	}
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 50 << 20
	}
	return &Router{
		passwords:  services.NewPasswordService(sessions, cfg.RecordingsPassword, cfg.SessionTTL, logger.Named("password")),
		sessions:   services.NewSessionService(sessions, logger.Named("session")),
		recordings: services.NewRecordingService(cfg.Store, cfg.Blobs, cfg.Bucket, cfg.SignedURLTTL, logger.Named("recordings")),
		roles:      services.NewRoleService(cfg.Store, cfg.SetupSecret, logger.Named("roles")),
		whitelist:  services.NewWhitelistService(cfg.Store, logger.Named("whitelist")),
		validate:   validator.New(),
		maxUpload:  maxUpload,
		logger:     logger.Named("api"),
	}
}

func (rt *Router) SessionService() *services.SessionService     { return rt.sessions }
func (rt *Router) WhitelistService() *services.WhitelistService { return rt.whitelist }

func (rt *Router) Register(mux *http.ServeMux) {
	requireSession := middleware.RequireSession(rt.sessions, rt.writeError)

	// Admin shims.
	mux.HandleFunc("/api/verify-password", rt.handleVerifyPassword)
	mux.Handle("/api/get-recordings", requireSession(http.HandlerFunc(rt.handleGetRecordings)))
	mux.Handle("/api/download-recording", requireSession(http.HandlerFunc(rt.handleDownload)))
	mux.Handle("/api/manage-roles", requireSession(http.HandlerFunc(rt.handleManageRoles)))
	mux.HandleFunc("/api/setup-initial-admin", rt.handleSetupInitialAdmin)
	mux.HandleFunc("/api/sign-out", rt.handleSignOut)
	mux.HandleFunc("/api/check-whitelist", rt.handleCheckWhitelist)

	// Onboarding.
	mux.HandleFunc("/api/recordings", rt.handleUpload)
	mux.HandleFunc("/api/questions", rt.handleQuestions)

	mux.HandleFunc("/health", rt.handleHealth)
}

// Handler wraps mux with the middleware every route gets.
func (rt *Router) Handler(mux *http.ServeMux) http.Handler {
	var h http.Handler = mux
	h = middleware.LocaleMiddleware(h)
	h = middleware.SecureHeaders(h)
	h = middleware.NoStore(h)
	h = middleware.CORS(h)
	h = middleware.RequestLog(rt.logger)(h)
	return h
}

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	locale := middleware.LocaleFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"name":   "Vox API",
		"locale": locale,
		"msg":    utils.T(locale, "health.ok"),
	})
}

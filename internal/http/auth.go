package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"schoolhub/server/internal/auth"
	"schoolhub/server/internal/crypto"
	"schoolhub/server/internal/model"
)

type registerRequest struct {
	Email     string  `json:"email"`
	Password  string  `json:"password"`
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
	Role      string  `json:"role"`
	SchoolID  *string `json:"schoolId"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "missing_email")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "weak_password")
		return
	}
	if strings.TrimSpace(req.FirstName) == "" {
		writeError(w, http.StatusBadRequest, "missing_first_name")
		return
	}
	if req.Role == "" {
		req.Role = auth.RoleSchoolAdmin
	}
	if !auth.ValidRole(req.Role) {
		writeError(w, http.StatusBadRequest, "invalid_role")
		return
	}
	if req.Role != auth.RoleSuperAdmin && (req.SchoolID == nil || *req.SchoolID == "") {
		writeError(w, http.StatusBadRequest, "missing_school_id")
		return
	}

	// Registration is public only for the plain school_admin signup. Any
	// other role requires a privileged caller: super_admin may create
	// anything, a school_admin only teachers of their own school, a teacher
	// nothing.
	caller, err := s.optionalClaims(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_token")
		return
	}
	switch {
	case caller == nil:
		if req.Role != auth.RoleSchoolAdmin {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
	case caller.Role == auth.RoleSuperAdmin:
	case caller.Role == auth.RoleSchoolAdmin:
		if req.Role != auth.RoleTeacher || derefOrEmpty(req.SchoolID) != caller.SchoolID {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
	default:
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	now := time.Now().UTC()
	identity := model.AuthUser{
		ID:           uuid.NewString(),
		Email:        req.Email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	user := model.User{
		ID:        identity.ID,
		Email:     req.Email,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Role:      req.Role,
		SchoolID:  req.SchoolID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateUserWithIdentity(r.Context(), identity, user); err != nil {
		if isUniqueViolation(err) {
			writeError(w, http.StatusConflict, "email_taken")
			return
		}
		writeStoreError(w, err, "school_not_found")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"user":    user,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_credentials")
		return
	}

	identity, err := s.store.GetAuthUserByEmail(r.Context(), req.Email)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}
	if err := crypto.CheckPassword(identity.PasswordHash, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}
	profile, err := s.store.GetUser(r.Context(), identity.ID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}
	s.issueTokens(w, r, profile)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil || req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "missing_refresh_token")
		return
	}

	session, err := s.store.GetRefreshSession(r.Context(), crypto.HashToken(req.RefreshToken))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_refresh_token")
		return
	}
	if session.RevokedAt != nil || time.Now().After(session.ExpiresAt) {
		writeError(w, http.StatusUnauthorized, "invalid_refresh_token")
		return
	}
	profile, err := s.store.GetUser(r.Context(), session.UserID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_refresh_token")
		return
	}

	// Rotate: the presented token is spent either way.
	if err := s.store.RevokeRefreshSession(r.Context(), session.ID, time.Now().UTC()); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	s.issueTokens(w, r, profile)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if err := s.store.RevokeRefreshSessionsByUser(r.Context(), claims.UserID, time.Now().UTC()); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) issueTokens(w http.ResponseWriter, r *http.Request, profile model.User) {
	schoolID := ""
	if profile.SchoolID != nil {
		schoolID = *profile.SchoolID
	}
	access, err := auth.NewAccessToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, s.cfg.AccessTokenTTL, auth.Claims{
		UserID:   profile.ID,
		Role:     profile.Role,
		SchoolID: schoolID,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	refresh, err := crypto.NewRefreshToken()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	now := time.Now().UTC()
	session := model.RefreshSession{
		ID:        uuid.NewString(),
		UserID:    profile.ID,
		TokenHash: crypto.HashToken(refresh),
		UserAgent: userAgent(r),
		IPAddress: clientIP(r),
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.RefreshTokenTTL),
	}
	if err := s.store.CreateRefreshSession(r.Context(), session); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"access_token":  access,
		"refresh_token": refresh,
		"expires_in":    int(s.cfg.AccessTokenTTL.Seconds()),
		"user":          profile,
	})
}

func userAgent(r *http.Request) *string {
	ua := r.Header.Get("User-Agent")
	if ua == "" {
		return nil
	}
	return &ua
}

package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"schoolhub/server/internal/auth"
	"schoolhub/server/internal/crypto"
	"schoolhub/server/internal/model"
	"schoolhub/server/internal/repository"
)

type teacherResponse struct {
	model.User
	Classes []repository.ClassRef `json:"classes"`
}

func (s *Server) handleListTeachers(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	schoolID, ok := schoolScope(claims, r.URL.Query().Get("schoolId"))
	if !ok || !auth.Allow(claims, auth.ActionReadTeachers, schoolID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	teachers, err := s.store.ListTeachers(r.Context(), schoolID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	ids := make([]string, 0, len(teachers))
	for _, teacher := range teachers {
		ids = append(ids, teacher.ID)
	}
	classesByTeacher, err := s.store.ListTeacherClasses(r.Context(), ids)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	out := make([]teacherResponse, 0, len(teachers))
	for _, teacher := range teachers {
		classes := classesByTeacher[teacher.ID]
		if classes == nil {
			classes = []repository.ClassRef{}
		}
		out = append(out, teacherResponse{User: teacher, Classes: classes})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"teachers": out})
}

type createTeacherRequest struct {
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
	Email     string  `json:"email"`
	Password  string  `json:"password"`
	SchoolID  *string `json:"schoolId"`
}

func (s *Server) handleCreateTeacher(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	var req createTeacherRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "missing_email")
		return
	}
	if req.FirstName == "" {
		writeError(w, http.StatusBadRequest, "missing_first_name")
		return
	}

	schoolID, ok := schoolScope(claims, derefOrEmpty(req.SchoolID))
	if !ok || !auth.Allow(claims, auth.ActionCreateTeachers, schoolID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	if schoolID == "" {
		writeError(w, http.StatusBadRequest, "missing_school_id")
		return
	}

	// Admins may omit the password; the teacher then gets a generated one to
	// change on first login.
	password := req.Password
	temporary := false
	if password == "" {
		random, err := crypto.NewRefreshToken()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "server_error")
			return
		}
		password = random[:12]
		temporary = true
	} else if len(password) < 8 {
		writeError(w, http.StatusBadRequest, "weak_password")
		return
	}
	hash, err := crypto.HashPassword(password)
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
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      auth.RoleTeacher,
		SchoolID:  &schoolID,
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

	resp := map[string]interface{}{
		"success": true,
		"user":    user,
	}
	if temporary {
		resp["temporary_password"] = password
	}
	writeJSON(w, http.StatusCreated, resp)
}

type updateTeacherRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

func (s *Server) handleUpdateTeacher(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	teacherID := chi.URLParam(r, "teacherId")

	existing, err := s.store.GetUser(r.Context(), teacherID)
	if err != nil || existing.Role != auth.RoleTeacher {
		writeError(w, http.StatusNotFound, "teacher_not_found")
		return
	}
	if !auth.Allow(claims, auth.ActionManageTeachers, derefOrEmpty(existing.SchoolID)) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	var req updateTeacherRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	if req.Email == "" || req.FirstName == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	// The identity email changes first; if that fails nothing else moves. A
	// profile failure after a successful identity update is reported as a 500
	// and leaves the two stores briefly out of step until retried.
	now := time.Now().UTC()
	if err := s.store.UpdateAuthUserEmail(r.Context(), teacherID, req.Email, now); err != nil {
		if isUniqueViolation(err) {
			writeError(w, http.StatusConflict, "email_taken")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if err := s.store.UpdateUserProfile(r.Context(), teacherID, req.Email, req.FirstName, req.LastName, now); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleDeleteTeacher(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	teacherID := chi.URLParam(r, "teacherId")

	existing, err := s.store.GetUser(r.Context(), teacherID)
	if err != nil || existing.Role != auth.RoleTeacher {
		writeError(w, http.StatusNotFound, "teacher_not_found")
		return
	}
	if !auth.Allow(claims, auth.ActionManageTeachers, derefOrEmpty(existing.SchoolID)) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	if err := s.store.DeleteTeacher(r.Context(), teacherID); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"schoolhub/server/internal/auth"
	"schoolhub/server/internal/model"
)

func (s *Server) handleListSchools(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	if claims.Role == auth.RoleSuperAdmin {
		schools, err := s.store.ListSchools(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "server_error")
			return
		}
		if schools == nil {
			schools = []model.School{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"schools": schools})
		return
	}

	// Scoped roles only ever see their own school.
	if claims.SchoolID == "" {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	school, err := s.store.GetSchool(r.Context(), claims.SchoolID)
	if err != nil {
		writeStoreError(w, err, "school_not_found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"schools": []model.School{school}})
}

type schoolRequest struct {
	Name    string  `json:"name"`
	Address *string `json:"address"`
}

func (s *Server) handleCreateSchool(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if !auth.Allow(claims, auth.ActionManageSchools, "") {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	var req schoolRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "missing_name")
		return
	}

	now := time.Now().UTC()
	school := model.School{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Address:   req.Address,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateSchool(r.Context(), school); err != nil {
		writeStoreError(w, err, "school_not_found")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"school": school})
}

func (s *Server) handleUpdateSchool(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if !auth.Allow(claims, auth.ActionManageSchools, "") {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	schoolID := chi.URLParam(r, "schoolId")
	var req schoolRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "missing_name")
		return
	}

	school := model.School{
		ID:        schoolID,
		Name:      req.Name,
		Address:   req.Address,
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.store.UpdateSchool(r.Context(), school); err != nil {
		writeStoreError(w, err, "school_not_found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleDeleteSchool(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if !auth.Allow(claims, auth.ActionManageSchools, "") {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	schoolID := chi.URLParam(r, "schoolId")
	if err := s.store.DeleteSchoolCascade(r.Context(), schoolID); err != nil {
		writeStoreError(w, err, "school_not_found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

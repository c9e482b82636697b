package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"schoolhub/server/internal/auth"
	"schoolhub/server/internal/model"
	"schoolhub/server/internal/repository"
)

// classResponse is the flattened shape clients consume: the owning teacher is
// embedded and the roster is a plain student list, never the join table.
type classResponse struct {
	ID          string                   `json:"id"`
	Name        string                   `json:"name"`
	Description *string                  `json:"description"`
	SchoolID    *string                  `json:"school_id"`
	CreatedAt   time.Time                `json:"created_at"`
	UpdatedAt   time.Time                `json:"updated_at"`
	Teacher     *repository.ClassTeacher `json:"teacher"`
	Students    []model.Student          `json:"students"`
}

func toClassResponse(entry repository.ClassWithRoster) classResponse {
	return classResponse{
		ID:          entry.Class.ID,
		Name:        entry.Class.Name,
		Description: entry.Class.Description,
		SchoolID:    entry.Class.SchoolID,
		CreatedAt:   entry.Class.CreatedAt,
		UpdatedAt:   entry.Class.UpdatedAt,
		Teacher:     entry.Teacher,
		Students:    entry.Students,
	}
}

func (s *Server) handleListClasses(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	schoolID, ok := schoolScope(claims, r.URL.Query().Get("schoolId"))
	if !ok {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	teacherID := ""
	if claims.Role == auth.RoleTeacher {
		teacherID = claims.UserID
	}
	entries, err := s.store.ListClassesWithRoster(r.Context(), schoolID, teacherID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	classes := make([]classResponse, 0, len(entries))
	for _, entry := range entries {
		classes = append(classes, toClassResponse(entry))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"classes": classes})
}

type classRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	TeacherID   *string `json:"teacher_id"`
	SchoolID    *string `json:"school_id"`
}

func (s *Server) handleCreateClass(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	var req classRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "missing_name")
		return
	}

	schoolID, ok := schoolScope(claims, derefOrEmpty(req.SchoolID))
	if !ok || !auth.Allow(claims, auth.ActionManageClasses, schoolID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	if schoolID == "" {
		writeError(w, http.StatusBadRequest, "missing_school_id")
		return
	}
	if req.TeacherID != nil && *req.TeacherID != "" {
		if !s.teacherInSchool(r, *req.TeacherID, schoolID) {
			writeError(w, http.StatusBadRequest, "invalid_teacher")
			return
		}
	}

	now := time.Now().UTC()
	class := model.Class{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		TeacherID:   normalizeID(req.TeacherID),
		SchoolID:    &schoolID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateClass(r.Context(), class); err != nil {
		writeStoreError(w, err, "class_not_found")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"class": class})
}

func (s *Server) handleUpdateClass(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	classID := chi.URLParam(r, "classId")

	existing, err := s.store.GetClass(r.Context(), classID)
	if err != nil {
		writeStoreError(w, err, "class_not_found")
		return
	}
	if !auth.Allow(claims, auth.ActionManageClasses, derefOrEmpty(existing.SchoolID)) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	var req classRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "missing_name")
		return
	}
	if req.TeacherID != nil && *req.TeacherID != "" {
		if !s.teacherInSchool(r, *req.TeacherID, derefOrEmpty(existing.SchoolID)) {
			writeError(w, http.StatusBadRequest, "invalid_teacher")
			return
		}
	}

	existing.Name = req.Name
	existing.Description = req.Description
	existing.TeacherID = normalizeID(req.TeacherID)
	existing.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateClass(r.Context(), existing); err != nil {
		writeStoreError(w, err, "class_not_found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleDeleteClass(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	classID := chi.URLParam(r, "classId")

	existing, err := s.store.GetClass(r.Context(), classID)
	if err != nil {
		writeStoreError(w, err, "class_not_found")
		return
	}
	if !auth.Allow(claims, auth.ActionManageClasses, derefOrEmpty(existing.SchoolID)) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	if err := s.store.DeleteClass(r.Context(), classID); err != nil {
		writeStoreError(w, err, "class_not_found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// teacherInSchool reports whether the given user is a teacher belonging to the
// school. Classes may only be assigned to teachers of their own school.
func (s *Server) teacherInSchool(r *http.Request, teacherID, schoolID string) bool {
	user, err := s.store.GetUser(r.Context(), teacherID)
	if err != nil {
		return false
	}
	return user.Role == auth.RoleTeacher && derefOrEmpty(user.SchoolID) == schoolID
}

func derefOrEmpty(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func normalizeID(value *string) *string {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil
	}
	return value
}

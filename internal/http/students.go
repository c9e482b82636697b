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

func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	if claims.Role == auth.RoleTeacher {
		students, err := s.store.ListStudentsForTeacher(r.Context(), claims.UserID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "server_error")
			return
		}
		writeStudents(w, students)
		return
	}

	schoolID, ok := schoolScope(claims, r.URL.Query().Get("schoolId"))
	if !ok {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	students, err := s.store.ListStudents(r.Context(), schoolID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeStudents(w, students)
}

func writeStudents(w http.ResponseWriter, students []model.Student) {
	if students == nil {
		students = []model.Student{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"students": students})
}

type studentRequest struct {
	FirstName string  `json:"first_name"`
	LastName  *string `json:"last_name"`
	Email     *string `json:"email"`
	SchoolID  *string `json:"school_id"`
}

func (s *Server) handleCreateStudent(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	var req studentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	req.FirstName = strings.TrimSpace(req.FirstName)
	if req.FirstName == "" {
		writeError(w, http.StatusBadRequest, "missing_first_name")
		return
	}

	schoolID, ok := schoolScope(claims, derefOrEmpty(req.SchoolID))
	if !ok || !auth.Allow(claims, auth.ActionManageStudents, schoolID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	if schoolID == "" {
		writeError(w, http.StatusBadRequest, "missing_school_id")
		return
	}

	student := model.Student{
		ID:        uuid.NewString(),
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     normalizeID(req.Email),
		SchoolID:  &schoolID,
		CreatedAt: time.Now().UTC(),
	}
	if student.LastName == nil || strings.TrimSpace(*student.LastName) == "" {
		fallback := "-"
		student.LastName = &fallback
	}
	if err := s.store.CreateStudent(r.Context(), student); err != nil {
		writeStoreError(w, err, "student_not_found")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"student": student})
}

func (s *Server) handleUpdateStudent(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	studentID := chi.URLParam(r, "studentId")

	existing, err := s.store.GetStudent(r.Context(), studentID)
	if err != nil {
		writeStoreError(w, err, "student_not_found")
		return
	}
	if !auth.Allow(claims, auth.ActionManageStudents, derefOrEmpty(existing.SchoolID)) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	var req studentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	req.FirstName = strings.TrimSpace(req.FirstName)
	if req.FirstName == "" {
		writeError(w, http.StatusBadRequest, "missing_first_name")
		return
	}

	existing.FirstName = req.FirstName
	existing.LastName = req.LastName
	existing.Email = normalizeID(req.Email)
	if err := s.store.UpdateStudent(r.Context(), existing); err != nil {
		writeStoreError(w, err, "student_not_found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleDeleteStudent(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	studentID := chi.URLParam(r, "studentId")

	existing, err := s.store.GetStudent(r.Context(), studentID)
	if err != nil {
		writeStoreError(w, err, "student_not_found")
		return
	}
	if !auth.Allow(claims, auth.ActionManageStudents, derefOrEmpty(existing.SchoolID)) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	if err := s.store.DeleteStudentSafely(r.Context(), studentID); err != nil {
		writeStoreError(w, err, "student_not_found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Enrollment

type enrollmentRequest struct {
	ClassID   string `json:"classId"`
	StudentID string `json:"studentId"`
}

func (s *Server) handleEnrollStudent(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	var req enrollmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	if req.ClassID == "" {
		writeError(w, http.StatusBadRequest, "missing_class_id")
		return
	}
	if req.StudentID == "" {
		writeError(w, http.StatusBadRequest, "missing_student_id")
		return
	}

	class, err := s.store.GetClass(r.Context(), req.ClassID)
	if err != nil {
		writeStoreError(w, err, "class_not_found")
		return
	}
	if !auth.Allow(claims, auth.ActionManageStudents, derefOrEmpty(class.SchoolID)) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	if err := s.store.EnrollStudent(r.Context(), req.ClassID, req.StudentID); err != nil {
		if isUniqueViolation(err) {
			writeError(w, http.StatusConflict, "already_enrolled")
			return
		}
		writeStoreError(w, err, "student_not_found")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]bool{"success": true})
}

func (s *Server) handleRemoveEnrollment(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	var req enrollmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	if req.ClassID == "" {
		writeError(w, http.StatusBadRequest, "missing_class_id")
		return
	}
	if req.StudentID == "" {
		writeError(w, http.StatusBadRequest, "missing_student_id")
		return
	}

	class, err := s.store.GetClass(r.Context(), req.ClassID)
	if err != nil {
		writeStoreError(w, err, "class_not_found")
		return
	}
	if !auth.Allow(claims, auth.ActionManageStudents, derefOrEmpty(class.SchoolID)) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	if err := s.store.RemoveEnrollment(r.Context(), req.StudentID, req.ClassID); err != nil {
		writeStoreError(w, err, "student_not_found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

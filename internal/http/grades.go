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

type assignmentResponse struct {
	ID           string    `json:"id"`
	ClassID      string    `json:"class_id"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
	GradedCount  int64     `json:"graded_count"`
	AverageScore *float64  `json:"average_score"`
}

func (s *Server) handleListAssignments(w http.ResponseWriter, r *http.Request) {
	classID := r.URL.Query().Get("classId")
	if classID == "" {
		writeError(w, http.StatusBadRequest, "missing_class_id")
		return
	}
	if _, status, code := s.classAccess(r, classID, auth.ActionReadGrades); status != 0 {
		writeError(w, status, code)
		return
	}

	summaries, err := s.store.ListAssignments(r.Context(), classID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	assignments := make([]assignmentResponse, 0, len(summaries))
	for _, summary := range summaries {
		assignments = append(assignments, assignmentResponse{
			ID:           summary.Assignment.ID,
			ClassID:      summary.Assignment.ClassID,
			Name:         summary.Assignment.Name,
			CreatedAt:    summary.Assignment.CreatedAt,
			GradedCount:  summary.GradedCount,
			AverageScore: summary.AverageScore,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"assignments": assignments})
}

type assignmentRequest struct {
	ClassID string `json:"classId"`
	Name    string `json:"name"`
}

func (s *Server) handleCreateAssignment(w http.ResponseWriter, r *http.Request) {
	var req assignmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.ClassID == "" {
		writeError(w, http.StatusBadRequest, "missing_class_id")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "missing_name")
		return
	}
	if _, status, code := s.classAccess(r, req.ClassID, auth.ActionWriteGrades); status != 0 {
		writeError(w, status, code)
		return
	}

	assignment := model.Assignment{
		ID:        uuid.NewString(),
		ClassID:   req.ClassID,
		Name:      req.Name,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateAssignmentWithGrades(r.Context(), assignment); err != nil {
		if isUniqueViolation(err) {
			writeError(w, http.StatusConflict, "duplicate_assignment")
			return
		}
		writeStoreError(w, err, "class_not_found")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"assignment": assignment})
}

func (s *Server) handleRenameAssignment(w http.ResponseWriter, r *http.Request) {
	assignmentID := chi.URLParam(r, "assignmentId")

	assignment, err := s.store.GetAssignment(r.Context(), assignmentID)
	if err != nil {
		writeStoreError(w, err, "assignment_not_found")
		return
	}
	if _, status, code := s.classAccess(r, assignment.ClassID, auth.ActionWriteGrades); status != 0 {
		writeError(w, status, code)
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "missing_name")
		return
	}

	// Renaming touches only the assignment row; scores stay attached to it.
	if err := s.store.RenameAssignment(r.Context(), assignmentID, req.Name); err != nil {
		if isUniqueViolation(err) {
			writeError(w, http.StatusConflict, "duplicate_assignment")
			return
		}
		writeStoreError(w, err, "assignment_not_found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleDeleteAssignment(w http.ResponseWriter, r *http.Request) {
	assignmentID := chi.URLParam(r, "assignmentId")

	assignment, err := s.store.GetAssignment(r.Context(), assignmentID)
	if err != nil {
		writeStoreError(w, err, "assignment_not_found")
		return
	}
	if _, status, code := s.classAccess(r, assignment.ClassID, auth.ActionWriteGrades); status != 0 {
		writeError(w, status, code)
		return
	}

	if err := s.store.DeleteAssignment(r.Context(), assignmentID); err != nil {
		writeStoreError(w, err, "assignment_not_found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type gradeResponse struct {
	Score     *float64      `json:"score"`
	UpdatedAt time.Time     `json:"updated_at"`
	Student   model.Student `json:"student"`
}

func (s *Server) handleListGrades(w http.ResponseWriter, r *http.Request) {
	assignmentID := r.URL.Query().Get("assignmentId")
	if assignmentID == "" {
		writeError(w, http.StatusBadRequest, "missing_assignment_id")
		return
	}
	assignment, err := s.store.GetAssignment(r.Context(), assignmentID)
	if err != nil {
		writeStoreError(w, err, "assignment_not_found")
		return
	}
	if _, status, code := s.classAccess(r, assignment.ClassID, auth.ActionReadGrades); status != 0 {
		writeError(w, status, code)
		return
	}

	entries, err := s.store.ListGrades(r.Context(), assignmentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	grades := make([]gradeResponse, 0, len(entries))
	for _, entry := range entries {
		grades = append(grades, gradeResponse{
			Score:     entry.Grade.Score,
			UpdatedAt: entry.Grade.UpdatedAt,
			Student:   entry.Student,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"grades": grades})
}

type gradeUpdateRequest struct {
	AssignmentID string `json:"assignmentId"`
	Grades       []struct {
		StudentID string   `json:"studentId"`
		Score     *float64 `json:"score"`
	} `json:"grades"`
}

func (s *Server) handleUpdateGrades(w http.ResponseWriter, r *http.Request) {
	var req gradeUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	if req.AssignmentID == "" {
		writeError(w, http.StatusBadRequest, "missing_assignment_id")
		return
	}
	assignment, err := s.store.GetAssignment(r.Context(), req.AssignmentID)
	if err != nil {
		writeStoreError(w, err, "assignment_not_found")
		return
	}
	if _, status, code := s.classAccess(r, assignment.ClassID, auth.ActionWriteGrades); status != 0 {
		writeError(w, status, code)
		return
	}

	updates := make([]repository.GradeUpdate, 0, len(req.Grades))
	for _, grade := range req.Grades {
		if grade.StudentID == "" {
			writeError(w, http.StatusBadRequest, "missing_student_id")
			return
		}
		if grade.Score != nil && (*grade.Score < 0 || *grade.Score > 100) {
			writeError(w, http.StatusBadRequest, "invalid_score")
			return
		}
		updates = append(updates, repository.GradeUpdate{StudentID: grade.StudentID, Score: grade.Score})
	}
	if err := s.store.UpsertGrades(r.Context(), req.AssignmentID, updates, time.Now().UTC()); err != nil {
		writeStoreError(w, err, "assignment_not_found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

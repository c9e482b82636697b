package http

import (
	"net/http"

	"github.com/google/uuid"

	"schoolhub/server/internal/auth"
	"schoolhub/server/internal/model"
)

func validAttendanceStatus(status string) bool {
	switch status {
	case "present", "absent", "late":
		return true
	}
	return false
}

// classAccess loads the class and checks the caller may perform the action on
// it. Teachers are additionally restricted to classes they own.
func (s *Server) classAccess(r *http.Request, classID string, action auth.Action) (model.Class, int, string) {
	claims := claimsFromContext(r.Context())
	class, err := s.store.GetClass(r.Context(), classID)
	if err != nil {
		return model.Class{}, http.StatusNotFound, "class_not_found"
	}
	if !auth.Allow(claims, action, derefOrEmpty(class.SchoolID)) {
		return model.Class{}, http.StatusForbidden, "forbidden"
	}
	if claims.Role == auth.RoleTeacher && !s.store.ClassTaughtBy(r.Context(), classID, claims.UserID) {
		return model.Class{}, http.StatusForbidden, "forbidden"
	}
	return class, 0, ""
}

func (s *Server) handleGetAttendance(w http.ResponseWriter, r *http.Request) {
	classID := r.URL.Query().Get("classId")
	if classID == "" {
		writeError(w, http.StatusBadRequest, "missing_class_id")
		return
	}
	date, ok := parseDateYYYYMMDD(r.URL.Query().Get("date"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_date")
		return
	}
	if _, status, code := s.classAccess(r, classID, auth.ActionReadAttendance); status != 0 {
		writeError(w, status, code)
		return
	}

	records, err := s.store.ListAttendance(r.Context(), classID, date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if records == nil {
		records = []model.AttendanceRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"attendance": records})
}

type attendanceEntry struct {
	StudentID string `json:"studentId"`
	Status    string `json:"status"`
}

type markAttendanceRequest struct {
	ClassID string            `json:"classId"`
	Date    string            `json:"date"`
	Records []attendanceEntry `json:"records"`
}

func (s *Server) handleMarkAttendance(w http.ResponseWriter, r *http.Request) {
	var req markAttendanceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	if req.ClassID == "" {
		writeError(w, http.StatusBadRequest, "missing_class_id")
		return
	}
	date, ok := parseDateYYYYMMDD(req.Date)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_date")
		return
	}
	if _, status, code := s.classAccess(r, req.ClassID, auth.ActionMarkAttendance); status != 0 {
		writeError(w, status, code)
		return
	}

	// Only enrolled students can be marked, and each at most once per request.
	roster, err := s.store.ListStudentsByClass(r.Context(), req.ClassID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	enrolled := make(map[string]bool, len(roster))
	for _, student := range roster {
		enrolled[student.ID] = true
	}

	seen := make(map[string]bool, len(req.Records))
	records := make([]model.AttendanceRecord, 0, len(req.Records))
	for _, entry := range req.Records {
		if !validAttendanceStatus(entry.Status) {
			writeError(w, http.StatusBadRequest, "invalid_status")
			return
		}
		if !enrolled[entry.StudentID] {
			writeError(w, http.StatusBadRequest, "student_not_enrolled")
			return
		}
		if seen[entry.StudentID] {
			writeError(w, http.StatusBadRequest, "duplicate_student")
			return
		}
		seen[entry.StudentID] = true
		records = append(records, model.AttendanceRecord{
			ID:        uuid.NewString(),
			ClassID:   req.ClassID,
			StudentID: entry.StudentID,
			Date:      date,
			Status:    entry.Status,
		})
	}

	// Replacement happens inside one transaction, so re-marking never leaves a
	// window with the day's attendance missing.
	if err := s.store.ReplaceAttendance(r.Context(), req.ClassID, date, records); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

package http

import (
	"encoding/csv"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"schoolhub/server/internal/auth"
	"schoolhub/server/internal/model"
)

const maxImportSize = 4 << 20

// parseStudentCSV reads a roster export of the form "first_name,last_name" with
// an optional third email column. The first row is a header and is skipped.
// Rows without a first name are dropped; a missing last name becomes "-".
func parseStudentCSV(r io.Reader, schoolID string, now time.Time) ([]model.Student, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var students []model.Student
	first := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if first {
			first = false
			continue
		}

		firstName := ""
		lastName := "-"
		var email *string
		if len(record) > 0 {
			firstName = strings.TrimSpace(record[0])
		}
		if len(record) > 1 && strings.TrimSpace(record[1]) != "" {
			lastName = strings.TrimSpace(record[1])
		}
		if len(record) > 2 && strings.TrimSpace(record[2]) != "" {
			addr := strings.TrimSpace(record[2])
			email = &addr
		}
		if firstName == "" {
			continue
		}

		students = append(students, model.Student{
			ID:        uuid.NewString(),
			FirstName: firstName,
			LastName:  &lastName,
			Email:     email,
			SchoolID:  &schoolID,
			CreatedAt: now,
		})
	}
	return students, nil
}

func (s *Server) handleBatchImportStudents(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	if err := r.ParseMultipartForm(maxImportSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_form")
		return
	}
	schoolID, ok := schoolScope(claims, r.FormValue("school_id"))
	if !ok || !auth.Allow(claims, auth.ActionManageStudents, schoolID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	if schoolID == "" {
		writeError(w, http.StatusBadRequest, "missing_school_id")
		return
	}

	classID := r.FormValue("class_id")
	if classID != "" {
		class, err := s.store.GetClass(r.Context(), classID)
		if err != nil {
			writeStoreError(w, err, "class_not_found")
			return
		}
		if derefOrEmpty(class.SchoolID) != schoolID {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing_file")
		return
	}
	defer file.Close()

	students, err := parseStudentCSV(file, schoolID, time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_csv")
		return
	}
	if len(students) == 0 {
		writeError(w, http.StatusBadRequest, "empty_csv")
		return
	}

	if err := s.store.CreateStudentsBatch(r.Context(), students); err != nil {
		writeStoreError(w, err, "school_not_found")
		return
	}
	if classID != "" {
		for _, student := range students {
			if err := s.store.EnrollStudent(r.Context(), classID, student.ID); err != nil {
				writeStoreError(w, err, "class_not_found")
				return
			}
		}
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success":       true,
		"studentsAdded": len(students),
		"students":      students,
	})
}

package repository

import (
	"context"
	"time"

	"schoolhub/server/internal/model"
)

type AssignmentSummary struct {
	Assignment   model.Assignment
	GradedCount  int64
	AverageScore *float64
}

type GradeWithStudent struct {
	Grade   model.GradeEntry
	Student model.Student
}

// CreateAssignmentWithGrades inserts the assignment and seeds a null-score
// grade row for every student currently enrolled in the class.
func (s *Store) CreateAssignmentWithGrades(ctx context.Context, assignment model.Assignment) error {
	return s.WithTx(ctx, func(tx *Store) error {
		if _, err := tx.db.Exec(ctx, `
			INSERT INTO assignments (id, class_id, name, created_at)
			VALUES ($1, $2, $3, $4)
		`, assignment.ID, assignment.ClassID, assignment.Name, assignment.CreatedAt); err != nil {
			return err
		}
		_, err := tx.db.Exec(ctx, `
			INSERT INTO grades (id, assignment_id, student_id, score, updated_at)
			SELECT gen_random_uuid(), $1, student_id, NULL, $2
			FROM class_students
			WHERE class_id = $3
		`, assignment.ID, assignment.CreatedAt, assignment.ClassID)
		return err
	})
}

func (s *Store) GetAssignment(ctx context.Context, assignmentID string) (model.Assignment, error) {
	var assignment model.Assignment
	row := s.db.QueryRow(ctx, `
		SELECT id, class_id, name, created_at
		FROM assignments
		WHERE id = $1
	`, assignmentID)
	err := row.Scan(&assignment.ID, &assignment.ClassID, &assignment.Name, &assignment.CreatedAt)
	return assignment, err
}

func (s *Store) ListAssignments(ctx context.Context, classID string) ([]AssignmentSummary, error) {
	rows, err := s.db.Query(ctx, `
		SELECT a.id, a.class_id, a.name, a.created_at,
		       COUNT(g.score), AVG(g.score)
		FROM assignments a
		LEFT JOIN grades g ON g.assignment_id = a.id
		WHERE a.class_id = $1
		GROUP BY a.id, a.class_id, a.name, a.created_at
		ORDER BY a.created_at
	`, classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []AssignmentSummary
	for rows.Next() {
		var summary AssignmentSummary
		if err := rows.Scan(
			&summary.Assignment.ID,
			&summary.Assignment.ClassID,
			&summary.Assignment.Name,
			&summary.Assignment.CreatedAt,
			&summary.GradedCount,
			&summary.AverageScore,
		); err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

// RenameAssignment relies on the (class_id, name) unique constraint: renaming
// onto an existing name fails instead of silently merging two assignments.
func (s *Store) RenameAssignment(ctx context.Context, assignmentID, name string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE assignments SET name = $1 WHERE id = $2
	`, name, assignmentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteAssignment(ctx context.Context, assignmentID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM assignments WHERE id = $1`, assignmentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListGrades(ctx context.Context, assignmentID string) ([]GradeWithStudent, error) {
	rows, err := s.db.Query(ctx, `
		SELECT g.id, g.assignment_id, g.student_id, g.score, g.updated_at,
		       st.id, st.first_name, st.last_name, st.email, st.school_id, st.created_at
		FROM grades g
		JOIN students st ON st.id = g.student_id
		WHERE g.assignment_id = $1
		ORDER BY st.last_name, st.first_name
	`, assignmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []GradeWithStudent
	for rows.Next() {
		var entry GradeWithStudent
		if err := rows.Scan(
			&entry.Grade.ID,
			&entry.Grade.AssignmentID,
			&entry.Grade.StudentID,
			&entry.Grade.Score,
			&entry.Grade.UpdatedAt,
			&entry.Student.ID,
			&entry.Student.FirstName,
			&entry.Student.LastName,
			&entry.Student.Email,
			&entry.Student.SchoolID,
			&entry.Student.CreatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

type GradeUpdate struct {
	StudentID string
	Score     *float64
}

// UpsertGrades writes the submitted scores in one transaction; rows for
// students without an existing grade row are created.
func (s *Store) UpsertGrades(ctx context.Context, assignmentID string, updates []GradeUpdate, updatedAt time.Time) error {
	return s.WithTx(ctx, func(tx *Store) error {
		for _, update := range updates {
			if _, err := tx.db.Exec(ctx, `
				INSERT INTO grades (id, assignment_id, student_id, score, updated_at)
				VALUES (gen_random_uuid(), $1, $2, $3, $4)
				ON CONFLICT (assignment_id, student_id)
				DO UPDATE SET score = EXCLUDED.score, updated_at = EXCLUDED.updated_at
			`, assignmentID, update.StudentID, update.Score, updatedAt); err != nil {
				return err
			}
		}
		return nil
	})
}

package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"schoolhub/server/internal/model"
)

func (s *Store) CreateStudent(ctx context.Context, student model.Student) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO students (id, first_name, last_name, email, school_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, student.ID, student.FirstName, student.LastName, student.Email, student.SchoolID, student.CreatedAt)
	return err
}

// CreateStudentsBatch bulk-inserts pre-validated students in one round trip.
func (s *Store) CreateStudentsBatch(ctx context.Context, students []model.Student) error {
	if len(students) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(students))
	for _, student := range students {
		rows = append(rows, []any{
			student.ID,
			student.FirstName,
			student.LastName,
			student.Email,
			student.SchoolID,
			student.CreatedAt,
		})
	}
	_, err := s.db.CopyFrom(
		ctx,
		pgx.Identifier{"students"},
		[]string{"id", "first_name", "last_name", "email", "school_id", "created_at"},
		pgx.CopyFromRows(rows),
	)
	return err
}

func (s *Store) GetStudent(ctx context.Context, studentID string) (model.Student, error) {
	var student model.Student
	row := s.db.QueryRow(ctx, `
		SELECT id, first_name, last_name, email, school_id, created_at
		FROM students
		WHERE id = $1
	`, studentID)
	err := row.Scan(&student.ID, &student.FirstName, &student.LastName, &student.Email, &student.SchoolID, &student.CreatedAt)
	return student, err
}

func (s *Store) ListStudents(ctx context.Context, schoolID string) ([]model.Student, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, first_name, last_name, email, school_id, created_at
		FROM students
		WHERE ($1 = '' OR school_id::text = $1)
		ORDER BY last_name, first_name
	`, schoolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStudents(rows)
}

func (s *Store) ListStudentsByClass(ctx context.Context, classID string) ([]model.Student, error) {
	rows, err := s.db.Query(ctx, `
		SELECT st.id, st.first_name, st.last_name, st.email, st.school_id, st.created_at
		FROM class_students cs
		JOIN students st ON st.id = cs.student_id
		WHERE cs.class_id = $1
		ORDER BY st.last_name, st.first_name
	`, classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStudents(rows)
}

// ListStudentsForTeacher returns the distinct students enrolled in any class
// the teacher owns.
func (s *Store) ListStudentsForTeacher(ctx context.Context, teacherID string) ([]model.Student, error) {
	rows, err := s.db.Query(ctx, `
		SELECT DISTINCT st.id, st.first_name, st.last_name, st.email, st.school_id, st.created_at
		FROM students st
		JOIN class_students cs ON cs.student_id = st.id
		JOIN classes c ON c.id = cs.class_id
		WHERE c.teacher_id = $1
		ORDER BY st.last_name, st.first_name
	`, teacherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStudents(rows)
}

func scanStudents(rows pgx.Rows) ([]model.Student, error) {
	var students []model.Student
	for rows.Next() {
		var student model.Student
		if err := rows.Scan(
			&student.ID,
			&student.FirstName,
			&student.LastName,
			&student.Email,
			&student.SchoolID,
			&student.CreatedAt,
		); err != nil {
			return nil, err
		}
		students = append(students, student)
	}
	return students, rows.Err()
}

func (s *Store) UpdateStudent(ctx context.Context, student model.Student) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE students SET first_name = $1, last_name = $2, email = $3 WHERE id = $4
	`, student.FirstName, student.LastName, student.Email, student.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteStudentSafely delegates to a stored procedure that removes the
// student's grades, attendance, enrollments and the student row atomically.
func (s *Store) DeleteStudentSafely(ctx context.Context, studentID string) error {
	_, err := s.db.Exec(ctx, `SELECT delete_student_safely($1)`, studentID)
	return err
}

func (s *Store) EnrollStudent(ctx context.Context, classID, studentID string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO class_students (class_id, student_id)
		VALUES ($1, $2)
	`, classID, studentID)
	return err
}

// RemoveEnrollment delegates to a stored procedure that deletes the single
// (student, class) pair together with the pair's grade and attendance rows.
func (s *Store) RemoveEnrollment(ctx context.Context, studentID, classID string) error {
	_, err := s.db.Exec(ctx, `SELECT remove_class_enrollment($1, $2)`, studentID, classID)
	return err
}

func (s *Store) StudentEnrolled(ctx context.Context, classID, studentID string) bool {
	return s.exists(ctx, `SELECT 1 FROM class_students WHERE class_id = $1 AND student_id = $2`, classID, studentID)
}

func (s *Store) CountStudents(ctx context.Context, schoolID string) (int64, error) {
	var count int64
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM students WHERE ($1 = '' OR school_id::text = $1)
	`, schoolID).Scan(&count)
	return count, err
}

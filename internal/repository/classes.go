package repository

import (
	"context"

	"schoolhub/server/internal/model"
)

type ClassTeacher struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

type ClassWithRoster struct {
	Class    model.Class
	Teacher  *ClassTeacher
	Students []model.Student
}

func (s *Store) CreateClass(ctx context.Context, class model.Class) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO classes (id, name, description, teacher_id, school_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, class.ID, class.Name, class.Description, class.TeacherID, class.SchoolID, class.CreatedAt, class.UpdatedAt)
	return err
}

func (s *Store) GetClass(ctx context.Context, classID string) (model.Class, error) {
	var class model.Class
	row := s.db.QueryRow(ctx, `
		SELECT id, name, description, teacher_id, school_id, created_at, updated_at
		FROM classes
		WHERE id = $1
	`, classID)
	err := row.Scan(
		&class.ID,
		&class.Name,
		&class.Description,
		&class.TeacherID,
		&class.SchoolID,
		&class.CreatedAt,
		&class.UpdatedAt,
	)
	return class, err
}

func (s *Store) UpdateClass(ctx context.Context, class model.Class) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE classes
		SET name = $1, description = $2, teacher_id = $3, updated_at = $4
		WHERE id = $5
	`, class.Name, class.Description, class.TeacherID, class.UpdatedAt, class.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteClass(ctx context.Context, classID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM classes WHERE id = $1`, classID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListClassesWithRoster returns classes (optionally filtered by school and by
// owning teacher) with the teacher and a flat student roster per class. The
// flat roster is part of the response contract; callers never see the join
// table.
func (s *Store) ListClassesWithRoster(ctx context.Context, schoolID, teacherID string) ([]ClassWithRoster, error) {
	query := `
		SELECT c.id, c.name, c.description, c.teacher_id, c.school_id, c.created_at, c.updated_at,
		       t.id, t.first_name, t.last_name, t.email
		FROM classes c
		LEFT JOIN users t ON t.id = c.teacher_id
		WHERE ($1 = '' OR c.school_id::text = $1)
		  AND ($2 = '' OR c.teacher_id::text = $2)
		ORDER BY c.name
	`
	rows, err := s.db.Query(ctx, query, schoolID, teacherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var classes []ClassWithRoster
	var classIDs []string
	for rows.Next() {
		var entry ClassWithRoster
		var teacherID, teacherFirst, teacherLast, teacherEmail *string
		if err := rows.Scan(
			&entry.Class.ID,
			&entry.Class.Name,
			&entry.Class.Description,
			&entry.Class.TeacherID,
			&entry.Class.SchoolID,
			&entry.Class.CreatedAt,
			&entry.Class.UpdatedAt,
			&teacherID,
			&teacherFirst,
			&teacherLast,
			&teacherEmail,
		); err != nil {
			return nil, err
		}
		if teacherID != nil {
			entry.Teacher = &ClassTeacher{
				ID:        *teacherID,
				FirstName: derefString(teacherFirst),
				LastName:  derefString(teacherLast),
				Email:     derefString(teacherEmail),
			}
		}
		entry.Students = []model.Student{}
		classes = append(classes, entry)
		classIDs = append(classIDs, entry.Class.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(classes) == 0 {
		return classes, nil
	}

	rosterRows, err := s.db.Query(ctx, `
		SELECT cs.class_id, st.id, st.first_name, st.last_name, st.email, st.school_id, st.created_at
		FROM class_students cs
		JOIN students st ON st.id = cs.student_id
		WHERE cs.class_id = ANY($1::uuid[])
		ORDER BY st.last_name, st.first_name
	`, classIDs)
	if err != nil {
		return nil, err
	}
	defer rosterRows.Close()

	byClass := make(map[string]int, len(classes))
	for i, entry := range classes {
		byClass[entry.Class.ID] = i
	}
	for rosterRows.Next() {
		var classID string
		var student model.Student
		if err := rosterRows.Scan(
			&classID,
			&student.ID,
			&student.FirstName,
			&student.LastName,
			&student.Email,
			&student.SchoolID,
			&student.CreatedAt,
		); err != nil {
			return nil, err
		}
		if i, ok := byClass[classID]; ok {
			classes[i].Students = append(classes[i].Students, student)
		}
	}
	return classes, rosterRows.Err()
}

func (s *Store) ClassTaughtBy(ctx context.Context, classID, teacherID string) bool {
	return s.exists(ctx, `SELECT 1 FROM classes WHERE id = $1 AND teacher_id = $2`, classID, teacherID)
}

func (s *Store) CountClasses(ctx context.Context, schoolID string) (int64, error) {
	var count int64
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM classes WHERE ($1 = '' OR school_id::text = $1)
	`, schoolID).Scan(&count)
	return count, err
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

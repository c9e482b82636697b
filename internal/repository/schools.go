package repository

import (
	"context"

	"schoolhub/server/internal/model"
)

func (s *Store) CreateSchool(ctx context.Context, school model.School) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO schools (id, name, address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, school.ID, school.Name, school.Address, school.CreatedAt, school.UpdatedAt)
	return err
}

func (s *Store) GetSchool(ctx context.Context, schoolID string) (model.School, error) {
	var school model.School
	row := s.db.QueryRow(ctx, `
		SELECT id, name, address, created_at, updated_at
		FROM schools
		WHERE id = $1
	`, schoolID)
	err := row.Scan(&school.ID, &school.Name, &school.Address, &school.CreatedAt, &school.UpdatedAt)
	return school, err
}

func (s *Store) ListSchools(ctx context.Context) ([]model.School, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, address, created_at, updated_at
		FROM schools
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schools []model.School
	for rows.Next() {
		var school model.School
		if err := rows.Scan(&school.ID, &school.Name, &school.Address, &school.CreatedAt, &school.UpdatedAt); err != nil {
			return nil, err
		}
		schools = append(schools, school)
	}
	return schools, rows.Err()
}

func (s *Store) UpdateSchool(ctx context.Context, school model.School) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE schools SET name = $1, address = $2, updated_at = $3 WHERE id = $4
	`, school.Name, school.Address, school.UpdatedAt, school.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSchoolCascade removes the school after detaching its staff and
// students. Classes are deleted outright; their enrollments, attendance and
// assignments go with them via foreign-key cascades.
func (s *Store) DeleteSchoolCascade(ctx context.Context, schoolID string) error {
	return s.WithTx(ctx, func(tx *Store) error {
		if _, err := tx.db.Exec(ctx, `UPDATE users SET school_id = NULL WHERE school_id = $1`, schoolID); err != nil {
			return err
		}
		if _, err := tx.db.Exec(ctx, `UPDATE students SET school_id = NULL WHERE school_id = $1`, schoolID); err != nil {
			return err
		}
		if _, err := tx.db.Exec(ctx, `DELETE FROM classes WHERE school_id = $1`, schoolID); err != nil {
			return err
		}
		tag, err := tx.db.Exec(ctx, `DELETE FROM schools WHERE id = $1`, schoolID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

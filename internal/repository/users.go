package repository

import (
	"context"
	"time"

	"schoolhub/server/internal/model"
)

func (s *Store) GetAuthUserByEmail(ctx context.Context, email string) (model.AuthUser, error) {
	var user model.AuthUser
	row := s.db.QueryRow(ctx, `
		SELECT id, email, password_hash, created_at, updated_at
		FROM auth_users
		WHERE email = $1
	`, email)
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	return user, err
}

func (s *Store) CreateAuthUser(ctx context.Context, user model.AuthUser) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO auth_users (id, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, user.ID, user.Email, user.PasswordHash, user.CreatedAt, user.UpdatedAt)
	return err
}

func (s *Store) UpdateAuthUserEmail(ctx context.Context, userID, email string, updatedAt time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE auth_users SET email = $1, updated_at = $2 WHERE id = $3
	`, email, updatedAt, userID)
	return err
}

func (s *Store) DeleteAuthUser(ctx context.Context, userID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM auth_users WHERE id = $1`, userID)
	return err
}

func (s *Store) GetUser(ctx context.Context, userID string) (model.User, error) {
	var user model.User
	row := s.db.QueryRow(ctx, `
		SELECT id, email, first_name, last_name, role, school_id, created_at, updated_at
		FROM users
		WHERE id = $1
	`, userID)
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.Role,
		&user.SchoolID,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}

func (s *Store) GetUserRole(ctx context.Context, userID string) (string, error) {
	var role string
	err := s.db.QueryRow(ctx, `SELECT role FROM users WHERE id = $1`, userID).Scan(&role)
	return role, err
}

func (s *Store) CreateUser(ctx context.Context, user model.User) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO users (id, email, first_name, last_name, role, school_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, user.ID, user.Email, user.FirstName, user.LastName, user.Role, user.SchoolID, user.CreatedAt, user.UpdatedAt)
	return err
}

// CreateUserWithIdentity writes the identity record and the profile row in a
// single transaction, so a profile failure never leaves an orphaned identity.
func (s *Store) CreateUserWithIdentity(ctx context.Context, authUser model.AuthUser, user model.User) error {
	return s.WithTx(ctx, func(tx *Store) error {
		if err := tx.CreateAuthUser(ctx, authUser); err != nil {
			return err
		}
		return tx.CreateUser(ctx, user)
	})
}

func (s *Store) UpdateUserProfile(ctx context.Context, userID, email, firstName, lastName string, updatedAt time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE users
		SET email = $1, first_name = $2, last_name = $3, updated_at = $4
		WHERE id = $5
	`, email, firstName, lastName, updatedAt, userID)
	return err
}

func (s *Store) ListTeachers(ctx context.Context, schoolID string) ([]model.User, error) {
	query := `
		SELECT id, email, first_name, last_name, role, school_id, created_at, updated_at
		FROM users
		WHERE role = 'teacher'
	`
	args := []any{}
	if schoolID != "" {
		query += ` AND school_id = $1`
		args = append(args, schoolID)
	}
	query += ` ORDER BY last_name, first_name`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var teachers []model.User
	for rows.Next() {
		var user model.User
		if err := rows.Scan(
			&user.ID,
			&user.Email,
			&user.FirstName,
			&user.LastName,
			&user.Role,
			&user.SchoolID,
			&user.CreatedAt,
			&user.UpdatedAt,
		); err != nil {
			return nil, err
		}
		teachers = append(teachers, user)
	}
	return teachers, rows.Err()
}

// DeleteTeacher detaches the teacher from every owned class before removing
// the profile row and the identity record. The order matters: classes must
// never point at a deleted user.
func (s *Store) DeleteTeacher(ctx context.Context, teacherID string) error {
	return s.WithTx(ctx, func(tx *Store) error {
		if _, err := tx.db.Exec(ctx, `UPDATE classes SET teacher_id = NULL WHERE teacher_id = $1`, teacherID); err != nil {
			return err
		}
		if _, err := tx.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, teacherID); err != nil {
			return err
		}
		return tx.DeleteAuthUser(ctx, teacherID)
	})
}

type ClassRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ListTeacherClasses returns the classes owned by each of the given teachers,
// keyed by teacher id.
func (s *Store) ListTeacherClasses(ctx context.Context, teacherIDs []string) (map[string][]ClassRef, error) {
	byTeacher := make(map[string][]ClassRef)
	if len(teacherIDs) == 0 {
		return byTeacher, nil
	}
	rows, err := s.db.Query(ctx, `
		SELECT teacher_id, id, name
		FROM classes
		WHERE teacher_id = ANY($1::uuid[])
		ORDER BY name
	`, teacherIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var teacherID string
		var ref ClassRef
		if err := rows.Scan(&teacherID, &ref.ID, &ref.Name); err != nil {
			return nil, err
		}
		byTeacher[teacherID] = append(byTeacher[teacherID], ref)
	}
	return byTeacher, rows.Err()
}

func (s *Store) CountTeachers(ctx context.Context, schoolID string) (int64, error) {
	var count int64
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM users WHERE role = 'teacher' AND ($1 = '' OR school_id::text = $1)
	`, schoolID).Scan(&count)
	return count, err
}

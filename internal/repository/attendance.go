package repository

import (
	"context"
	"time"

	"schoolhub/server/internal/model"
)

func (s *Store) ListAttendance(ctx context.Context, classID string, date time.Time) ([]model.AttendanceRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, class_id, student_id, date, status
		FROM attendance
		WHERE class_id = $1 AND date = $2
		ORDER BY student_id
	`, classID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.AttendanceRecord
	for rows.Next() {
		var record model.AttendanceRecord
		if err := rows.Scan(&record.ID, &record.ClassID, &record.StudentID, &record.Date, &record.Status); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// ReplaceAttendance swaps the full set of attendance rows for (class, date)
// inside one transaction, so re-marking never leaves a window with no rows.
func (s *Store) ReplaceAttendance(ctx context.Context, classID string, date time.Time, records []model.AttendanceRecord) error {
	return s.WithTx(ctx, func(tx *Store) error {
		if _, err := tx.db.Exec(ctx, `
			DELETE FROM attendance WHERE class_id = $1 AND date = $2
		`, classID, date); err != nil {
			return err
		}
		for _, record := range records {
			if _, err := tx.db.Exec(ctx, `
				INSERT INTO attendance (id, class_id, student_id, date, status)
				VALUES ($1, $2, $3, $4, $5)
			`, record.ID, classID, record.StudentID, date, record.Status); err != nil {
				return err
			}
		}
		return nil
	})
}

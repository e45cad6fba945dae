package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/xid"

	"github.com/sakif/coursemarket/internal/apperror"
	"github.com/sakif/coursemarket/internal/model"
	"github.com/sakif/coursemarket/internal/repository"
)

var _ repository.CourseRepository = (*DB)(nil)

func (db *DB) CreateCourse(ctx context.Context, course *model.Course) error {
	course.ID = xid.New().String()

	now := db.now()
	course.CreatedAt = now
	course.UpdatedAt = now

	_, err := db.conn.NamedExecContext(ctx,
		`INSERT INTO courses (id, title, description, duration, price_cents, teacher_id, created_at, updated_at)
		 VALUES (:id, :title, :description, :duration, :price_cents, :teacher_id, :created_at, :updated_at)`,
		course,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating course: %w", err)
	}

	return nil
}

func (db *DB) GetCourse(ctx context.Context, id string) (*model.Course, error) {
	var course model.Course
	err := db.conn.GetContext(ctx, &course,
		`SELECT id, title, description, duration, price_cents, teacher_id, created_at, updated_at
		 FROM courses WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("course", id)
		}
		return nil, fmt.Errorf("sqlite: getting course %s: %w", id, err)
	}
	return &course, nil
}

// ListCourses returns courses newest first, narrowed by the filter.
func (db *DB) ListCourses(ctx context.Context, filter repository.CourseFilter) ([]model.Course, error) {
	var (
		where []string
		args  []any
	)
	if filter.TeacherID != "" {
		where = append(where, "teacher_id = ?")
		args = append(args, filter.TeacherID)
	}
	if term := strings.TrimSpace(filter.TitleSearch); term != "" {
		where = append(where, `LOWER(title) LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(term))
	}

	query := `SELECT id, title, description, duration, price_cents, teacher_id, created_at, updated_at
		 FROM courses`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	courses := []model.Course{}
	if err := db.conn.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, fmt.Errorf("sqlite: listing courses: %w", err)
	}
	return courses, nil
}

// UpdateCourse rewrites the editable fields. teacher_id is never updated.
func (db *DB) UpdateCourse(ctx context.Context, course *model.Course) error {
	course.UpdatedAt = db.now()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE courses
		 SET title = ?, description = ?, duration = ?, price_cents = ?, updated_at = ?
		 WHERE id = ?`,
		course.Title,
		course.Description,
		course.Duration,
		course.Price,
		course.UpdatedAt,
		course.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating course %s: %w", course.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("course", course.ID)
	}

	return nil
}

func (db *DB) DeleteCourse(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM courses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting course %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("course", id)
	}

	return nil
}

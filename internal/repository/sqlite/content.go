package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/xid"

	"github.com/sakif/coursemarket/internal/apperror"
	"github.com/sakif/coursemarket/internal/model"
	"github.com/sakif/coursemarket/internal/repository"
)

var _ repository.ContentRepository = (*DB)(nil)

func (db *DB) CreateContent(ctx context.Context, content *model.CourseContent) error {
	content.ID = xid.New().String()
	content.CreatedAt = db.now()

	_, err := db.conn.NamedExecContext(ctx,
		`INSERT INTO course_contents (id, course_id, name, body, url, created_at)
		 VALUES (:id, :course_id, :name, :body, :url, :created_at)`,
		content,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating content for course %s: %w", content.CourseID, err)
	}
	return nil
}

// GetContent looks a content item up within its course; an id belonging to
// another course is reported as not found.
func (db *DB) GetContent(ctx context.Context, courseID, id string) (*model.CourseContent, error) {
	var content model.CourseContent
	err := db.conn.GetContext(ctx, &content,
		`SELECT id, course_id, name, body, url, created_at
		 FROM course_contents WHERE id = ? AND course_id = ?`, id, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("course content", id)
		}
		return nil, fmt.Errorf("sqlite: getting content %s: %w", id, err)
	}
	return &content, nil
}

func (db *DB) ListContents(ctx context.Context, courseID string) ([]model.CourseContent, error) {
	contents := []model.CourseContent{}
	err := db.conn.SelectContext(ctx, &contents,
		`SELECT id, course_id, name, body, url, created_at
		 FROM course_contents WHERE course_id = ?
		 ORDER BY created_at, id`, courseID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing contents for course %s: %w", courseID, err)
	}
	return contents, nil
}

func (db *DB) UpdateContent(ctx context.Context, content *model.CourseContent) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE course_contents SET name = ?, body = ?, url = ?
		 WHERE id = ? AND course_id = ?`,
		content.Name,
		content.Body,
		content.URL,
		content.ID,
		content.CourseID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating content %s: %w", content.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("course content", content.ID)
	}
	return nil
}

func (db *DB) DeleteContent(ctx context.Context, courseID, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM course_contents WHERE id = ? AND course_id = ?`, id, courseID)
	if err != nil {
		return fmt.Errorf("sqlite: deleting content %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("course content", id)
	}
	return nil
}

package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/coursemarket/internal/apperror"
	"github.com/sakif/coursemarket/internal/model"
	"github.com/sakif/coursemarket/internal/repository"
)

// =========================================================================
// COURSES
// =========================================================================

func TestCreateCourse_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	_, teacher := createTestTeacher(t, db, "t@x.com", "Tom")

	course := createTestCourse(t, db, teacher.ID, "Go Basics", 5000)
	assert.NotEmpty(t, course.ID)
	assert.False(t, course.CreatedAt.IsZero())

	got, err := db.GetCourse(context.Background(), course.ID)
	require.NoError(t, err)
	assert.Equal(t, "Go Basics", got.Title)
	assert.Equal(t, model.Money(5000), got.Price)
	assert.Equal(t, teacher.ID, got.TeacherID)
}

func TestCreateCourse_UnknownTeacher(t *testing.T) {
	db := newTestDB(t)
	err := db.CreateCourse(context.Background(), &model.Course{Title: "x", TeacherID: "ghost"})
	assert.Error(t, err)
}

func TestListCourses_Filters(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	_, t1 := createTestTeacher(t, db, "t1@x.com", "Tom")
	_, t2 := createTestTeacher(t, db, "t2@x.com", "Tina")

	createTestCourse(t, db, t1.ID, "Go Basics", 5000)
	createTestCourse(t, db, t1.ID, "Advanced Rust", 7000)
	createTestCourse(t, db, t2.ID, "Golang Concurrency", 9000)

	all, err := db.ListCourses(ctx, repository.CourseFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	owned, err := db.ListCourses(ctx, repository.CourseFilter{TeacherID: t1.ID})
	require.NoError(t, err)
	assert.Len(t, owned, 2)

	search, err := db.ListCourses(ctx, repository.CourseFilter{TitleSearch: "GO"})
	require.NoError(t, err)
	assert.Len(t, search, 2)

	both, err := db.ListCourses(ctx, repository.CourseFilter{TeacherID: t2.ID, TitleSearch: "go"})
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, "Golang Concurrency", both[0].Title)

	none, err := db.ListCourses(ctx, repository.CourseFilter{TitleSearch: "%"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUpdateCourse_KeepsOwner(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	_, t1 := createTestTeacher(t, db, "t1@x.com", "Tom")
	_, t2 := createTestTeacher(t, db, "t2@x.com", "Tina")
	course := createTestCourse(t, db, t1.ID, "Go Basics", 5000)

	course.Title = "Go Fundamentals"
	course.Price = 6000
	course.TeacherID = t2.ID
	require.NoError(t, db.UpdateCourse(ctx, course))

	got, err := db.GetCourse(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, "Go Fundamentals", got.Title)
	assert.Equal(t, model.Money(6000), got.Price)
	assert.Equal(t, t1.ID, got.TeacherID)
}

func TestUpdateCourse_NotFound(t *testing.T) {
	db := newTestDB(t)
	err := db.UpdateCourse(context.Background(), &model.Course{ID: "missing"})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestDeleteCourse_CascadesContents(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	_, teacher := createTestTeacher(t, db, "t@x.com", "Tom")
	course := createTestCourse(t, db, teacher.ID, "Go Basics", 5000)
	require.NoError(t, db.CreateContent(ctx, &model.CourseContent{CourseID: course.ID, Name: "Intro"}))

	require.NoError(t, db.DeleteCourse(ctx, course.ID))

	_, err := db.GetCourse(ctx, course.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	contents, err := db.ListContents(ctx, course.ID)
	require.NoError(t, err)
	assert.Empty(t, contents)

	assert.ErrorIs(t, db.DeleteCourse(ctx, course.ID), apperror.ErrNotFound)
}

// =========================================================================
// CONTENTS
// =========================================================================

func TestContents_CRUD(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	_, teacher := createTestTeacher(t, db, "t@x.com", "Tom")
	course := createTestCourse(t, db, teacher.ID, "Go Basics", 5000)
	other := createTestCourse(t, db, teacher.ID, "Other", 100)

	content := &model.CourseContent{CourseID: course.ID, Name: "Intro", Body: "hello", URL: "https://example.com/1"}
	require.NoError(t, db.CreateContent(ctx, content))
	require.NoError(t, db.CreateContent(ctx, &model.CourseContent{CourseID: course.ID, Name: "Part 2"}))

	list, err := db.ListContents(ctx, course.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	got, err := db.GetContent(ctx, course.ID, content.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/1", got.URL)

	_, err = db.GetContent(ctx, other.ID, content.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	content.Name = "Introduction"
	require.NoError(t, db.UpdateContent(ctx, content))
	got, err = db.GetContent(ctx, course.ID, content.ID)
	require.NoError(t, err)
	assert.Equal(t, "Introduction", got.Name)

	assert.ErrorIs(t, db.DeleteContent(ctx, other.ID, content.ID), apperror.ErrNotFound)
	require.NoError(t, db.DeleteContent(ctx, course.ID, content.ID))
	assert.ErrorIs(t, db.DeleteContent(ctx, course.ID, content.ID), apperror.ErrNotFound)
}

func TestListContents_EmptyIsNotNil(t *testing.T) {
	db := newTestDB(t)
	contents, err := db.ListContents(context.Background(), "whatever")
	require.NoError(t, err)
	assert.NotNil(t, contents)
	assert.Empty(t, contents)
}

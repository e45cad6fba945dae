package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/coursemarket/internal/mail"
	"github.com/sakif/coursemarket/internal/model"
	"github.com/sakif/coursemarket/internal/policy"
	"github.com/sakif/coursemarket/internal/repository"
)

type CourseInput struct {
	Title       string      `json:"title"       validate:"required,max=100"`
	Description string      `json:"description" validate:"max=5000"`
	Duration    string      `json:"duration"    validate:"max=20"`
	Price       model.Money `json:"price"       validate:"gte=0,lte=9999999999"`
}

type ContentInput struct {
	Name string `json:"name" validate:"required,max=200"`
	Body string `json:"body" validate:"max=20000"`
	URL  string `json:"url"  validate:"omitempty,url,max=200"`
}

// CatalogService manages courses and their contents. Every method checks
// the policy before reading or writing, and lookups of the parent course
// come first so a missing course is reported as not found, not forbidden.
type CatalogService struct {
	courses   repository.CourseRepository
	contents  repository.ContentRepository
	purchases repository.PurchaseRepository
	mailer    mail.Mailer
	mailFrom  string
	validator *Validator
	logger    *slog.Logger
}

func NewCatalogService(
	courses repository.CourseRepository,
	contents repository.ContentRepository,
	purchases repository.PurchaseRepository,
	mailer mail.Mailer,
	mailFrom string,
	logger *slog.Logger,
) *CatalogService {
	return &CatalogService{
		courses:   courses,
		contents:  contents,
		purchases: purchases,
		mailer:    mailer,
		mailFrom:  mailFrom,
		validator: NewValidator(),
		logger:    logger,
	}
}

// =========================================================================
// COURSES
// =========================================================================

// ListCourses returns the catalog as the actor may see it: students get
// every course, teachers only their own. query filters by title substring,
// ignoring case.
func (s *CatalogService) ListCourses(ctx context.Context, actor policy.Actor, query string) ([]model.Course, error) {
	if err := policy.Authorize(actor, policy.CourseList, policy.Resource{}); err != nil {
		return nil, err
	}

	filter := repository.CourseFilter{TitleSearch: strings.TrimSpace(query)}
	if actor.IsTeacher() {
		filter.TeacherID = actor.TeacherID
	}

	courses, err := s.courses.ListCourses(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing courses: %w", err)
	}
	return courses, nil
}

// ListOwnedCourses is the teacher dashboard: own courses with the names of
// the students who bought each.
func (s *CatalogService) ListOwnedCourses(ctx context.Context, actor policy.Actor) ([]model.TeacherCourse, error) {
	if err := policy.Authorize(actor, policy.CourseListOwned, policy.Resource{}); err != nil {
		return nil, err
	}

	courses, err := s.courses.ListCourses(ctx, repository.CourseFilter{TeacherID: actor.TeacherID})
	if err != nil {
		return nil, fmt.Errorf("listing owned courses: %w", err)
	}

	out := make([]model.TeacherCourse, 0, len(courses))
	for _, c := range courses {
		names, err := s.purchases.StudentNamesForCourse(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("listing students of %s: %w", c.ID, err)
		}
		out = append(out, model.TeacherCourse{Course: c, StudentNames: names})
	}
	return out, nil
}

func (s *CatalogService) GetCourse(ctx context.Context, actor policy.Actor, id string) (*model.Course, error) {
	course, err := s.courses.GetCourse(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.CourseRead, ownerOf(course)); err != nil {
		return nil, err
	}
	return course, nil
}

// CreateCourse creates a course owned by the acting teacher and tells the
// teacher's existing students about it.
func (s *CatalogService) CreateCourse(ctx context.Context, actor policy.Actor, in CourseInput) (*model.Course, error) {
	if err := policy.Authorize(actor, policy.CourseCreate, policy.Resource{}); err != nil {
		return nil, err
	}

	in = trimCourseInput(in)
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	course := &model.Course{
		Title:       in.Title,
		Description: in.Description,
		Duration:    in.Duration,
		Price:       in.Price,
		TeacherID:   actor.TeacherID,
	}
	if err := s.courses.CreateCourse(ctx, course); err != nil {
		s.logger.Error("failed to create course",
			slog.String("teacherID", actor.TeacherID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating course: %w", err)
	}

	s.logger.Info("course created",
		slog.String("id", course.ID),
		slog.String("teacherID", course.TeacherID),
	)

	emails, err := s.purchases.StudentEmailsForTeacher(ctx, actor.TeacherID)
	if err != nil {
		s.logger.Warn("could not load students to notify", slog.String("error", err.Error()))
	} else {
		s.notify(ctx, "New Course by Author",
			"A new course has been designed by the author of one of your purchased courses.", emails)
	}

	return course, nil
}

// UpdateCourse replaces the editable fields. Ownership never changes.
func (s *CatalogService) UpdateCourse(ctx context.Context, actor policy.Actor, id string, in CourseInput) (*model.Course, error) {
	course, err := s.courses.GetCourse(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.CourseUpdate, ownerOf(course)); err != nil {
		return nil, err
	}

	in = trimCourseInput(in)
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	course.Title = in.Title
	course.Description = in.Description
	course.Duration = in.Duration
	course.Price = in.Price

	if err := s.courses.UpdateCourse(ctx, course); err != nil {
		return nil, fmt.Errorf("updating course: %w", err)
	}

	s.logger.Info("course updated", slog.String("id", course.ID))
	return course, nil
}

func (s *CatalogService) DeleteCourse(ctx context.Context, actor policy.Actor, id string) error {
	course, err := s.courses.GetCourse(ctx, id)
	if err != nil {
		return err
	}
	if err := policy.Authorize(actor, policy.CourseDelete, ownerOf(course)); err != nil {
		return err
	}

	if err := s.courses.DeleteCourse(ctx, id); err != nil {
		return err
	}

	s.logger.Info("course deleted", slog.String("id", id))
	return nil
}

// =========================================================================
// CONTENTS
// =========================================================================

// CreateContent adds a topic to a course and notifies its purchasers.
func (s *CatalogService) CreateContent(ctx context.Context, actor policy.Actor, courseID string, in ContentInput) (*model.CourseContent, error) {
	course, err := s.courses.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.ContentCreate, ownerOf(course)); err != nil {
		return nil, err
	}

	in = trimContentInput(in)
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	content := &model.CourseContent{
		CourseID: course.ID,
		Name:     in.Name,
		Body:     in.Body,
		URL:      in.URL,
	}
	if err := s.contents.CreateContent(ctx, content); err != nil {
		return nil, fmt.Errorf("creating content: %w", err)
	}

	s.logger.Info("course content created",
		slog.String("id", content.ID),
		slog.String("courseID", course.ID),
	)

	emails, err := s.purchases.StudentEmailsForCourse(ctx, course.ID)
	if err != nil {
		s.logger.Warn("could not load students to notify", slog.String("error", err.Error()))
	} else {
		s.notify(ctx, "New Course Content Added",
			"A new topic has been added to the course: "+course.Title, emails)
	}

	return content, nil
}

// ListContents returns a course's contents in creation order. A course
// with no content yields an empty list.
func (s *CatalogService) ListContents(ctx context.Context, actor policy.Actor, courseID string) ([]model.CourseContent, error) {
	course, err := s.courses.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.ContentRead, ownerOf(course)); err != nil {
		return nil, err
	}

	contents, err := s.contents.ListContents(ctx, course.ID)
	if err != nil {
		return nil, fmt.Errorf("listing contents: %w", err)
	}
	return contents, nil
}

func (s *CatalogService) GetContent(ctx context.Context, actor policy.Actor, courseID, id string) (*model.CourseContent, error) {
	course, err := s.courses.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.ContentRead, ownerOf(course)); err != nil {
		return nil, err
	}
	return s.contents.GetContent(ctx, course.ID, id)
}

func (s *CatalogService) UpdateContent(ctx context.Context, actor policy.Actor, courseID, id string, in ContentInput) (*model.CourseContent, error) {
	course, err := s.courses.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.ContentUpdate, ownerOf(course)); err != nil {
		return nil, err
	}

	in = trimContentInput(in)
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	content, err := s.contents.GetContent(ctx, course.ID, id)
	if err != nil {
		return nil, err
	}
	content.Name = in.Name
	content.Body = in.Body
	content.URL = in.URL

	if err := s.contents.UpdateContent(ctx, content); err != nil {
		return nil, fmt.Errorf("updating content: %w", err)
	}

	s.logger.Info("course content updated", slog.String("id", content.ID))
	return content, nil
}

func (s *CatalogService) DeleteContent(ctx context.Context, actor policy.Actor, courseID, id string) error {
	course, err := s.courses.GetCourse(ctx, courseID)
	if err != nil {
		return err
	}
	if err := policy.Authorize(actor, policy.ContentDelete, ownerOf(course)); err != nil {
		return err
	}

	if err := s.contents.DeleteContent(ctx, course.ID, id); err != nil {
		return err
	}

	s.logger.Info("course content deleted", slog.String("id", id))
	return nil
}

// notify sends a best-effort notification. Recipients are Bcc'd so they
// do not see each other. Failures are logged and never returned.
func (s *CatalogService) notify(ctx context.Context, subject, body string, recipients []string) {
	if len(recipients) == 0 {
		return
	}

	err := s.mailer.Send(ctx, mail.Message{
		Subject: subject,
		Body:    body,
		From:    s.mailFrom,
		Bcc:     recipients,
	})
	if err != nil {
		s.logger.Warn("notification not delivered",
			slog.String("subject", subject),
			slog.Int("recipients", len(recipients)),
			slog.String("error", err.Error()),
		)
	}
}

func ownerOf(course *model.Course) policy.Resource {
	return policy.Resource{OwnerTeacherID: course.TeacherID}
}

func trimCourseInput(in CourseInput) CourseInput {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Duration = strings.TrimSpace(in.Duration)
	return in
}

func trimContentInput(in ContentInput) ContentInput {
	in.Name = strings.TrimSpace(in.Name)
	in.URL = strings.TrimSpace(in.URL)
	return in
}

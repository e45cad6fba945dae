package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/coursemarket/internal/apperror"
	"github.com/sakif/coursemarket/internal/model"
	"github.com/sakif/coursemarket/internal/policy"
	"github.com/sakif/coursemarket/internal/repository"
)

// EntitlementService answers "what has this student bought". Pending
// purchases are included; each entry carries its status so clients can
// tell them apart.
type EntitlementService struct {
	courses   repository.CourseRepository
	contents  repository.ContentRepository
	purchases repository.PurchaseRepository
	logger    *slog.Logger
}

func NewEntitlementService(
	courses repository.CourseRepository,
	contents repository.ContentRepository,
	purchases repository.PurchaseRepository,
	logger *slog.Logger,
) *EntitlementService {
	return &EntitlementService{
		courses:   courses,
		contents:  contents,
		purchases: purchases,
		logger:    logger,
	}
}

func (s *EntitlementService) ListPurchasedCourses(ctx context.Context, actor policy.Actor) ([]model.PurchasedCourse, error) {
	if err := policy.Authorize(actor, policy.PurchaseList, policy.Resource{}); err != nil {
		return nil, err
	}
	if actor.StudentID == "" {
		return nil, apperror.InvalidState("student account has no student profile")
	}

	purchases, err := s.purchases.ListPurchasesByStudent(ctx, actor.StudentID)
	if err != nil {
		return nil, fmt.Errorf("listing purchases: %w", err)
	}

	out := make([]model.PurchasedCourse, 0, len(purchases))
	for i := range purchases {
		p := &purchases[i]

		course, err := s.courses.GetCourse(ctx, p.CourseID)
		if err != nil {
			// Purchases cascade with their course, so this only happens
			// when a delete races the read.
			if errors.Is(err, apperror.ErrNotFound) {
				s.logger.Warn("purchase references missing course",
					slog.String("purchaseID", p.ID),
					slog.String("courseID", p.CourseID),
				)
				continue
			}
			return nil, fmt.Errorf("loading course %s: %w", p.CourseID, err)
		}

		contents, err := s.contents.ListContents(ctx, course.ID)
		if err != nil {
			return nil, fmt.Errorf("listing contents of %s: %w", course.ID, err)
		}

		out = append(out, model.PurchasedCourse{
			CourseID:   course.ID,
			CourseName: course.Title,
			Status:     p.Status(),
			Contents:   contents,
		})
	}
	return out, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/coursemarket/internal/apperror"
	"github.com/sakif/coursemarket/internal/model"
	"github.com/sakif/coursemarket/internal/payment"
	"github.com/sakif/coursemarket/internal/policy"
	"github.com/sakif/coursemarket/internal/repository"
)

const (
	msgCourseNotFound      = "Course not found."
	msgAlreadyPurchased    = "You have already purchased this course."
	msgProviderUnreachable = "Connection error. Please try again later."
	msgPaymentNotFound     = "Payment not found."
	msgPurchaseNotFound    = "Payment object not found."
	msgPaymentFailed       = "Payment execution failed."
)

type PurchaseConfig struct {
	Currency  string
	ReturnURL string
	CancelURL string
}

// InitiateResult is the outcome of InitiatePurchase. When AlreadyPurchased
// is set nothing was created and ApprovalURL is empty.
type InitiateResult struct {
	AlreadyPurchased bool            `json:"alreadyPurchased"`
	ApprovalURL      string          `json:"approvalUrl,omitempty"`
	PaymentID        string          `json:"paymentId,omitempty"`
	Purchase         *model.Purchase `json:"purchase,omitempty"`
}

type ConfirmResult struct {
	PaymentID     string `json:"paymentId"`
	TransactionID string `json:"transactionId"`
	CourseID      string `json:"courseId"`
	Confirmed     int64  `json:"confirmed"`
}

// PurchaseService drives the purchase state machine
//
//	none → pending (InitiatePurchase) → confirmed (ConfirmPurchase)
//
// The provider session carries both the course id and the pending purchase
// id, so the confirmation callback needs no local session state.
type PurchaseService struct {
	courses   repository.CourseRepository
	purchases repository.PurchaseRepository
	provider  payment.Provider
	cfg       PurchaseConfig
	logger    *slog.Logger
	now       func() time.Time
}

func NewPurchaseService(
	courses repository.CourseRepository,
	purchases repository.PurchaseRepository,
	provider payment.Provider,
	cfg PurchaseConfig,
	logger *slog.Logger,
) *PurchaseService {
	return &PurchaseService{
		courses:   courses,
		purchases: purchases,
		provider:  provider,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// InitiatePurchase opens a provider session for the course and records a
// pending purchase. Repeating the call for a course the student already
// has (pending or confirmed) is a no-op reported as AlreadyPurchased.
func (s *PurchaseService) InitiatePurchase(ctx context.Context, actor policy.Actor, courseID string) (*InitiateResult, error) {
	course, err := s.courses.GetCourse(ctx, courseID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Missing(msgCourseNotFound)
		}
		return nil, err
	}

	if err := policy.Authorize(actor, policy.PurchaseInitiate, ownerOf(course)); err != nil {
		return nil, err
	}
	if actor.StudentID == "" {
		return nil, apperror.InvalidState("student account has no student profile")
	}

	existing, err := s.purchases.FindPurchase(ctx, actor.StudentID, course.ID)
	switch {
	case err == nil:
		return &InitiateResult{AlreadyPurchased: true, Purchase: existing}, nil
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("checking purchase: %w", err)
	}

	if course.Price <= 0 {
		return nil, apperror.ValidationFailed("price", "This course has no price and cannot be purchased.")
	}

	purchaseID := xid.New().String()
	session, err := s.provider.CreateSession(ctx, payment.SessionRequest{
		Amount:      course.Price,
		Currency:    s.cfg.Currency,
		Description: "Payment for " + course.ID,
		ReturnURL:   s.cfg.ReturnURL,
		CancelURL:   s.cfg.CancelURL,
		Metadata: payment.Metadata{
			CourseID:   course.ID,
			PurchaseID: purchaseID,
		},
	})
	if err != nil {
		s.logger.Warn("payment session not created",
			slog.String("courseID", course.ID),
			slog.String("error", err.Error()),
		)
		if errors.Is(err, payment.ErrUnavailable) {
			return nil, apperror.Unavailable(msgProviderUnreachable, err)
		}
		return nil, apperror.External("payment session could not be created", err)
	}

	purchase := &model.Purchase{
		ID:          purchaseID,
		StudentID:   actor.StudentID,
		TeacherID:   course.TeacherID,
		CourseID:    course.ID,
		ProviderRef: session.ID,
	}
	if err := s.purchases.CreatePurchase(ctx, purchase); err != nil {
		// A concurrent request for the same course won the insert.
		if errors.Is(err, apperror.ErrConflict) {
			return &InitiateResult{AlreadyPurchased: true}, nil
		}
		return nil, fmt.Errorf("recording purchase: %w", err)
	}

	s.logger.Info("purchase initiated",
		slog.String("purchaseID", purchase.ID),
		slog.String("courseID", course.ID),
		slog.String("paymentID", session.ID),
	)

	return &InitiateResult{
		ApprovalURL: session.ApprovalURL,
		PaymentID:   session.ID,
		Purchase:    purchase,
	}, nil
}

// ConfirmPurchase handles the provider's success redirect: it executes
// the approved payment and stamps the matching pending purchase.
func (s *PurchaseService) ConfirmPurchase(ctx context.Context, paymentID, payerID string) (*ConfirmResult, error) {
	if paymentID == "" {
		return nil, apperror.Missing(msgPaymentNotFound)
	}

	session, err := s.provider.FindSession(ctx, paymentID)
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrSessionNotFound):
			return nil, apperror.Missing(msgPaymentNotFound)
		case errors.Is(err, payment.ErrUnavailable):
			return nil, apperror.Unavailable(msgProviderUnreachable, err)
		default:
			return nil, apperror.External("payment lookup failed", err)
		}
	}

	executed, err := s.provider.Execute(ctx, session, payerID)
	if err != nil {
		s.logger.Warn("payment execution failed",
			slog.String("paymentID", paymentID),
			slog.String("error", err.Error()),
		)
		if errors.Is(err, payment.ErrUnavailable) {
			return nil, apperror.Unavailable(msgProviderUnreachable, err)
		}
		return nil, apperror.External(msgPaymentFailed, err)
	}

	meta := executed.Metadata
	if meta.CourseID == "" && meta.PurchaseID == "" {
		return nil, apperror.InvalidState("payment " + paymentID + " carries no purchase metadata")
	}

	txID := executed.TransactionID
	if txID == "" {
		txID = executed.ID
	}
	at := s.now()

	var confirmed int64
	if meta.PurchaseID != "" {
		ok, err := s.purchases.ConfirmPurchase(ctx, meta.PurchaseID, txID, at)
		if err != nil {
			return nil, fmt.Errorf("confirming purchase: %w", err)
		}
		if ok {
			confirmed = 1
		}
	} else {
		// Sessions without a purchase id can only be matched by course.
		n, err := s.purchases.ConfirmPendingForCourse(ctx, meta.CourseID, txID, at)
		if err != nil {
			return nil, fmt.Errorf("confirming purchases: %w", err)
		}
		confirmed = n
	}

	if confirmed == 0 {
		s.logger.Warn("no pending purchase for payment",
			slog.String("paymentID", paymentID),
			slog.String("purchaseID", meta.PurchaseID),
			slog.String("courseID", meta.CourseID),
		)
		return nil, apperror.Missing(msgPurchaseNotFound)
	}

	s.logger.Info("purchase confirmed",
		slog.String("paymentID", paymentID),
		slog.String("transactionID", txID),
		slog.Int64("rows", confirmed),
	)

	return &ConfirmResult{
		PaymentID:     paymentID,
		TransactionID: txID,
		CourseID:      meta.CourseID,
		Confirmed:     confirmed,
	}, nil
}

// CancelPurchase handles the provider's cancel redirect. The pending row is
// left in place so the student's next attempt is reported as purchased.
func (s *PurchaseService) CancelPurchase(_ context.Context, paymentID string) {
	s.logger.Info("payment cancelled by buyer", slog.String("paymentID", paymentID))
}

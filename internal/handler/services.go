package handler

import (
	"context"

	"github.com/sakif/coursemarket/internal/model"
	"github.com/sakif/coursemarket/internal/policy"
	"github.com/sakif/coursemarket/internal/service"
)

// The interfaces below are the slices of the service layer each handler
// uses. *service.XxxService values satisfy them.

type Registrar interface {
	Submit(ctx context.Context, sessionID string, in service.RegisterInput) error
	Verify(ctx context.Context, sessionID string, in service.VerifyInput) (*model.Account, error)
}

type Authenticator interface {
	Login(ctx context.Context, in service.LoginInput) (*service.LoginResult, error)
	ResolveActor(ctx context.Context, accountID string) (policy.Actor, error)
}

type Catalog interface {
	ListCourses(ctx context.Context, actor policy.Actor, query string) ([]model.Course, error)
	ListOwnedCourses(ctx context.Context, actor policy.Actor) ([]model.TeacherCourse, error)
	GetCourse(ctx context.Context, actor policy.Actor, id string) (*model.Course, error)
	CreateCourse(ctx context.Context, actor policy.Actor, in service.CourseInput) (*model.Course, error)
	UpdateCourse(ctx context.Context, actor policy.Actor, id string, in service.CourseInput) (*model.Course, error)
	DeleteCourse(ctx context.Context, actor policy.Actor, id string) error

	CreateContent(ctx context.Context, actor policy.Actor, courseID string, in service.ContentInput) (*model.CourseContent, error)
	ListContents(ctx context.Context, actor policy.Actor, courseID string) ([]model.CourseContent, error)
	GetContent(ctx context.Context, actor policy.Actor, courseID, id string) (*model.CourseContent, error)
	UpdateContent(ctx context.Context, actor policy.Actor, courseID, id string, in service.ContentInput) (*model.CourseContent, error)
	DeleteContent(ctx context.Context, actor policy.Actor, courseID, id string) error
}

type Purchases interface {
	InitiatePurchase(ctx context.Context, actor policy.Actor, courseID string) (*service.InitiateResult, error)
	ConfirmPurchase(ctx context.Context, paymentID, payerID string) (*service.ConfirmResult, error)
	CancelPurchase(ctx context.Context, paymentID string)
}

type Entitlements interface {
	ListPurchasedCourses(ctx context.Context, actor policy.Actor) ([]model.PurchasedCourse, error)
}

var (
	_ Registrar     = (*service.RegistrationService)(nil)
	_ Authenticator = (*service.AuthService)(nil)
	_ Catalog       = (*service.CatalogService)(nil)
	_ Purchases     = (*service.PurchaseService)(nil)
	_ Entitlements  = (*service.EntitlementService)(nil)
)

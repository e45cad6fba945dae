package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sakif/coursemarket/internal/auth"
	"github.com/sakif/coursemarket/internal/model"
	"github.com/sakif/coursemarket/internal/policy"
)

const (
	testMailFrom = "noreply@coursemarket.test"
	testPassword = "Abcd123!"
)

// testEnv wires every service against one memStore so tests can move
// through registration, catalog and purchase in sequence.
type testEnv struct {
	store     *memStore
	mailer    *fakeMailer
	provider  *fakeProvider
	passwords *auth.PasswordService
	tokens    *auth.TokenService

	registration *RegistrationService
	auth         *AuthService
	catalog      *CatalogService
	purchases    *PurchaseService
	entitlements *EntitlementService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := newMemStore()
	mailer := &fakeMailer{}
	provider := newFakeProvider()
	passwords := auth.NewPasswordServiceForTest()
	tokens, err := auth.NewTokenService("test-secret-0123456789abcdef", time.Hour)
	require.NoError(t, err)
	logger := discardLogger()

	return &testEnv{
		store:        store,
		mailer:       mailer,
		provider:     provider,
		passwords:    passwords,
		tokens:       tokens,
		registration: NewRegistrationService(store, store, passwords, mailer, testMailFrom, 10*time.Minute, logger),
		auth:         NewAuthService(store, tokens, passwords, logger),
		catalog:      NewCatalogService(store, store, store, mailer, testMailFrom, logger),
		purchases: NewPurchaseService(store, store, provider, PurchaseConfig{
			Currency:  "USD",
			ReturnURL: "http://localhost/api/payments/success",
			CancelURL: "http://localhost/api/payments/cancel",
		}, logger),
		entitlements: NewEntitlementService(store, store, store, logger),
	}
}

// account creates an account directly in the store and returns the actor
// the auth service resolves for it.
func (e *testEnv) account(t *testing.T, name, email string, role model.Role) policy.Actor {
	t.Helper()

	hash, err := e.passwords.Hash(testPassword)
	require.NoError(t, err)

	acc := &model.Account{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		IsStudent:    role == model.RoleStudent,
		IsTeacher:    role == model.RoleTeacher,
	}
	require.NoError(t, e.store.CreateAccount(context.Background(), acc))

	actor, err := e.auth.ResolveActor(context.Background(), acc.ID)
	require.NoError(t, err)
	return actor
}

func (e *testEnv) teacher(t *testing.T, name string) policy.Actor {
	return e.account(t, name, name+"@teach.test", model.RoleTeacher)
}

func (e *testEnv) student(t *testing.T, name string) policy.Actor {
	return e.account(t, name, name+"@learn.test", model.RoleStudent)
}

func (e *testEnv) course(t *testing.T, owner policy.Actor, title string, price model.Money) *model.Course {
	t.Helper()
	c, err := e.catalog.CreateCourse(context.Background(), owner, CourseInput{
		Title:    title,
		Duration: "4 weeks",
		Price:    price,
	})
	require.NoError(t, err)
	return c
}

// buy runs a complete purchase for the student and returns the confirmed
// provider payment id.
func (e *testEnv) buy(t *testing.T, student policy.Actor, courseID string) string {
	t.Helper()
	res, err := e.purchases.InitiatePurchase(context.Background(), student, courseID)
	require.NoError(t, err)
	require.False(t, res.AlreadyPurchased)
	_, err = e.purchases.ConfirmPurchase(context.Background(), res.PaymentID, "PAYER-1")
	require.NoError(t, err)
	return res.PaymentID
}

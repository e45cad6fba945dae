package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/coursemarket/internal/model"
)

// PurchaseHandler serves the purchase flow and the student's library.
type PurchaseHandler struct {
	purchases    Purchases
	entitlements Entitlements
	logger       *slog.Logger
}

func NewPurchaseHandler(purchases Purchases, entitlements Entitlements, logger *slog.Logger) *PurchaseHandler {
	return &PurchaseHandler{purchases: purchases, entitlements: entitlements, logger: logger}
}

type initiateResponse struct {
	Message     string          `json:"message"`
	ApprovalURL string          `json:"approval_url,omitempty"`
	PaymentID   string          `json:"payment_id,omitempty"`
	PaymentData *model.Purchase `json:"payment_data,omitempty"`
}

// HandleInitiate starts a purchase.
//
// HTTP: POST /api/courses/{courseID}/purchase
//
//	201  {"approval_url": "...", "payment_data": {...}}   redirect the buyer
//	200  {"message": "You have already purchased this course."}
func (h *PurchaseHandler) HandleInitiate(w http.ResponseWriter, r *http.Request) {
	res, err := h.purchases.InitiatePurchase(r.Context(), actorFrom(r), chi.URLParam(r, "courseID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if res.AlreadyPurchased {
		writeJSON(w, h.logger, http.StatusOK, initiateResponse{Message: "You have already purchased this course."})
		return
	}

	writeJSON(w, h.logger, http.StatusCreated, initiateResponse{
		Message:     "Redirect to the approval URL to complete the payment.",
		ApprovalURL: res.ApprovalURL,
		PaymentID:   res.PaymentID,
		PaymentData: res.Purchase,
	})
}

// HandleSuccess is the provider's return URL after the buyer approves.
//
// HTTP: GET /api/payments/success?token=ORDER&PayerID=PAYER
//
// Orders-style redirects send the id as "token"; the older payments flow
// sends "paymentId". Both are accepted.
func (h *PurchaseHandler) HandleSuccess(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	paymentID := q.Get("paymentId")
	if paymentID == "" {
		paymentID = q.Get("token")
	}

	res, err := h.purchases.ConfirmPurchase(r.Context(), paymentID, q.Get("PayerID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, h.logger, http.StatusOK, "Payment completed successfully.", res)
}

// HandleCancel is the provider's cancel URL.
//
// HTTP: GET /api/payments/cancel?token=ORDER
func (h *PurchaseHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	h.purchases.CancelPurchase(r.Context(), r.URL.Query().Get("token"))
	writeJSON(w, h.logger, http.StatusOK, Response{Message: "Payment cancelled."})
}

type studentCourses struct {
	Courses []model.PurchasedCourse `json:"courses"`
}

// HandleStudentCourses lists the caller's purchased courses with their
// contents.
//
// HTTP: GET /api/student/courses
func (h *PurchaseHandler) HandleStudentCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.entitlements.ListPurchasedCourses(r.Context(), actorFrom(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, h.logger, http.StatusOK, "Courses purchased by the student.", studentCourses{Courses: courses})
}

package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	SandboxBaseURL = "https://api-m.sandbox.paypal.com"
	LiveBaseURL    = "https://api-m.paypal.com"
)

type PayPalConfig struct {
	ClientID string
	Secret   string
	BaseURL  string
	Timeout  time.Duration
}

// PayPal implements Provider on the PayPal Orders v2 REST API.
//
// AUTHENTICATION:
// PayPal uses the OAuth2 client-credentials grant. clientcredentials.Config
// fetches a bearer token from /v1/oauth2/token on first use, caches it and
// refreshes it when it expires; the returned *http.Client attaches it to
// every request. We never handle the token ourselves.
//
// MAPPING:
//
//	CreateSession → POST /v2/checkout/orders            (intent CAPTURE)
//	FindSession   → GET  /v2/checkout/orders/{id}
//	Execute       → POST /v2/checkout/orders/{id}/capture
//
// The course id rides in purchase_units[0].reference_id and the purchase
// row id in custom_id. Both come back on every order lookup.
type PayPal struct {
	baseURL string
	client  *http.Client
}

func NewPayPal(cfg PayPalConfig) *PayPal {
	if cfg.BaseURL == "" {
		cfg.BaseURL = SandboxBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	base := strings.TrimRight(cfg.BaseURL, "/")

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.Secret,
		TokenURL:     base + "/v1/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	// The token fetch uses the client stored in the context, so it gets the
	// same timeout as API calls.
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: cfg.Timeout})
	client := cc.Client(ctx)
	client.Timeout = cfg.Timeout

	return &PayPal{baseURL: base, client: client}
}

type ppMoney struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type ppCapture struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type ppPurchaseUnit struct {
	ReferenceID string   `json:"reference_id,omitempty"`
	CustomID    string   `json:"custom_id,omitempty"`
	Description string   `json:"description,omitempty"`
	Amount      *ppMoney `json:"amount,omitempty"`
	Payments    *struct {
		Captures []ppCapture `json:"captures"`
	} `json:"payments,omitempty"`
}

type ppLink struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method"`
}

type ppOrder struct {
	ID            string           `json:"id"`
	Status        string           `json:"status"`
	PurchaseUnits []ppPurchaseUnit `json:"purchase_units"`
	Links         []ppLink         `json:"links"`
	Payer         *struct {
		PayerID string `json:"payer_id"`
	} `json:"payer,omitempty"`
}

type ppApplicationContext struct {
	ReturnURL          string `json:"return_url"`
	CancelURL          string `json:"cancel_url"`
	UserAction         string `json:"user_action"`
	ShippingPreference string `json:"shipping_preference"`
}

type ppCreateOrder struct {
	Intent             string               `json:"intent"`
	PurchaseUnits      []ppPurchaseUnit     `json:"purchase_units"`
	ApplicationContext ppApplicationContext `json:"application_context"`
}

type ppError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Details []struct {
		Issue string `json:"issue"`
	} `json:"details"`
}

func (p *PayPal) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	body := ppCreateOrder{
		Intent: "CAPTURE",
		PurchaseUnits: []ppPurchaseUnit{{
			ReferenceID: req.Metadata.CourseID,
			CustomID:    req.Metadata.PurchaseID,
			Description: req.Description,
			Amount:      &ppMoney{CurrencyCode: req.Currency, Value: req.Amount.String()},
		}},
		ApplicationContext: ppApplicationContext{
			ReturnURL:          req.ReturnURL,
			CancelURL:          req.CancelURL,
			UserAction:         "PAY_NOW",
			ShippingPreference: "NO_SHIPPING",
		},
	}

	var order ppOrder
	if err := p.do(ctx, http.MethodPost, "/v2/checkout/orders", body, &order); err != nil {
		return nil, fmt.Errorf("creating order: %w", err)
	}

	session := order.toSession()
	if session.ApprovalURL == "" {
		return nil, fmt.Errorf("%w: order %s has no approval link", ErrRejected, order.ID)
	}
	return session, nil
}

func (p *PayPal) FindSession(ctx context.Context, id string) (*Session, error) {
	if !validOrderID(id) {
		return nil, ErrSessionNotFound
	}
	var order ppOrder
	if err := p.do(ctx, http.MethodGet, "/v2/checkout/orders/"+url.PathEscape(id), nil, &order); err != nil {
		return nil, fmt.Errorf("getting order %s: %w", id, err)
	}
	return order.toSession(), nil
}

// Execute captures an approved order. An order that is already COMPLETED
// (a replayed callback) is returned as is without a second capture.
func (p *PayPal) Execute(ctx context.Context, session *Session, payerID string) (*Session, error) {
	if session.Completed() {
		return session, nil
	}
	if payerID != "" && session.PayerID != "" && payerID != session.PayerID {
		return nil, fmt.Errorf("%w: payer %s does not match order %s", ErrRejected, payerID, session.ID)
	}

	if !validOrderID(session.ID) {
		return nil, ErrSessionNotFound
	}

	var order ppOrder
	path := "/v2/checkout/orders/" + url.PathEscape(session.ID) + "/capture"
	if err := p.do(ctx, http.MethodPost, path, struct{}{}, &order); err != nil {
		return nil, fmt.Errorf("capturing order %s: %w", session.ID, err)
	}

	captured := order.toSession()
	if !captured.Completed() {
		return nil, fmt.Errorf("%w: order %s ended in status %s", ErrRejected, session.ID, order.Status)
	}
	// Capture responses may omit fields the order lookup returned.
	if captured.Metadata == (Metadata{}) {
		captured.Metadata = session.Metadata
	}
	return captured, nil
}

// validOrderID reports whether id looks like a PayPal order id. Ids arrive
// from the public success callback and end up in the request path.
func validOrderID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-':
		default:
			return false
		}
	}
	return true
}

func (o *ppOrder) toSession() *Session {
	s := &Session{ID: o.ID, Status: o.Status}
	for _, l := range o.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			s.ApprovalURL = l.Href
			break
		}
	}
	if o.Payer != nil {
		s.PayerID = o.Payer.PayerID
	}
	if len(o.PurchaseUnits) > 0 {
		pu := o.PurchaseUnits[0]
		s.Metadata = Metadata{CourseID: pu.ReferenceID, PurchaseID: pu.CustomID}
		if pu.Payments != nil && len(pu.Payments.Captures) > 0 {
			s.TransactionID = pu.Payments.Captures[0].ID
		}
	}
	if s.Completed() && s.TransactionID == "" {
		s.TransactionID = o.ID
	}
	return s
}

// do sends a JSON request and decodes a JSON response into out.
//
// Error classification:
//   - transport failures and 502/503/504 → ErrUnavailable
//   - 404                                → ErrSessionNotFound
//   - any other non-2xx, or a refused OAuth token → ErrRejected
func (p *PayPal) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method == http.MethodPost {
		req.Header.Set("PayPal-Request-Id", uuid.NewString())
	}

	resp, err := p.client.Do(req)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return fmt.Errorf("%w: oauth token refused: %w", ErrRejected, err)
		}
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: reading response: %w", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil || len(raw) == 0 {
			return nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("%w: decoding response: %w", ErrRejected, err)
		}
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return ErrSessionNotFound
	case resp.StatusCode == http.StatusBadGateway,
		resp.StatusCode == http.StatusServiceUnavailable,
		resp.StatusCode == http.StatusGatewayTimeout:
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	default:
		return fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, describe(raw))
	}
}

func describe(raw []byte) string {
	var e ppError
	if err := json.Unmarshal(raw, &e); err != nil || e.Name == "" {
		return strings.TrimSpace(string(raw))
	}
	if len(e.Details) > 0 && e.Details[0].Issue != "" {
		return e.Name + " (" + e.Details[0].Issue + ")"
	}
	return e.Name
}

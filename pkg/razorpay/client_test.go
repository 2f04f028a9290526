package razorpay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/lfgraphics/khadimemillat-backend/pkg/config"
	pkgerrors "github.com/lfgraphics/khadimemillat-backend/pkg/errors"
)

type stubDoer struct {
	resp *http.Response
	err  error
	last *http.Request
}

func (s *stubDoer) Do(req *http.Request) (*http.Response, error) {
	s.last = req
	return s.resp, s.err
}

func newTestClient(t *testing.T, doer httpDoer) *Client {
	t.Helper()
	client, err := NewClient(context.Background(), config.RazorpayConfig{
		KeyID:         "rzp_test_key",
		KeySecret:     "order-secret",
		WebhookSecret: "webhook-secret",
	}, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if doer != nil {
		client.http = doer
	}
	return client
}

func jsonResponse(status int, payload any) *http.Response {
	body, _ := json.Marshal(payload)
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader(body)),
	}
}

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := NewClient(context.Background(), config.RazorpayConfig{KeySecret: "s", WebhookSecret: "w"}, nil)
	if err == nil {
		t.Fatal("expected error for missing key id")
	}
	_, err = NewClient(context.Background(), config.RazorpayConfig{KeyID: "k", KeySecret: "s"}, nil)
	if err == nil {
		t.Fatal("expected error for missing webhook secret")
	}
}

func TestCreateOrder(t *testing.T) {
	doer := &stubDoer{resp: jsonResponse(http.StatusOK, map[string]any{
		"id":       "order_abc",
		"amount":   149950,
		"currency": "INR",
		"receipt":  "res-1",
		"status":   "created",
	})}
	client := newTestClient(t, doer)

	order, err := client.CreateOrder(context.Background(), OrderParams{
		AmountPaise: 149950,
		Receipt:     "res-1",
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.ID != "order_abc" {
		t.Fatalf("unexpected order id %q", order.ID)
	}
	if doer.last.Method != http.MethodPost {
		t.Fatalf("unexpected method %s", doer.last.Method)
	}
	if user, _, ok := doer.last.BasicAuth(); !ok || user != "rzp_test_key" {
		t.Fatalf("expected basic auth with key id, got %q ok=%v", user, ok)
	}
}

func TestCreateOrderTransportFailureIsDependencyError(t *testing.T) {
	doer := &stubDoer{err: errors.New("dial timeout")}
	client := newTestClient(t, doer)

	_, err := client.CreateOrder(context.Background(), OrderParams{AmountPaise: 100})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestCreateOrderRejectsNonPositiveAmount(t *testing.T) {
	client := newTestClient(t, nil)
	_, err := client.CreateOrder(context.Background(), OrderParams{AmountPaise: 0})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateOrderGatewayErrorStatus(t *testing.T) {
	doer := &stubDoer{resp: jsonResponse(http.StatusBadGateway, map[string]any{"error": "unavailable"})}
	client := newTestClient(t, doer)

	_, err := client.CreateOrder(context.Background(), OrderParams{AmountPaise: 100})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestVerifyPaymentSignature(t *testing.T) {
	client := newTestClient(t, nil)

	valid := client.SignPayload("order_abc|pay_xyz")
	if err := client.VerifyPaymentSignature("order_abc", "pay_xyz", valid); err != nil {
		t.Fatalf("expected valid signature to verify: %v", err)
	}

	// Repeated verification must stay pure.
	if err := client.VerifyPaymentSignature("order_abc", "pay_xyz", valid); err != nil {
		t.Fatalf("expected repeat verification to pass: %v", err)
	}

	err := client.VerifyPaymentSignature("order_abc", "pay_xyz", "deadbeef")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized for tampered signature, got %v", err)
	}

	err = client.VerifyPaymentSignature("order_other", "pay_xyz", valid)
	if pkgerrors.As(err) == nil {
		t.Fatalf("expected mismatch for different order, got %v", err)
	}
}

func TestVerifyWebhookSignature(t *testing.T) {
	client := newTestClient(t, nil)
	body := []byte(`{"event":"payment.captured"}`)

	sig := signPayload(string(body), "webhook-secret")
	if err := client.VerifyWebhookSignature(body, sig); err != nil {
		t.Fatalf("expected webhook signature to verify: %v", err)
	}
	if err := client.VerifyWebhookSignature([]byte(`{}`), sig); err == nil {
		t.Fatal("expected mismatch for altered body")
	}
}

package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/model"
	"github.com/stripe/stripe-go/v79"
)

type fakeIntents struct {
	pi  *stripe.PaymentIntent
	err error
}

func (f fakeIntents) Get(string, *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return f.pi, f.err
}

func TestMapIntentStatus(t *testing.T) {
	if st, err := mapIntentStatus(stripe.PaymentIntentStatusRequiresCapture); err != nil || st != model.PaymentAuthorized {
		t.Fatalf("requires_capture: %v %v", st, err)
	}
	if st, err := mapIntentStatus(stripe.PaymentIntentStatusSucceeded); err != nil || st != model.PaymentPaid {
		t.Fatalf("succeeded: %v %v", st, err)
	}
	if _, err := mapIntentStatus(stripe.PaymentIntentStatusRequiresPaymentMethod); !errors.Is(err, model.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestStripeAuthorize(t *testing.T) {
	s := &Stripe{intents: fakeIntents{pi: &stripe.PaymentIntent{ID: "pi_1", Status: stripe.PaymentIntentStatusSucceeded}}}
	auth, err := s.Authorize(context.Background(), " pi_1 ")
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if auth.Reference != "pi_1" || auth.Status != model.PaymentPaid {
		t.Fatalf("unexpected authorization %+v", auth)
	}

	s = &Stripe{intents: fakeIntents{err: &stripe.Error{HTTPStatusCode: 404}}}
	if _, err := s.Authorize(context.Background(), "pi_x"); !errors.Is(err, model.ErrInvalidInput) {
		t.Fatalf("missing intent should be invalid input, got %v", err)
	}
}

func TestOpaque(t *testing.T) {
	auth, err := Opaque{}.Authorize(context.Background(), "ref-9")
	if err != nil || auth.Status != model.PaymentAuthorized || auth.Reference != "ref-9" {
		t.Fatalf("unexpected %+v %v", auth, err)
	}
	if _, err := (Opaque{}).Authorize(context.Background(), "  "); !errors.Is(err, model.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

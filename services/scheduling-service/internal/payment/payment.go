package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/model"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
)

// Authorizer resolves a caller supplied payment reference into the
// authorization stored on the appointment.
type Authorizer interface {
	Authorize(ctx context.Context, reference string) (model.PaymentAuthorization, error)
}

// Opaque accepts any non-empty reference as authorized. It is used when no
// payment provider is configured.
type Opaque struct{}

func (Opaque) Authorize(_ context.Context, reference string) (model.PaymentAuthorization, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return model.PaymentAuthorization{}, fmt.Errorf("%w: payment reference is empty", model.ErrInvalidInput)
	}
	return model.PaymentAuthorization{Reference: reference, Status: model.PaymentAuthorized}, nil
}

type intentGetter interface {
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// Stripe looks the reference up as a PaymentIntent.
type Stripe struct {
	intents intentGetter
}

func NewStripe(secretKey string) *Stripe {
	sc := client.New(secretKey, nil)
	return &Stripe{intents: sc.PaymentIntents}
}

func (s *Stripe) Authorize(ctx context.Context, reference string) (model.PaymentAuthorization, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return model.PaymentAuthorization{}, fmt.Errorf("%w: payment reference is empty", model.ErrInvalidInput)
	}
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := s.intents.Get(reference, params)
	if err != nil {
		if stripeErr, ok := err.(*stripe.Error); ok && stripeErr.HTTPStatusCode == 404 {
			return model.PaymentAuthorization{}, fmt.Errorf("%w: unknown payment intent %s", model.ErrInvalidInput, reference)
		}
		return model.PaymentAuthorization{}, fmt.Errorf("retrieve payment intent: %w", err)
	}
	status, err := mapIntentStatus(pi.Status)
	if err != nil {
		return model.PaymentAuthorization{}, err
	}
	return model.PaymentAuthorization{Reference: pi.ID, Status: status}, nil
}

func mapIntentStatus(s stripe.PaymentIntentStatus) (model.PaymentStatus, error) {
	switch s {
	case stripe.PaymentIntentStatusRequiresCapture:
		return model.PaymentAuthorized, nil
	case stripe.PaymentIntentStatusSucceeded:
		return model.PaymentPaid, nil
	}
	return "", fmt.Errorf("%w: payment intent is %s", model.ErrInvalidInput, s)
}

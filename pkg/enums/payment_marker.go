package enums

import "fmt"

// PaymentMarkerKind distinguishes the payment markers posted into a
// chat conversation transcript.
type PaymentMarkerKind string

const (
	PaymentMarkerRequest   PaymentMarkerKind = "payment_request"
	PaymentMarkerCompleted PaymentMarkerKind = "payment_completed"
)

var validPaymentMarkerKinds = []PaymentMarkerKind{
	PaymentMarkerRequest,
	PaymentMarkerCompleted,
}

// IsValid reports whether the value is a known PaymentMarkerKind.
func (p PaymentMarkerKind) IsValid() bool {
	for _, candidate := range validPaymentMarkerKinds {
		if candidate == p {
			return true
		}
	}
	return false
}

// PaymentMarkerStatus tracks whether a payment-request marker can still be paid.
type PaymentMarkerStatus string

const (
	PaymentMarkerStatusPayable    PaymentMarkerStatus = "payable"
	PaymentMarkerStatusSuperseded PaymentMarkerStatus = "superseded"
	PaymentMarkerStatusPaid       PaymentMarkerStatus = "paid"
	PaymentMarkerStatusExpired    PaymentMarkerStatus = "expired"
)

var validPaymentMarkerStatuses = []PaymentMarkerStatus{
	PaymentMarkerStatusPayable,
	PaymentMarkerStatusSuperseded,
	PaymentMarkerStatusPaid,
	PaymentMarkerStatusExpired,
}

// IsValid reports whether the value is a known PaymentMarkerStatus.
func (p PaymentMarkerStatus) IsValid() bool {
	for _, candidate := range validPaymentMarkerStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentMarkerStatus converts raw input into a PaymentMarkerStatus.
func ParsePaymentMarkerStatus(value string) (PaymentMarkerStatus, error) {
	for _, candidate := range validPaymentMarkerStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment marker status %q", value)
}

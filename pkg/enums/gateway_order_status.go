package enums

import "fmt"

// GatewayOrderStatus mirrors the local view of an external gateway order.
type GatewayOrderStatus string

const (
	GatewayOrderStatusCreated  GatewayOrderStatus = "created"
	GatewayOrderStatusVerified GatewayOrderStatus = "verified"
	GatewayOrderStatusFailed   GatewayOrderStatus = "failed"
)

var validGatewayOrderStatuses = []GatewayOrderStatus{
	GatewayOrderStatusCreated,
	GatewayOrderStatusVerified,
	GatewayOrderStatusFailed,
}

// String implements fmt.Stringer.
func (g GatewayOrderStatus) String() string {
	return string(g)
}

// IsValid reports whether the value is a known GatewayOrderStatus.
func (g GatewayOrderStatus) IsValid() bool {
	for _, candidate := range validGatewayOrderStatuses {
		if candidate == g {
			return true
		}
	}
	return false
}

// ParseGatewayOrderStatus converts raw input into a GatewayOrderStatus.
func ParseGatewayOrderStatus(value string) (GatewayOrderStatus, error) {
	for _, candidate := range validGatewayOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid gateway order status %q", value)
}

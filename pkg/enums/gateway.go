package enums

import "fmt"

// PaymentGateway identifies the external processor that settles a checkout.
type PaymentGateway string

const (
	GatewayStripe      PaymentGateway = "stripe"
	GatewayPaystack    PaymentGateway = "paystack"
	GatewayFlutterwave PaymentGateway = "flutterwave"
)

var validGateways = []PaymentGateway{
	GatewayStripe,
	GatewayPaystack,
	GatewayFlutterwave,
}

// String implements fmt.Stringer.
func (g PaymentGateway) String() string {
	return string(g)
}

// IsValid reports whether the gateway is recognized.
func (g PaymentGateway) IsValid() bool {
	for _, candidate := range validGateways {
		if candidate == g {
			return true
		}
	}
	return false
}

// ParsePaymentGateway converts a raw string into a PaymentGateway.
func ParsePaymentGateway(value string) (PaymentGateway, error) {
	for _, candidate := range validGateways {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment gateway %q", value)
}

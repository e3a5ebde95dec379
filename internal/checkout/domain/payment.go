package domain

type PaymentMethod string

const (
	MethodDirectDebit        PaymentMethod = "DE_DIRECT_DEBIT"
	MethodVisa               PaymentMethod = "VISA"
	MethodMastercard         PaymentMethod = "MASTERCARD"
	MethodAmex               PaymentMethod = "AMEX"
	MethodPaydirekt          PaymentMethod = "PAYDIREKT"
	MethodTwint              PaymentMethod = "TWINT"
	MethodPostFinance        PaymentMethod = "POSTFINANCE"
	MethodGatekeeperTerminal PaymentMethod = "GATEKEEPER_TERMINAL"
	MethodQRCodePOS          PaymentMethod = "QRCODE_POS"
	MethodQRCodeOffline      PaymentMethod = "QRCODE_OFFLINE"
	MethodCustomerCardPOS    PaymentMethod = "CUSTOMERCARD_POS"
	MethodGooglePay          PaymentMethod = "GOOGLE_PAY"
	MethodExternalBilling    PaymentMethod = "EXTERNAL_BILLING"
)

var knownMethods = map[PaymentMethod]struct{}{
	MethodDirectDebit: {}, MethodVisa: {}, MethodMastercard: {}, MethodAmex: {},
	MethodPaydirekt: {}, MethodTwint: {}, MethodPostFinance: {}, MethodGatekeeperTerminal: {},
	MethodQRCodePOS: {}, MethodQRCodeOffline: {}, MethodCustomerCardPOS: {},
	MethodGooglePay: {}, MethodExternalBilling: {},
}

func (m PaymentMethod) Valid() bool {
	_, ok := knownMethods[m]
	return ok
}

// IsOffline reports whether the method completes without a backend
// process being polled.
func (m PaymentMethod) IsOffline() bool {
	return m == MethodQRCodeOffline
}

func (m PaymentMethod) RequiresCredentials() bool {
	switch m {
	case MethodDirectDebit, MethodVisa, MethodMastercard, MethodAmex,
		MethodPaydirekt, MethodTwint, MethodPostFinance, MethodGooglePay, MethodExternalBilling:
		return true
	}
	return false
}

// ParseMethods drops unknown names.
func ParseMethods(names []string) []PaymentMethod {
	out := make([]PaymentMethod, 0, len(names))
	for _, n := range names {
		if m := PaymentMethod(n); m.Valid() {
			out = append(out, m)
		}
	}
	return out
}

// Credentials is an encrypted payment credential handed through to the
// backend untouched.
type Credentials struct {
	Type                string `json:"type"`
	EncryptedOrigin     string `json:"encryptedOrigin"`
	AdditionalData      string `json:"additionalData,omitempty"`
	ValidUntil          string `json:"validUntil,omitempty"`
	PaymentOriginSource string `json:"-"`
}

func (c *Credentials) Empty() bool {
	return c == nil || c.EncryptedOrigin == ""
}

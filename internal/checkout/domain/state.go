package domain

type State string

const (
	StateNone                     State = "NONE"
	StateHandshaking              State = "HANDSHAKING"
	StateRequestPaymentMethod     State = "REQUEST_PAYMENT_METHOD"
	StateVerifyingPaymentMethod   State = "VERIFYING_PAYMENT_METHOD"
	StateRequestVerifyAge         State = "REQUEST_VERIFY_AGE"
	StateWaitForApproval          State = "WAIT_FOR_APPROVAL"
	StatePaymentProcessing        State = "PAYMENT_PROCESSING"
	StatePaymentApproved          State = "PAYMENT_APPROVED"
	StateDeniedTooYoung           State = "DENIED_TOO_YOUNG"
	StateDeniedByPaymentProvider  State = "DENIED_BY_PAYMENT_PROVIDER"
	StateDeniedBySupervisor       State = "DENIED_BY_SUPERVISOR"
	StatePaymentAborted           State = "PAYMENT_ABORTED"
	StatePaymentAbortFailed       State = "PAYMENT_ABORT_FAILED"
	StateConnectionError          State = "CONNECTION_ERROR"
	StateInvalidProducts          State = "INVALID_PRODUCTS"
	StateNoPaymentMethodAvailable State = "NO_PAYMENT_METHOD_AVAILABLE"
	StateNoShop                   State = "NO_SHOP"
)

func (s State) IsTerminal() bool {
	switch s {
	case StatePaymentApproved,
		StateDeniedTooYoung,
		StateDeniedByPaymentProvider,
		StateDeniedBySupervisor,
		StatePaymentAborted,
		StateConnectionError,
		StateInvalidProducts,
		StateNoPaymentMethodAvailable,
		StateNoShop:
		return true
	}
	return false
}

// IsPolling reports whether the process is still being watched in s.
func (s State) IsPolling() bool {
	return s == StateWaitForApproval || s == StatePaymentProcessing || s == StatePaymentApproved
}

func (s State) String() string {
	return string(s)
}

package domain

type PaymentState string

const (
	PaymentUnauthorized PaymentState = "unauthorized"
	PaymentPending      PaymentState = "pending"
	PaymentProcessing   PaymentState = "processing"
	PaymentSuccessful   PaymentState = "successful"
	PaymentFailed       PaymentState = "failed"
)

type CheckType string

const CheckMinAge CheckType = "min_age"

type CheckState string

const (
	CheckPending    CheckState = "pending"
	CheckSuccessful CheckState = "successful"
	CheckFailed     CheckState = "failed"
)

type Check struct {
	ID          string     `json:"id"`
	Type        CheckType  `json:"type"`
	RequiredAge int        `json:"requiredAge,omitempty"`
	State       CheckState `json:"state"`
}

type FulfillmentState string

const (
	FulfillmentOpen               FulfillmentState = "open"
	FulfillmentAllocating         FulfillmentState = "allocating"
	FulfillmentAllocated          FulfillmentState = "allocated"
	FulfillmentProcessing         FulfillmentState = "processing"
	FulfillmentProcessed          FulfillmentState = "processed"
	FulfillmentAborted            FulfillmentState = "aborted"
	FulfillmentAllocationFailed   FulfillmentState = "allocationFailed"
	FulfillmentAllocationTimedOut FulfillmentState = "allocationTimedOut"
	FulfillmentFailed             FulfillmentState = "failed"
)

func (s FulfillmentState) IsOpen() bool {
	switch s {
	case FulfillmentOpen, FulfillmentAllocating, FulfillmentAllocated, FulfillmentProcessing:
		return true
	}
	return false
}

func (s FulfillmentState) IsFailure() bool {
	switch s {
	case FulfillmentAborted, FulfillmentAllocationFailed, FulfillmentAllocationTimedOut, FulfillmentFailed:
		return true
	}
	return false
}

func (s FulfillmentState) IsClosed() bool {
	return s == FulfillmentProcessed || s.IsFailure()
}

type Fulfillment struct {
	ID    string           `json:"id"`
	Type  string           `json:"type,omitempty"`
	State FulfillmentState `json:"state"`
}

type PaymentInformation struct {
	QRCodeContent string `json:"qrCodeContent,omitempty"`
}

const FailureCauseTerminalAbort = "terminalAbort"

type PaymentResult struct {
	FailureCause string `json:"failureCause,omitempty"`
}

type ProcessLinks struct {
	Self            string `json:"self"`
	OriginCandidate string `json:"originCandidate,omitempty"`
}

// Process is a snapshot of a backend checkout process.
type Process struct {
	ID                 string             `json:"id"`
	Links              ProcessLinks       `json:"links"`
	Aborted            bool               `json:"aborted"`
	PaymentState       PaymentState       `json:"paymentState"`
	SupervisorApproval *bool              `json:"supervisorApproval,omitempty"`
	PaymentApproval    *bool              `json:"paymentApproval,omitempty"`
	PaymentMethod      PaymentMethod      `json:"paymentMethod,omitempty"`
	Checks             []Check            `json:"checks,omitempty"`
	Fulfillments       []Fulfillment      `json:"fulfillments,omitempty"`
	PaymentInformation PaymentInformation `json:"paymentInformation"`
	PaymentResult      PaymentResult      `json:"paymentResult"`
}

func (p *Process) AllFulfillmentsClosed() bool {
	for _, f := range p.Fulfillments {
		if !f.State.IsClosed() {
			return false
		}
	}
	return true
}

func (p *Process) AnyFulfillmentFailed() bool {
	for _, f := range p.Fulfillments {
		if f.State.IsFailure() {
			return true
		}
	}
	return false
}

func (p *Process) AnyFulfillmentOpen() bool {
	for _, f := range p.Fulfillments {
		if f.State.IsOpen() {
			return true
		}
	}
	return false
}

// AgeCheck returns the state of the strictest minimum-age check, or ""
// when the process carries none.
func (p *Process) AgeCheck() CheckState {
	var out CheckState
	for _, c := range p.Checks {
		if c.Type != CheckMinAge {
			continue
		}
		switch c.State {
		case CheckFailed:
			return CheckFailed
		case CheckPending:
			out = CheckPending
		case CheckSuccessful:
			if out == "" {
				out = CheckSuccessful
			}
		}
	}
	return out
}

func (p *Process) DeniedBySupervisor() bool {
	return p.SupervisorApproval != nil && !*p.SupervisorApproval
}

func (p *Process) DeniedByProvider() bool {
	return p.PaymentApproval != nil && !*p.PaymentApproval
}

// OriginCandidate is a reusable payment origin the backend offers to link
// after a successful payment.
type OriginCandidate struct {
	Origin      string `json:"origin"`
	PromoteHref string `json:"promoteHref"`
}

func (c *OriginCandidate) IsValid() bool {
	return c != nil && c.Origin != "" && c.PromoteHref != ""
}

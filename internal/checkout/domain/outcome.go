package domain

import "net/url"

type Outcome int

const (
	OutcomeUnknown Outcome = iota
	OutcomeCompleted
	OutcomePending
	OutcomeFailed
)

const (
	MsgCompleted = "Payment successful! Thank you for your order."
	MsgPending   = "Payment is pending. Please wait or contact support."
	MsgFailed    = "Payment failed. Please try again or use a different method."
	MsgUnknown   = "Payment status unknown. Please check your order history or contact support."
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "Completed"
	case OutcomePending:
		return "Pending"
	case OutcomeFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Interpret maps the gateway's status token to an outcome and the message
// shown to the customer. Matching is exact; anything else is Unknown.
func Interpret(status string) (Outcome, string) {
	switch status {
	case "Completed":
		return OutcomeCompleted, MsgCompleted
	case "Pending":
		return OutcomePending, MsgPending
	case "Failed":
		return OutcomeFailed, MsgFailed
	default:
		return OutcomeUnknown, MsgUnknown
	}
}

// Return is the query the gateway appends when sending the customer back.
type Return struct {
	Status        string
	Pidx          string
	TransactionID string
	Amount        string
}

func ParseReturn(q url.Values) Return {
	return Return{
		Status:        q.Get("status"),
		Pidx:          q.Get("pidx"),
		TransactionID: q.Get("transaction_id"),
		Amount:        q.Get("amount"),
	}
}

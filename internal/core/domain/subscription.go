package domain

import (
	"fmt"
	"time"
)

// Subscription is the billing subscription of one account.
// UserID is the identity key; the remote store holds one row per user.
type Subscription struct {
	ID               string
	UserID           string
	Plan             string
	Status           string
	StartDate        *time.Time
	EndDate          *time.Time
	Amount           *float64
	PaymentReference *string
	UpdatedAt        time.Time
}

// SubscriptionsTable maps subscriptions onto the remote "subscriptions" table.
var SubscriptionsTable = TableSpec{
	Name:          "subscriptions",
	IdentityField: "userId",
	SurrogateKey:  "id",
	TenantField:   "user_id",
	Fields: []FieldMapping{
		{Domain: "userId", Remote: "user_id"},
		{Domain: "plan", Remote: "plan"},
		{Domain: "status", Remote: "status"},
		{Domain: "startDate", Remote: "start_date", Optional: true},
		{Domain: "endDate", Remote: "end_date", Optional: true},
		{Domain: "amount", Remote: "amount", Optional: true},
		{Domain: "paymentReference", Remote: "payment_reference", Optional: true},
	},
}

// ToRecord converts the subscription to a generic record.
func (s *Subscription) ToRecord() Record {
	f := Fields{
		"userId": s.UserID,
		"plan":   s.Plan,
		"status": s.Status,
	}
	if s.StartDate != nil {
		f["startDate"] = FormatTimestamp(*s.StartDate)
	}
	if s.EndDate != nil {
		f["endDate"] = FormatTimestamp(*s.EndDate)
	}
	if s.Amount != nil {
		f["amount"] = *s.Amount
	}
	if s.PaymentReference != nil {
		f["paymentReference"] = *s.PaymentReference
	}
	return Record{
		ID:          s.ID,
		IdentityKey: s.UserID,
		UpdatedAt:   s.UpdatedAt,
		Fields:      f,
	}
}

// SubscriptionFromRecord converts a generic record back to a subscription.
func SubscriptionFromRecord(r Record) (*Subscription, error) {
	s := &Subscription{
		ID:        r.ID,
		UserID:    r.IdentityKey,
		Plan:      r.Fields.String("plan"),
		Status:    r.Fields.String("status"),
		UpdatedAt: r.UpdatedAt,
	}
	if s.UserID == "" {
		s.UserID = r.Fields.String("userId")
	}
	if s.UserID == "" {
		return nil, fmt.Errorf("%w: subscription %s", ErrMissingIdentity, r.ID)
	}

	var err error
	if s.StartDate, err = optionalTime(r.Fields, "startDate"); err != nil {
		return nil, err
	}
	if s.EndDate, err = optionalTime(r.Fields, "endDate"); err != nil {
		return nil, err
	}

	if v, ok := r.Fields["amount"]; ok && v != nil {
		switch n := v.(type) {
		case float64:
			s.Amount = &n
		case int:
			f := float64(n)
			s.Amount = &f
		case int64:
			f := float64(n)
			s.Amount = &f
		default:
			return nil, fmt.Errorf("%w: amount has type %T", ErrInvalidInput, v)
		}
	}
	if ref := r.Fields.String("paymentReference"); ref != "" {
		s.PaymentReference = &ref
	}
	return s, nil
}

func optionalTime(f Fields, key string) (*time.Time, error) {
	raw := f.String(key)
	if raw == "" {
		return nil, nil
	}
	t, err := ParseTimestamp(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidInput, key, err)
	}
	return &t, nil
}

package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscription_RoundTripThroughRemote(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	amount := 499.0
	ref := "pay_123"
	sub := &Subscription{
		ID:               "7",
		UserID:           "u123",
		Plan:             "pro",
		Status:           "active",
		StartDate:        &start,
		Amount:           &amount,
		PaymentReference: &ref,
		UpdatedAt:        start.Add(time.Hour),
	}

	row := SubscriptionsTable.ToRemote(sub.ToRecord())
	assert.NotContains(t, row, "id")
	assert.NotContains(t, row, "end_date")
	assert.Equal(t, "u123", row["user_id"])

	raw, err := json.Marshal(row)
	require.NoError(t, err)

	rec, err := SubscriptionsTable.FromRemote(raw)
	require.NoError(t, err)

	got, err := SubscriptionFromRecord(rec)
	require.NoError(t, err)

	assert.Equal(t, "u123", got.UserID)
	assert.Equal(t, "pro", got.Plan)
	assert.Equal(t, "active", got.Status)
	require.NotNil(t, got.StartDate)
	assert.True(t, start.Equal(*got.StartDate))
	assert.Nil(t, got.EndDate)
	require.NotNil(t, got.Amount)
	assert.InDelta(t, 499.0, *got.Amount, 0.0001)
	require.NotNil(t, got.PaymentReference)
	assert.Equal(t, "pay_123", *got.PaymentReference)
	assert.True(t, sub.UpdatedAt.Equal(got.UpdatedAt))
}

func TestSubscriptionsTable_TolerantOfNullOptionals(t *testing.T) {
	raw := json.RawMessage(`{"id": 3, "user_id": "u9", "plan": "basic", "status": "trial", "start_date": null, "end_date": null, "amount": null, "payment_reference": null, "updated_at": null}`)

	rec, err := SubscriptionsTable.FromRemote(raw)
	require.NoError(t, err)

	sub, err := SubscriptionFromRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, "u9", sub.UserID)
	assert.Nil(t, sub.StartDate)
	assert.Nil(t, sub.Amount)
	assert.Nil(t, sub.PaymentReference)
	assert.True(t, sub.UpdatedAt.IsZero())
}

func TestSubscriptionFromRecord_Errors(t *testing.T) {
	_, err := SubscriptionFromRecord(Record{ID: "1", Fields: Fields{"plan": "pro"}})
	assert.True(t, errors.Is(err, ErrMissingIdentity))

	_, err = SubscriptionFromRecord(Record{IdentityKey: "u1", Fields: Fields{"amount": "lots"}})
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = SubscriptionFromRecord(Record{IdentityKey: "u1", Fields: Fields{"startDate": "soon"}})
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

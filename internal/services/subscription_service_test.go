package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Max0709202/real-estate-ai-card-sub002/internal/models"
	"github.com/Max0709202/real-estate-ai-card-sub002/internal/testutil"
)

type fakeProvider struct {
	err   error
	calls []string
	now   []bool
}

func (f *fakeProvider) CancelSubscription(_ context.Context, id string, immediately bool) error {
	f.calls = append(f.calls, id)
	f.now = append(f.now, immediately)
	return f.err
}

func TestCancelAtPeriodEnd(t *testing.T) {
	db := testutil.NewDB(t)
	user, card := testutil.CreateUserWithCard(t, db, "a@example.com", models.UserTypeNew)
	publish(t, db, &card)
	sub := createSubscription(t, db, card, models.SubscriptionActive, sweepNow.AddDate(0, 1, 0))
	require.NoError(t, db.Model(&sub).Update("stripe_subscription_id", "sub_123").Error)

	provider := &fakeProvider{}
	svc := NewSubscriptionService(db, provider)

	got, err := svc.Cancel(context.Background(), user.ID, false)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionCanceled, got.Status)
	assert.Equal(t, []string{"sub_123"}, provider.calls)
	assert.Equal(t, []bool{false}, provider.now)

	s := reload[models.Subscription](t, db, sub.ID)
	assert.Equal(t, models.SubscriptionCanceled, s.Status)
	assert.True(t, s.CancelAtPeriodEnd)
	assert.NotNil(t, s.CancelledAt)

	c := reload[models.BusinessCard](t, db, card.ID)
	assert.False(t, c.IsPublished)
	assert.Equal(t, models.CardStatusDraft, c.CardStatus)
	assert.Equal(t, models.UserStatusActive, reload[models.User](t, db, user.ID).Status)

	var audits int64
	require.NoError(t, db.Model(&models.AuditLog{}).Where("action = ?", "subscription_cancel").Count(&audits).Error)
	assert.Equal(t, int64(1), audits)
}

func TestCancelImmediately(t *testing.T) {
	db := testutil.NewDB(t)
	user, card := testutil.CreateUserWithCard(t, db, "a@example.com", models.UserTypeNew)
	createSubscription(t, db, card, models.SubscriptionPastDue, sweepNow)

	provider := &fakeProvider{}
	_, err := NewSubscriptionService(db, provider).Cancel(context.Background(), user.ID, true)
	require.NoError(t, err)

	assert.Empty(t, provider.calls)
	assert.Equal(t, models.UserStatusCancelled, reload[models.User](t, db, user.ID).Status)
	assert.Equal(t, models.CardStatusCanceled, reload[models.BusinessCard](t, db, card.ID).CardStatus)
}

func TestCancelProviderFailureRollsBack(t *testing.T) {
	db := testutil.NewDB(t)
	user, card := testutil.CreateUserWithCard(t, db, "a@example.com", models.UserTypeNew)
	publish(t, db, &card)
	sub := createSubscription(t, db, card, models.SubscriptionActive, sweepNow.AddDate(0, 1, 0))
	require.NoError(t, db.Model(&sub).Update("stripe_subscription_id", "sub_123").Error)

	provider := &fakeProvider{err: errors.New("stripe down")}
	_, err := NewSubscriptionService(db, provider).Cancel(context.Background(), user.ID, true)
	require.Error(t, err)

	assert.Equal(t, models.SubscriptionActive, reload[models.Subscription](t, db, sub.ID).Status)
	assert.True(t, reload[models.BusinessCard](t, db, card.ID).IsPublished)
	assert.Equal(t, models.UserStatusActive, reload[models.User](t, db, user.ID).Status)

	var audits int64
	require.NoError(t, db.Model(&models.AuditLog{}).Count(&audits).Error)
	assert.Zero(t, audits)
}

func TestCancelWithoutLiveSubscription(t *testing.T) {
	db := testutil.NewDB(t)
	user, card := testutil.CreateUserWithCard(t, db, "a@example.com", models.UserTypeNew)
	createSubscription(t, db, card, models.SubscriptionExpired, sweepNow)

	_, err := NewSubscriptionService(db, &fakeProvider{}).Cancel(context.Background(), user.ID, false)
	assert.ErrorIs(t, err, ErrNoActiveSubscription)
}

func TestStripeProviderRequests(t *testing.T) {
	var method, path, auth, body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path, auth = r.Method, r.URL.Path, r.Header.Get("Authorization")
		_ = r.ParseForm()
		body = r.PostForm.Get("cancel_at_period_end")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"sub_1"}`))
	}))
	defer srv.Close()

	p := NewStripeProvider("sk_test", srv.URL)

	require.NoError(t, p.CancelSubscription(context.Background(), "sub_1", false))
	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "/v1/subscriptions/sub_1", path)
	assert.Equal(t, "Bearer sk_test", auth)
	assert.Equal(t, "true", body)

	require.NoError(t, p.CancelSubscription(context.Background(), "sub_1", true))
	assert.Equal(t, http.MethodDelete, method)
}

func TestStripeProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"No such subscription"}}`))
	}))
	defer srv.Close()

	err := NewStripeProvider("sk_test", srv.URL).CancelSubscription(context.Background(), "missing", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No such subscription")
}

package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Max0709202/real-estate-ai-card-sub002/internal/models"
	"github.com/Max0709202/real-estate-ai-card-sub002/internal/testutil"
)

type sentMail struct {
	kind string
	to   string
	url  string
}

type fakeMailer struct {
	sent []sentMail
}

func (f *fakeMailer) SendVerification(_ context.Context, to, url string) error {
	f.sent = append(f.sent, sentMail{"verification", to, url})
	return nil
}

func (f *fakeMailer) SendPasswordReset(_ context.Context, to, url string) error {
	f.sent = append(f.sent, sentMail{"reset", to, url})
	return nil
}

func (f *fakeMailer) SendPaymentConfirmed(_ context.Context, to, url string) error {
	f.sent = append(f.sent, sentMail{"confirmed", to, url})
	return nil
}

func TestConfirmPayment(t *testing.T) {
	db := testutil.NewDB(t)
	user, card := testutil.CreateUserWithCard(t, db, "owner@example.com", models.UserTypeNew)
	require.NoError(t, db.Model(&card).Update("payment_status", models.PaymentStatusBankPending).Error)
	pending := testutil.CreatePayment(t, db, card, models.PaymentTypeNewUser, models.PaymentPending, nil)

	mailer := &fakeMailer{}
	notifier := &fakeNotifier{}
	svc := NewAdminService(db, mailer, notifier, "https://ai-fcard.com")

	got, err := svc.ConfirmPayment(context.Background(), 7, card.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusBankPaid, got.PaymentStatus)

	c := reload[models.BusinessCard](t, db, card.ID)
	assert.True(t, c.QRCodeIssued)
	assert.NotNil(t, c.QRCodeIssuedAt)
	assert.Equal(t, models.CardStatusActive, c.CardStatus)
	assert.True(t, models.IsPaidStatus(c.PaymentStatus))

	p := reload[models.Payment](t, db, pending.ID)
	assert.Equal(t, models.PaymentCompleted, p.PaymentStatus)
	assert.NotNil(t, p.PaidAt)

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "confirmed", mailer.sent[0].kind)
	assert.Equal(t, user.Email, mailer.sent[0].to)
	assert.Equal(t, "https://ai-fcard.com/cards/"+card.URLSlug, mailer.sent[0].url)
	require.Len(t, notifier.confirmed, 1)
	assert.Equal(t, card.ID, notifier.confirmed[0].BusinessCardID)
	assert.Empty(t, notifier.confirmed[0].AdminEmail, "unknown admin still sends the notice")
}

func TestConfirmPaymentNoticeNamesAdmin(t *testing.T) {
	db := testutil.NewDB(t)
	_, card := testutil.CreateUserWithCard(t, db, "named@example.com", models.UserTypeNew)
	require.NoError(t, db.Model(&card).Update("payment_status", models.PaymentStatusBankPending).Error)
	admin := models.Admin{Email: "staff@example.com", PasswordHash: "x", Role: models.AdminRoleAdmin}
	require.NoError(t, db.Create(&admin).Error)

	notifier := &fakeNotifier{}
	svc := NewAdminService(db, &fakeMailer{}, notifier, "https://ai-fcard.com")
	_, err := svc.ConfirmPayment(context.Background(), admin.ID, card.ID)
	require.NoError(t, err)

	require.Len(t, notifier.confirmed, 1)
	assert.Equal(t, "staff@example.com", notifier.confirmed[0].AdminEmail)
}

func TestConfirmPaymentKeepsCR(t *testing.T) {
	db := testutil.NewDB(t)
	_, card := testutil.CreateUserWithCard(t, db, "owner@example.com", models.UserTypeExisting)
	require.NoError(t, db.Model(&card).Update("payment_status", models.PaymentStatusCR).Error)

	svc := NewAdminService(db, &fakeMailer{}, nil, "https://ai-fcard.com")
	got, err := svc.ConfirmPayment(context.Background(), 1, card.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCR, got.PaymentStatus)

	var payments []models.Payment
	require.NoError(t, db.Where("user_id = ?", card.UserID).Find(&payments).Error)
	require.Len(t, payments, 1)
	assert.Equal(t, models.PaymentTypeExistingUser, payments[0].PaymentType)
	assert.Equal(t, models.PaymentCompleted, payments[0].PaymentStatus)
}

func TestConfirmPaymentUnknownCard(t *testing.T) {
	db := testutil.NewDB(t)
	_, err := NewAdminService(db, &fakeMailer{}, nil, "").ConfirmPayment(context.Background(), 1, 999)
	assert.ErrorIs(t, err, ErrCardNotFound)
}

func TestCancelPaymentClearsQRAndPublish(t *testing.T) {
	db := testutil.NewDB(t)
	_, card := testutil.CreateUserWithCard(t, db, "owner@example.com", models.UserTypeNew)
	publish(t, db, &card)
	completed := testutil.CreatePayment(t, db, card, models.PaymentTypeNewUser, models.PaymentCompleted, testutil.TimePtr(time.Now()))

	got, err := NewAdminService(db, &fakeMailer{}, nil, "").CancelPayment(context.Background(), 1, card.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusBankPending, got.PaymentStatus)

	c := reload[models.BusinessCard](t, db, card.ID)
	assert.False(t, c.QRCodeIssued)
	assert.Nil(t, c.QRCodeIssuedAt)
	assert.False(t, c.IsPublished)

	p := reload[models.Payment](t, db, completed.ID)
	assert.Equal(t, models.PaymentPending, p.PaymentStatus)
	assert.Nil(t, p.PaidAt)
}

func TestUpdatePublishedRequiresQR(t *testing.T) {
	db := testutil.NewDB(t)
	_, card := testutil.CreateUserWithCard(t, db, "owner@example.com", models.UserTypeNew)
	svc := NewAdminService(db, &fakeMailer{}, nil, "")
	ctx := context.Background()

	_, err := svc.UpdatePublished(ctx, 1, card.ID, true)
	assert.ErrorIs(t, err, ErrQRNotIssued)

	_, err = svc.ConfirmPayment(ctx, 1, card.ID)
	require.NoError(t, err)

	got, err := svc.UpdatePublished(ctx, 1, card.ID, true)
	require.NoError(t, err)
	assert.True(t, got.IsPublished)
	assert.True(t, reload[models.BusinessCard](t, db, card.ID).IsPublished)
}

func TestUpdatePaymentStatusSetsExpiration(t *testing.T) {
	db := testutil.NewDB(t)
	_, card := testutil.CreateUserWithCard(t, db, "owner@example.com", models.UserTypeNew)
	mailer := &fakeMailer{}
	svc := NewAdminService(db, mailer, nil, "")
	ctx := context.Background()

	paidAt := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	expiration := time.Date(2027, 4, 1, 0, 0, 0, 0, time.UTC)

	got, err := svc.UpdatePaymentStatus(ctx, 1, PaymentStatusUpdate{
		BusinessCardID: card.ID,
		PaymentStatus:  models.PaymentStatusBankPaid,
		PaidAt:         &paidAt,
		ExpirationDate: &expiration,
	})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusBankPaid, got.PaymentStatus)
	assert.Len(t, mailer.sent, 1)

	var sub models.Subscription
	require.NoError(t, db.Where("user_id = ?", card.UserID).First(&sub).Error)
	require.NotNil(t, sub.NextBillingDate)
	assert.True(t, expiration.Equal(*sub.NextBillingDate))

	var payment models.Payment
	require.NoError(t, db.Where("user_id = ?", card.UserID).First(&payment).Error)
	require.NotNil(t, payment.PaidAt)
	assert.True(t, paidAt.Equal(*payment.PaidAt))

	got, err = svc.UpdatePaymentStatus(ctx, 1, PaymentStatusUpdate{BusinessCardID: card.ID, PaymentStatus: models.PaymentStatusBankPending})
	require.NoError(t, err)
	assert.False(t, got.QRCodeIssued)

	_, err = svc.UpdatePaymentStatus(ctx, 1, PaymentStatusUpdate{BusinessCardID: card.ID, PaymentStatus: "CR"})
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

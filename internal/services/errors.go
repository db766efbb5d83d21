package services

import "errors"

var (
	ErrCardNotFound          = errors.New("business card not found")
	ErrUserNotFound          = errors.New("user not found")
	ErrInvalidPayload        = errors.New("invalid payload")
	ErrInsufficientTechTools = errors.New("at least two active tech tools are required")
	ErrNoActiveSubscription  = errors.New("no active subscription")
	ErrEmailTaken            = errors.New("email already registered")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrAccountSuspended      = errors.New("account suspended")
	ErrTokenInvalid          = errors.New("token not found")
	ErrTokenExpired          = errors.New("token expired")
	ErrTokenConsumed         = errors.New("token already used")
	ErrAlreadyVerified       = errors.New("email already verified")
	ErrQRNotIssued           = errors.New("qr code not issued")
	ErrUnknownAction         = errors.New("unknown admin action")
	ErrInvalidStatus         = errors.New("invalid payment status")
)

package instagram

import "errors"

var (
	ErrInvalidParameter     = errors.New("invalid parameter")
	ErrNilParameter         = errors.New("nil parameter")
	ErrInvalidCACert        = errors.New("invalid CA certificate")
	ErrIdGeneratorFailed    = errors.New("id generation failed")
	ErrMalformedCallback    = errors.New("malformed callback")
	ErrInvalidState         = errors.New("invalid state")
	ErrExpiredState         = errors.New("state is expired")
	ErrCorrelationFailed    = errors.New("correlation failed")
	ErrMissingCode          = errors.New("authorization code is missing")
	ErrAccessDenied         = errors.New("access denied")
	ErrBackchannel          = errors.New("backchannel request failed")
	ErrInvalidTokenResponse = errors.New("invalid token response")
	ErrSignInFailed         = errors.New("sign in failed")
)

package sso

import "tutorbook/internal/shared/errs"

var (
	ErrOriginMismatch = errs.New(errs.KindForbidden, "Sign-in request came from an unexpected origin.")
	ErrMalformedToken = errs.New(errs.KindUnauthenticated, "Invalid sign-in link.")
	ErrBadSignature   = errs.New(errs.KindUnauthenticated, "Invalid sign-in link.")
	ErrInvalidPayload = errs.New(errs.KindUnauthenticated, "Invalid sign-in details.")
	ErrExpired        = errs.New(errs.KindUnauthenticated, "Sign-in link has expired. Please sign in again.")
	ErrExpiryTooFar   = errs.New(errs.KindUnauthenticated, "Invalid sign-in link.")
	ErrBadNonce       = errs.New(errs.KindUnauthenticated, "Invalid sign-in link.")
	ErrNonceUsed      = errs.New(errs.KindConflict, "This sign-in link has already been used.")
)

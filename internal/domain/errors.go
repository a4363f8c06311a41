package domain

import "errors"

// Kind classifies an Error so transports can map it without knowing every code.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindState         Kind = "state"
	KindAuthorization Kind = "authorization"
	KindArithmetic    Kind = "arithmetic"
	KindIntegrity     Kind = "integrity"
	KindNotFound      Kind = "not_found"
	KindConflict      Kind = "conflict"
	KindUnknown       Kind = "unknown"
)

// Code is a machine-readable error code.
type Code string

// Error is the domain error type. Two Errors match under errors.Is when their
// codes are equal, so sentinels survive wrapping with extra context.
type Error struct {
	Kind    Kind
	Code    Code
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// Wrap returns a copy of e carrying cause.
func (e *Error) Wrap(cause error) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: e.Message, Cause: cause}
}

func newError(kind Kind, code Code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

// CodeOf returns the Code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Validation errors.
var (
	ErrZeroBidAmount       = newError(KindValidation, "ZERO_BID_AMOUNT", "bid amount must be greater than zero")
	ErrZeroInitialDeposit  = newError(KindValidation, "ZERO_INITIAL_DEPOSIT", "initial deposit must be greater than zero")
	ErrZeroIPOSlots        = newError(KindValidation, "ZERO_IPO_SLOTS", "ipo slots must be greater than zero")
	ErrZeroTokenSupply     = newError(KindValidation, "ZERO_TOKEN_SUPPLY", "token supply must be greater than zero")
	ErrInvalidLaunchDate   = newError(KindValidation, "INVALID_LAUNCH_DATE", "invalid launch date")
	ErrNameTooLong         = newError(KindValidation, "NAME_TOO_LONG", "name exceeds maximum length")
	ErrDescriptionTooLong  = newError(KindValidation, "DESCRIPTION_TOO_LONG", "description exceeds maximum length")
	ErrSymbolTooLong       = newError(KindValidation, "SYMBOL_TOO_LONG", "token symbol exceeds maximum length")
	ErrSlotsOutOfRange     = newError(KindValidation, "SLOTS_OUT_OF_RANGE", "requested slots out of range")
	ErrZeroFundingAmount   = newError(KindValidation, "ZERO_FUNDING_AMOUNT", "funding amount must be greater than zero")
	ErrInvalidAddress      = newError(KindValidation, "INVALID_ADDRESS", "invalid address")
	ErrInvalidProtocolArgs = newError(KindValidation, "INVALID_PROTOCOL_CONFIG", "invalid protocol configuration")
	ErrInvalidAmount       = newError(KindValidation, "INVALID_AMOUNT", "invalid amount")
	ErrInvalidBidStatus    = newError(KindValidation, "INVALID_BID_STATUS", "invalid bid status")
	ErrInvalidRequest      = newError(KindValidation, "INVALID_REQUEST", "invalid request body")
)

// State errors.
var (
	ErrNotInBiddingPhase      = newError(KindState, "NOT_IN_BIDDING_PHASE", "product is not in bidding phase")
	ErrBiddingPeriodEnded     = newError(KindState, "BIDDING_PERIOD_ENDED", "bidding period has ended")
	ErrLaunchDateNotReached   = newError(KindState, "LAUNCH_DATE_NOT_REACHED", "launch date has not arrived yet")
	ErrBidAlreadyProcessed    = newError(KindState, "BID_ALREADY_PROCESSED", "bid has already been processed")
	ErrBidNotApproved         = newError(KindState, "BID_NOT_APPROVED", "bid is not approved")
	ErrBidNotRejected         = newError(KindState, "BID_NOT_REJECTED", "bid is not rejected")
	ErrAllSlotsFilled         = newError(KindState, "ALL_SLOTS_FILLED", "all ipo slots are filled")
	ErrTokensAlreadyClaimed   = newError(KindState, "TOKENS_ALREADY_CLAIMED", "tokens already claimed")
	ErrFundsAlreadyClaimed    = newError(KindState, "FUNDS_ALREADY_CLAIMED", "funds already claimed")
	ErrInsufficientFunds      = newError(KindState, "INSUFFICIENT_FUNDS", "insufficient capital balance")
	ErrProtocolNotReady       = newError(KindState, "PROTOCOL_NOT_INITIALIZED", "protocol is not initialized")
	ErrInvalidPhaseTransition = newError(KindState, "INVALID_PHASE_TRANSITION", "invalid product phase transition")
)

// Authorization errors.
var (
	ErrUnauthorizedAccess = newError(KindAuthorization, "UNAUTHORIZED_ACCESS", "only the owner of record can perform this action")
	ErrUnauthorized       = newError(KindAuthorization, "UNAUTHORIZED", "missing or invalid caller signature")
)

// Arithmetic errors.
var (
	ErrArithmeticOverflow = newError(KindArithmetic, "ARITHMETIC_OVERFLOW", "arithmetic overflow")
	ErrZeroTokenPrice     = newError(KindArithmetic, "ZERO_TOKEN_PRICE", "token price rounds to zero")
)

// Integrity errors signal a prior accounting bug, never a user mistake.
var (
	ErrTreasuryInsufficient = newError(KindIntegrity, "TREASURY_INSUFFICIENT", "treasury balance below amount due")
	ErrInsufficientTokens   = newError(KindIntegrity, "INSUFFICIENT_TOKENS", "insufficient tokens in pool")
)

// Storage and coordination errors.
var (
	ErrNotFound      = newError(KindNotFound, "NOT_FOUND", "not found")
	ErrAlreadyExists = newError(KindConflict, "ALREADY_EXISTS", "already exists")
	ErrLockHeld      = newError(KindConflict, "LOCK_HELD", "lock already held")
	ErrRateLimited   = newError(KindConflict, "RATE_LIMITED", "rate limited")
	ErrReplayed      = newError(KindConflict, "REPLAYED_REQUEST", "signed request already used")
)

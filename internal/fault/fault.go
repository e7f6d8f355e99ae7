// Package fault provides single instances of errors to allow easy comparison
// with errors.Is, grouped into classes so callers can branch on the kind of
// failure without matching every sentinel.
package fault

import "errors"

// error base
type GenericError string

// to allow for different classes of errors
type ValidationError GenericError
type AuthorizationError GenericError
type NotFoundError GenericError
type ProcessError GenericError

// validation errors - caught client-side when possible, always re-checked
// authoritatively before any mutation
var (
	ErrTitleTooLong               = ValidationError("title exceeds 100 characters")
	ErrContentTooLong             = ValidationError("content exceeds maximum length")
	ErrUrlTooLong                 = ValidationError("encrypted url exceeds 500 characters")
	ErrUnlockDateMustBeFuture     = ValidationError("unlock date must be in the future")
	ErrInvalidUnlockDateExtension = ValidationError("new unlock date must extend the current one")
	ErrInvalidAddress             = ValidationError("address is not well formed")
	ErrAssetRefRequired           = ValidationError("asset reference is required when asset transfer requested")

	ErrNotOwner                 = AuthorizationError("caller is not the capsule owner")
	ErrNotAuthority             = AuthorizationError("caller is not the config authority")
	ErrCannotTransferToSelf     = AuthorizationError("cannot transfer capsule to current owner")
	ErrCannotCloseLockedCapsule = AuthorizationError("cannot close a capsule that is still locked")
	ErrCapsuleNotReadyToUnlock  = AuthorizationError("capsule unlock date has not been reached")
	ErrCapsuleAlreadyUnlocked   = AuthorizationError("capsule is already unlocked")
	ErrNotAssetOwner            = AuthorizationError("caller does not own the linked asset")

	ErrCapsuleNotFound      = NotFoundError("capsule not found")
	ErrConfigNotInitialized = NotFoundError("ledger config has not been initialized")
	ErrAssetNotFound        = NotFoundError("asset not found in index")

	ErrStaleCapsule       = ProcessError("capsule was modified concurrently, re-fetch and retry")
	ErrStaleProof         = ProcessError("merkle proof no longer matches the tree root, re-fetch and retry")
	ErrAlreadyInitialized = ProcessError("ledger config is already initialized")
	ErrNoLocatorRecovered = ProcessError("no locator recoverable from ciphertext")
)

// the error interface base method
func (e GenericError) Error() string { return string(e) }

// the error interface methods
func (e ValidationError) Error() string    { return string(e) }
func (e AuthorizationError) Error() string { return string(e) }
func (e NotFoundError) Error() string      { return string(e) }
func (e ProcessError) Error() string       { return string(e) }

// determine the class of an error, unwrapping as needed
func IsValidation(err error) bool    { var e ValidationError; return errors.As(err, &e) }
func IsAuthorization(err error) bool { var e AuthorizationError; return errors.As(err, &e) }
func IsNotFound(err error) bool      { var e NotFoundError; return errors.As(err, &e) }
func IsProcess(err error) bool       { var e ProcessError; return errors.As(err, &e) }

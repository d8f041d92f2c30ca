package validators

import "errors"

var (
	ErrAlreadySlashed       = errors.New("validators: already slashed")
	ErrWrongStatus          = errors.New("validators: invalid status for this transition")
	ErrInsufficientRep      = errors.New("validators: insufficient reputation for activation")
	ErrUnbondingIncomplete  = errors.New("validators: unbonding period not complete")
	ErrNoExitEpoch          = errors.New("validators: no exit epoch set")
	ErrAlreadyRegistered    = errors.New("validators: validator_id already registered")
	ErrNotFound             = errors.New("validators: not found")
	ErrChurnLimitExceeded   = errors.New("validators: churn limit exceeded for this epoch")
	ErrQuarantineInProgress = errors.New("validators: quarantine period not complete")
)

package consensus

import "errors"

var (
	ErrDuplicate          = errors.New("consensus: duplicate proposal or vote")
	ErrParentMissing      = errors.New("consensus: parent block missing")
	ErrHeightInvalid      = errors.New("consensus: invalid block height")
	ErrNotLeader          = errors.New("consensus: local replica is not leader for this view")
	ErrInvalidSignature   = errors.New("consensus: signature does not verify")
	ErrInvalidBlock       = errors.New("consensus: block fails structural validation")
	ErrConflictingVote    = errors.New("consensus: conflicting vote violates safety rule")
	ErrInsufficientVotes  = errors.New("consensus: insufficient votes for quorum")
	ErrBrokenChain        = errors.New("consensus: non-consecutive 3-chain")
	ErrUnknownVoter       = errors.New("consensus: voter is not a member of the active set")
	ErrThresholdViolation = errors.New("consensus: quorum threshold violated")
)

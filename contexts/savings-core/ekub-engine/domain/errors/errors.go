package errors

import "errors"

var (
	ErrGroupNotFound      = errors.New("ekub group not found")
	ErrInvalidGroupConfig = errors.New("ekub group configuration is invalid")

	ErrGroupFull              = errors.New("group already has the maximum number of members")
	ErrAlreadyMember          = errors.New("member already belongs to this group")
	ErrGroupNotForming        = errors.New("group is no longer accepting members")
	ErrCannotLeaveActiveGroup = errors.New("members cannot leave an active group")
	ErrNotAMember             = errors.New("member does not belong to this group")
	ErrTooFewMembers          = errors.New("group needs at least two members to start")
	ErrInvalidRotationOrder   = errors.New("rotation order must be a permutation of the members")

	ErrGroupNotActive              = errors.New("group has not started cycling")
	ErrGroupClosed                 = errors.New("group has completed its rotation")
	ErrCycleNotOpen                = errors.New("current cycle is not open for contributions")
	ErrAlreadyContributedThisCycle = errors.New("member already contributed this cycle")
	ErrCycleNotFound               = errors.New("cycle not found")

	ErrInsufficientFunds = errors.New("wallet balance is insufficient for the contribution")
	ErrWalletUnavailable = errors.New("wallet service call failed")

	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	ErrIdempotencyConflict    = errors.New("idempotency key already used with different payload")

	ErrLedgerInvariantBroken = errors.New("ledger invariant violated")
)

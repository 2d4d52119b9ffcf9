package staker

import "errors"

var (
	ErrDeadlinePassed      = errors.New("staking period has ended")
	ErrDeadlineNotReached  = errors.New("deadline not reached")
	ErrAlreadyExecuted     = errors.New("already executed")
	ErrExecutionInProgress = errors.New("execution in progress")
	ErrWithdrawalsNotOpen  = errors.New("withdrawals not available")
	ErrNothingToWithdraw   = errors.New("nothing to withdraw")
	ErrZeroAmount          = errors.New("stake amount must be positive")
	ErrForwardFailed       = errors.New("forward to beneficiary failed")
	ErrTransferFailed      = errors.New("withdraw transfer failed")
	ErrInvalidConfig       = errors.New("invalid pool config")
)

package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/iliyamo/parking-ledger/internal/lock"
	"github.com/iliyamo/parking-ledger/internal/repository"
)

// classify converts any error into a typed *Error.  Unexpected errors are
// logged with their cause and reported as ErrInternal.
func classify(log *zerolog.Logger, op string, err error) error {
	var typed *Error
	switch {
	case errors.As(err, &typed):
		log.Debug().Str("op", op).Str("code", typed.Code).Msg("operation rejected")
		return typed
	case errors.Is(err, lock.ErrTimeout), errors.Is(err, repository.ErrBusy),
		errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		log.Warn().Err(err).Str("op", op).Msg("operation timed out")
		return ErrBusy.with(err)
	case errors.Is(err, repository.ErrInsufficientFunds):
		return ErrInsufficientBalance.with(err)
	case errors.Is(err, repository.ErrVersionConflict):
		// lost a race detected at commit
		if op == "park" {
			return ErrSlotTaken.with(err)
		}
		return ErrStaleSlot.with(err)
	case errors.Is(err, repository.ErrOccupantExists):
		return ErrAlreadyParked.with(err)
	case errors.Is(err, repository.ErrDuplicate):
		return ErrDuplicateUser.with(err)
	}
	log.Error().Err(err).Str("op", op).Msg("operation failed")
	return ErrInternal.with(err)
}

// loggerFrom prefers the request-scoped logger stored in ctx.
func loggerFrom(ctx context.Context, fallback *zerolog.Logger) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return fallback
}

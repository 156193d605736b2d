package api

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/ruledesk/internal/types"
	"github.com/solatis/ruledesk/internal/validation"
)

// Error mapping at the gRPC boundary:
//   not found                        -> NOT_FOUND
//   validation and malformed input   -> INVALID_ARGUMENT
//   simulated and store failures     -> UNAVAILABLE
//   context timeouts                 -> DEADLINE_EXCEEDED

// invalidArgumentErrs are domain errors caused by the request content.
var invalidArgumentErrs = []error{
	types.ErrInvalidRule,
	types.ErrUnknownCategory,
	types.ErrUnknownDestination,
	types.ErrUnknownNodeKind,
	types.ErrInvalidOperator,
	types.ErrTreeTooDeep,
	types.ErrTooManyChildren,
	types.ErrTooManyInValues,
	types.ErrPathTooDeep,
	types.ErrTooManyWildcards,
	types.ErrCoercionFailed,
	types.ErrFieldNotFound,
}

// toStatus converts an internal error to a gRPC status error.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, types.ErrRuleNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, types.ErrSimulatedFailure):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	}
	for _, target := range invalidArgumentErrs {
		if errors.Is(err, target) {
			return status.Error(codes.InvalidArgument, err.Error())
		}
	}
	return status.Error(codes.Unavailable, err.Error())
}

// validationStatus reports field errors as INVALID_ARGUMENT.
func validationStatus(errs validation.FieldErrors) error {
	return status.Errorf(codes.InvalidArgument, "%s: %s", types.ErrInvalidRule, errs.Error())
}

package main

import (
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	cartapp "github.com/dwikikusuma/pos-checkout/internal/cart/app"
	catalogapp "github.com/dwikikusuma/pos-checkout/internal/catalog/app"
	checkout "github.com/dwikikusuma/pos-checkout/internal/checkout/domain"
	orderapp "github.com/dwikikusuma/pos-checkout/internal/order/app"
)

var (
	errNotRestorable  = errors.New("no restorable cart")
	errOfflineRefused = errors.New("current checkout cannot be approved offline")
)

// mapErr turns an application error into a status error so both
// transports share one error vocabulary.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, catalogapp.ErrInvalidInput),
		errors.Is(err, orderapp.ErrInvalidInput),
		errors.Is(err, cartapp.ErrInvalidEntry),
		errors.Is(err, cartapp.ErrInvalidTaxation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, catalogapp.ErrNotFound),
		errors.Is(err, orderapp.ErrNotFound),
		errors.Is(err, cartapp.ErrEntryNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, checkout.ErrNoInfo),
		errors.Is(err, checkout.ErrNoPaymentMethod),
		errors.Is(err, errNotRestorable),
		errors.Is(err, errOfflineRefused):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, checkout.ErrConnection), checkout.IsServerError(err):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

// httpStatusFromGRPC maps a status error onto an HTTP status and a stable
// error code. Anything that is not a status error is internal.
func httpStatusFromGRPC(err error) (int, string, string) {
	st, ok := status.FromError(err)
	if !ok {
		return http.StatusInternalServerError, "INTERNAL", "internal error"
	}

	switch st.Code() {
	case codes.InvalidArgument:
		return http.StatusBadRequest, "INVALID_ARGUMENT", st.Message()
	case codes.NotFound:
		return http.StatusNotFound, "NOT_FOUND", st.Message()
	case codes.FailedPrecondition:
		return http.StatusConflict, "FAILED_PRECONDITION", st.Message()
	case codes.Unavailable, codes.DeadlineExceeded:
		return http.StatusServiceUnavailable, "UNAVAILABLE", st.Message()
	default:
		return http.StatusInternalServerError, "INTERNAL", st.Message()
	}
}

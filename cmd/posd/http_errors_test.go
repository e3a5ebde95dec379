package main

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	cartapp "github.com/dwikikusuma/pos-checkout/internal/cart/app"
	catalogapp "github.com/dwikikusuma/pos-checkout/internal/catalog/app"
	checkout "github.com/dwikikusuma/pos-checkout/internal/checkout/domain"
	orderapp "github.com/dwikikusuma/pos-checkout/internal/order/app"
)

func TestHTTPStatusFromGRPC(t *testing.T) {
	t.Run("InvalidArgument -> 400", func(t *testing.T) {
		err := status.Error(codes.InvalidArgument, "bad")
		gotStatus, gotCode, _ := httpStatusFromGRPC(err)
		if gotStatus != http.StatusBadRequest || gotCode != "INVALID_ARGUMENT" {
			t.Fatalf("got (%d,%s)", gotStatus, gotCode)
		}
	})

	t.Run("NotFound -> 404", func(t *testing.T) {
		err := status.Error(codes.NotFound, "missing")
		gotStatus, gotCode, _ := httpStatusFromGRPC(err)
		if gotStatus != http.StatusNotFound || gotCode != "NOT_FOUND" {
			t.Fatalf("got (%d,%s)", gotStatus, gotCode)
		}
	})

	t.Run("FailedPrecondition -> 409", func(t *testing.T) {
		err := status.Error(codes.FailedPrecondition, "no info")
		gotStatus, gotCode, _ := httpStatusFromGRPC(err)
		if gotStatus != http.StatusConflict || gotCode != "FAILED_PRECONDITION" {
			t.Fatalf("got (%d,%s)", gotStatus, gotCode)
		}
	})

	t.Run("Unavailable -> 503", func(t *testing.T) {
		err := status.Error(codes.Unavailable, "down")
		gotStatus, gotCode, _ := httpStatusFromGRPC(err)
		if gotStatus != http.StatusServiceUnavailable || gotCode != "UNAVAILABLE" {
			t.Fatalf("got (%d,%s)", gotStatus, gotCode)
		}
	})

	t.Run("DeadlineExceeded -> 503", func(t *testing.T) {
		err := status.Error(codes.DeadlineExceeded, "timeout")
		gotStatus, gotCode, _ := httpStatusFromGRPC(err)
		if gotStatus != http.StatusServiceUnavailable || gotCode != "UNAVAILABLE" {
			t.Fatalf("got (%d,%s)", gotStatus, gotCode)
		}
	})

	t.Run("non-grpc error -> 500", func(t *testing.T) {
		err := errors.New("boom")
		gotStatus, gotCode, _ := httpStatusFromGRPC(err)
		if gotStatus != http.StatusInternalServerError || gotCode != "INTERNAL" {
			t.Fatalf("got (%d,%s)", gotStatus, gotCode)
		}
	})
}

func TestMapErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"catalog input", catalogapp.ErrInvalidInput, codes.InvalidArgument},
		{"order input", fmt.Errorf("%w: session is required", orderapp.ErrInvalidInput), codes.InvalidArgument},
		{"taxation", cartapp.ErrInvalidTaxation, codes.InvalidArgument},
		{"product missing", catalogapp.ErrNotFound, codes.NotFound},
		{"entry missing", cartapp.ErrEntryNotFound, codes.NotFound},
		{"order missing", orderapp.ErrNotFound, codes.NotFound},
		{"no info", checkout.ErrNoInfo, codes.FailedPrecondition},
		{"bad method", fmt.Errorf("%w: CASH", checkout.ErrNoPaymentMethod), codes.FailedPrecondition},
		{"offline refused", errOfflineRefused, codes.FailedPrecondition},
		{"connection", fmt.Errorf("%w: refused", checkout.ErrConnection), codes.Unavailable},
		{"server", &checkout.StatusError{Status: 502}, codes.Unavailable},
		{"unknown", errors.New("boom"), codes.Internal},
		{"already mapped", status.Error(codes.NotFound, "x"), codes.NotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := status.Code(mapErr(tt.err)); got != tt.want {
				t.Fatalf("code = %s, want %s", got, tt.want)
			}
		})
	}

	if mapErr(nil) != nil {
		t.Fatal("nil error mapped")
	}
}

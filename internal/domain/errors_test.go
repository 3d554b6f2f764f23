package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

func TestInsufficientStockError(t *testing.T) {
	err := &domain.InsufficientStockError{
		ProductID: "product-1",
		SKU:       "sku-1",
		Requested: 5,
		Available: 2,
	}

	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatal("insufficient stock error should match the sentinel")
	}
	want := "insufficient stock for sku-1: requested 5, available 2"
	if err.Error() != want {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestGatewayError_Unwrap(t *testing.T) {
	err := domain.NewGatewayError(domain.ErrCardInvalid, "Invalid CVV")

	if err.Error() != "Invalid CVV" {
		t.Fatalf("gateway error must surface the gateway message verbatim, got %q", err.Error())
	}
	if !errors.Is(err, domain.ErrCardInvalid) {
		t.Fatal("gateway error should unwrap to its cause")
	}
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		kind domain.Kind
	}{
		{domain.ErrOrderNotFound, domain.KindNotFound},
		{domain.ErrPaymentNotFound, domain.KindNotFound},
		{domain.ErrProductNotFound, domain.KindNotFound},
		{domain.ErrUnauthorized, domain.KindUnauthorized},
		{domain.ErrEmptyCart, domain.KindValidation},
		{domain.ErrUnsupportedMethod, domain.KindValidation},
		{domain.ErrInvalidAmount, domain.KindValidation},
		{domain.ErrInsufficientStock, domain.KindConflict},
		{&domain.InsufficientStockError{SKU: "sku-1", Requested: 3, Available: 1}, domain.KindConflict},
		{domain.ErrInvalidOrderTransition, domain.KindConflict},
		{domain.ErrRefundNotAllowed, domain.KindConflict},
		{domain.ErrRefundAmountExceeds, domain.KindConflict},
		{domain.ErrVersionConflict, domain.KindConflict},
		{domain.NewGatewayError(domain.ErrCardInvalid, "Card expired"), domain.KindValidation},
		{domain.NewGatewayError(nil, "Card declined by issuer"), domain.KindGateway},
		{errors.New("boom"), domain.KindInternal},
		{fmt.Errorf("load order: %w", domain.ErrOrderNotFound), domain.KindNotFound},
	}

	for _, tc := range cases {
		if got := domain.KindOf(tc.err); got != tc.kind {
			t.Errorf("KindOf(%v): expected %s, got %s", tc.err, tc.kind, got)
		}
	}
}

func TestIsVersionConflict(t *testing.T) {
	if !domain.IsVersionConflict(fmt.Errorf("save order: %w", domain.ErrVersionConflict)) {
		t.Fatal("wrapped version conflict should be detected")
	}
	if domain.IsVersionConflict(domain.ErrOrderNotFound) {
		t.Fatal("unrelated error must not be a version conflict")
	}
}

package utils

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

func TestValidatePhoneNumber(t *testing.T) {
	if err := ValidatePhoneNumber("9876543210", "IN"); err != nil {
		t.Fatalf("expected a valid indian mobile number, got %v", err)
	}
	if err := ValidatePhoneNumber("+442071838750", "IN"); err != nil {
		t.Fatalf("expected an international number to be valid, got %v", err)
	}
	for _, n := range []string{"", "123", "abcdefghij"} {
		if err := ValidatePhoneNumber(n, "IN"); err == nil {
			t.Fatalf("expected %q to be rejected", n)
		}
	}
}

func TestRegisterValidations(t *testing.T) {
	t.Setenv("PHONE_REGION", "IN")
	v := validator.New()
	if err := RegisterValidations(v); err != nil {
		t.Fatalf("RegisterValidations: %v", err)
	}
	type contact struct {
		Phone string `validate:"phone"`
	}
	if err := v.Struct(contact{Phone: "9876543210"}); err != nil {
		t.Fatalf("expected valid phone, got %v", err)
	}
	err := v.Struct(contact{Phone: "42"})
	if got := ProcessValidationErrors(err); got["Phone"] != "phone" {
		t.Fatalf("unexpected validation errors %v", got)
	}
	if got := ProcessValidationErrors(errors.New("EOF")); got["request"] != "EOF" {
		t.Fatalf("unexpected non-validation error mapping %v", got)
	}
}

func TestJwtRoundTrip(t *testing.T) {
	t.Setenv("API_SECRET", "round-trip-secret")
	t.Setenv("TOKEN_HOUR_LIFESPAN", "2")

	token, err := JwtGenerate(17, RoleAdmin)
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}
	parsed, err := JwtValidate(token)
	if err != nil || !parsed.Valid {
		t.Fatalf("JwtValidate: valid=%v err=%v", parsed != nil && parsed.Valid, err)
	}
	claim, ok := parsed.Claims.(*JwtCustomClaim)
	if !ok || claim.ID != 17 || claim.Role != RoleAdmin {
		t.Fatalf("unexpected claims %+v", parsed.Claims)
	}
	if ttl := time.Until(time.Unix(claim.ExpiresAt, 0)); ttl < time.Hour || ttl > 2*time.Hour {
		t.Fatalf("unexpected token lifespan %s", ttl)
	}

	t.Setenv("API_SECRET", "another-secret")
	if _, err := JwtValidate(token); err == nil {
		t.Fatalf("expected a token signed with another secret to be rejected")
	}
}

func TestAppErrorStatus(t *testing.T) {
	wrapped := fmt.Errorf("cancel item: %w", NewConflictError("Item already canceled"))
	appErr, ok := AsAppError(wrapped)
	if !ok || appErr.Status != http.StatusConflict || appErr.Message != "Item already canceled" {
		t.Fatalf("unexpected app error %+v ok=%v", appErr, ok)
	}
	if !IsStatus(wrapped, http.StatusConflict) || IsStatus(wrapped, http.StatusBadRequest) {
		t.Fatalf("IsStatus does not follow the wrapped status")
	}
	if IsStatus(errors.New("boom"), http.StatusInternalServerError) {
		t.Fatalf("plain errors carry no status")
	}
}

func TestMoneyAndDates(t *testing.T) {
	if got := RoundMoney(decimal.RequireFromString("10.005")); !got.Equal(decimal.RequireFromString("10.01")) {
		t.Fatalf("RoundMoney: got %s", got)
	}
	if _, err := ParseDecimal("  "); err == nil {
		t.Fatalf("ParseDecimal must reject blank input")
	}
	day := time.Date(2026, 4, 9, 15, 4, 5, 0, time.UTC)
	if got := FormatDisplayDate(day); got != "April 9, 2026" {
		t.Fatalf("FormatDisplayDate: got %q", got)
	}
	if !StartOfDay(day).Equal(time.Date(2026, 4, 9, 0, 0, 0, 0, time.UTC)) || EndOfDay(day).Sub(StartOfDay(day)) >= 24*time.Hour {
		t.Fatalf("unexpected day bounds %s %s", StartOfDay(day), EndOfDay(day))
	}
	if got := UniqueSlice([]int{3, 1, 3, 2, 1}); len(got) != 3 || got[0] != 3 || got[2] != 2 {
		t.Fatalf("UniqueSlice: got %v", got)
	}
}

func TestUserLockWithoutRedis(t *testing.T) {
	release, err := UserLock(context.Background(), 7, "lock:wallet", "helper_test", "TestUserLockWithoutRedis")
	if !IsStatus(err, http.StatusServiceUnavailable) {
		t.Fatalf("expected 503 before redis is connected, got %v", err)
	}
	release()
}

func TestDereferencePtr(t *testing.T) {
	ref := "42"
	if got := DereferencePtr(&ref); got != "42" {
		t.Fatalf("expected 42, got %q", got)
	}
	if got := DereferencePtr[string](nil); got != "" {
		t.Fatalf("expected the zero value, got %q", got)
	}
	if got := DereferencePtr[int](nil, 9); got != 9 {
		t.Fatalf("expected the default, got %d", got)
	}
}

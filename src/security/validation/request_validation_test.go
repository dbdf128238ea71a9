package validation

import (
	"strings"
	"testing"
)

type createProductRequest struct {
	Name     string  `validate:"required"`
	Category string  `validate:"required,category"`
	Price    float64 `validate:"gte=0"`
}

type paymentRequest struct {
	Method string `validate:"required,payment_method"`
}

// TestValidateStruct exercises the stock tags and the custom category and
// payment method validators.
func TestValidateStruct(t *testing.T) {
	ok := createProductRequest{Name: "Milk 1L", Category: "Food", Price: 11.50}
	if errs := ValidateStruct(ok); len(errs) != 0 {
		t.Errorf("expected a valid payload to pass, got %+v", errs)
	}

	bad := createProductRequest{Name: "", Category: "Gadgets", Price: -1}
	errs := ValidateStruct(bad)
	if len(errs) != 3 {
		t.Fatalf("expected 3 failures, got %d: %+v", len(errs), errs)
	}
	tags := map[string]string{}
	for _, e := range errs {
		tags[e.FailedField] = e.Tag
	}
	if tags["createProductRequest.Name"] != "required" {
		t.Errorf("expected Name to fail required, got %v", tags)
	}
	if tags["createProductRequest.Category"] != "category" {
		t.Errorf("expected Category to fail the category tag, got %v", tags)
	}
	if tags["createProductRequest.Price"] != "gte" {
		t.Errorf("expected Price to fail gte, got %v", tags)
	}

	if errs := ValidateStruct(paymentRequest{Method: "cash"}); len(errs) != 0 {
		t.Errorf("expected cash to be a valid payment method, got %+v", errs)
	}
	if errs := ValidateStruct(paymentRequest{Method: "voucher"}); len(errs) != 1 || errs[0].Tag != "payment_method" {
		t.Errorf("expected voucher rejected by the payment_method tag, got %+v", errs)
	}
}

// TestFormatErrors flattens failures into the single message handlers return.
func TestFormatErrors(t *testing.T) {
	if got := FormatErrors(nil); got != "" {
		t.Errorf("expected empty message for no failures, got %q", got)
	}

	msg := FormatErrors(ValidateStruct(createProductRequest{Name: "", Category: "Gadgets", Price: -1}))
	if !strings.HasPrefix(msg, "validation failed: ") {
		t.Errorf("expected the validation failed prefix, got %q", msg)
	}
	if !strings.Contains(msg, "createProductRequest.Name failed required") {
		t.Errorf("expected the required failure in the message, got %q", msg)
	}
	if !strings.Contains(msg, "; ") {
		t.Errorf("expected failures joined with semicolons, got %q", msg)
	}
	if !strings.Contains(msg, "gte=0") {
		t.Errorf("expected the tag parameter in the message, got %q", msg)
	}
}

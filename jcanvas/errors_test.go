package jcanvas

import (
	"errors"
	"fmt"
	"testing"

	"github.com/leijurv/jpegtools_go/jpegcoef"
)

func TestErrorKinds(t *testing.T) {
	testCases := []struct {
		err  error
		kind Kind
		is   error
	}{
		{newError(KindGeometry, "draw", "bad"), KindGeometry, ErrGeometry},
		{incompatible("add image", ReasonSampling), KindIncompatible, ErrIncompatible},
		{codecError("add image", jpegcoef.NewError(jpegcoef.CodeArithmeticCoding, "x")), KindUnsupported, ErrUnsupported},
		{codecError("add image", jpegcoef.NewError(jpegcoef.CodeShortRead, "x")), KindInput, ErrInput},
		{fmt.Errorf("wrapped: %w", newError(KindState, "draw", "x")), KindState, ErrState},
		{newError(KindOutput, "save", "x"), KindOutput, ErrOutput},
	}
	for _, tc := range testCases {
		t.Run(tc.kind.String(), func(t *testing.T) {
			if got := KindOf(tc.err); got != tc.kind {
				t.Errorf("KindOf = %v, want %v", got, tc.kind)
			}
			if !errors.Is(tc.err, tc.is) {
				t.Errorf("errors.Is(%v, %v) = false", tc.err, tc.is)
			}
			if errors.Is(tc.err, ErrIncomplete) {
				t.Errorf("%v matches an unrelated sentinel", tc.err)
			}
		})
	}
	if KindOf(errors.New("other")) != 0 {
		t.Errorf("KindOf on a foreign error is not zero")
	}
}

func TestErrorMessage(t *testing.T) {
	err := codecError("add image", jpegcoef.NewError(jpegcoef.CodeSyntaxError, "not a JPEG"))
	want := "jcanvas: add image: decoding failed: SyntaxError: not a JPEG"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	var ce *jpegcoef.Error
	if !errors.As(err, &ce) || ce.Code != jpegcoef.CodeSyntaxError {
		t.Errorf("Codec error not reachable through Unwrap")
	}
	if got := incompatible("add image", ReasonQuantValues).Error(); got != "jcanvas: add image: image has different quantization tables" {
		t.Errorf("Incompatible message: %q", got)
	}
}

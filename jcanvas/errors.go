package jcanvas

import (
	"errors"
	"fmt"

	"github.com/leijurv/jpegtools_go/jpegcoef"
)

// Kind classifies canvas errors
type Kind int

const (
	// KindInput is an open or parse failure
	KindInput Kind = iota + 1
	// KindUnsupported is a JPEG feature that cannot be block-copied
	KindUnsupported
	// KindIncompatible is an image that cannot share blocks with the first one
	KindIncompatible
	// KindGeometry is a misaligned or out-of-bounds draw
	KindGeometry
	// KindIncomplete is a finalize with unfilled cells
	KindIncomplete
	// KindCodecFatal is a codec contract violation caught in a guarded operation
	KindCodecFatal
	// KindState is an operation not valid in the canvas' current state
	KindState
	// KindOutput is a failure writing the result or the spilled working
	// storage
	KindOutput
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input error"
	case KindUnsupported:
		return "unsupported format"
	case KindIncompatible:
		return "incompatible image"
	case KindGeometry:
		return "geometry error"
	case KindIncomplete:
		return "incomplete canvas"
	case KindCodecFatal:
		return "codec fatal error"
	case KindState:
		return "invalid state"
	case KindOutput:
		return "output error"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Reason refines KindIncompatible
type Reason int

const (
	ReasonNone Reason = iota
	ReasonColorSpace
	ReasonComponentCount
	ReasonUnknownColorSpace
	ReasonSampling
	ReasonQuantIndex
	ReasonQuantValues
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonColorSpace:
		return "image has a different color space"
	case ReasonComponentCount:
		return "image has a different number of components"
	case ReasonUnknownColorSpace:
		return "can't combine images with unknown color spaces"
	case ReasonSampling:
		return "image has different subsampling"
	case ReasonQuantIndex:
		return "components use different quantization table indexes"
	case ReasonQuantValues:
		return "image has different quantization tables"
	default:
		return fmt.Sprintf("Reason(%d)", int(r))
	}
}

// Sentinel errors, one per Kind, for use with errors.Is
var (
	ErrInput        = errors.New("jcanvas: input error")
	ErrUnsupported  = errors.New("jcanvas: unsupported format")
	ErrIncompatible = errors.New("jcanvas: incompatible image")
	ErrGeometry     = errors.New("jcanvas: geometry error")
	ErrIncomplete   = errors.New("jcanvas: incomplete canvas")
	ErrCodecFatal   = errors.New("jcanvas: codec fatal error")
	ErrState        = errors.New("jcanvas: invalid state")
	ErrOutput       = errors.New("jcanvas: output error")
)

func (k Kind) sentinel() error {
	switch k {
	case KindInput:
		return ErrInput
	case KindUnsupported:
		return ErrUnsupported
	case KindIncompatible:
		return ErrIncompatible
	case KindGeometry:
		return ErrGeometry
	case KindIncomplete:
		return ErrIncomplete
	case KindCodecFatal:
		return ErrCodecFatal
	case KindState:
		return ErrState
	case KindOutput:
		return ErrOutput
	}
	return nil
}

// Error is returned by every failing canvas operation
type Error struct {
	Kind    Kind
	Reason  Reason
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := "jcanvas: " + e.Op + ": " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's Kind
func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

func newError(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

func incompatible(op string, r Reason) *Error {
	return &Error{Kind: KindIncompatible, Reason: r, Op: op, Message: r.String()}
}

// codecError converts a jpegcoef error into a canvas error
func codecError(op string, err error) *Error {
	kind := KindInput
	if jpegcoef.IsUnsupported(err) {
		kind = KindUnsupported
	}
	msg := "decoding failed"
	if kind == KindUnsupported {
		msg = "unsupported JPEG"
	}
	return &Error{Kind: kind, Op: op, Message: msg, Err: err}
}

// KindOf returns the Kind of err, or 0 if err is not a canvas error
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

package javaio

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

// Fault kinds. Stream faults match one of these with errors.Is from
// github.com/cockroachdb/errors, so callers can tell bad bytes apart from
// an object that failed its own invariants or a type nobody registered. An
// invariant violation keeps its cause.
var (
	// ErrStreamCorrupted reports a malformed tag sequence, an illegal field
	// order or conflicting descriptor flags. Always fatal to the read.
	ErrStreamCorrupted = errors.New("stream corrupted")
	// ErrInvalidClass reports a descriptor that cannot be bound to the local
	// class, such as a serialVersionUID mismatch.
	ErrInvalidClass = errors.New("invalid class")
	// ErrClassNotFound reports a class name with no local registration.
	ErrClassNotFound = errors.New("class not found")
	// ErrInvalidObject reports staged data rejected by a validating factory.
	ErrInvalidObject = errors.New("invalid object")
	// ErrNotSerializable reports a type that declares neither the field
	// based nor the externally formatted protocol.
	ErrNotSerializable = errors.New("not serializable")
	// ErrNotActive reports use of a PutArg or GetArg outside the call it
	// was created for.
	ErrNotActive = errors.New("not active")
	// ErrOptionalData reports primitive data where an object was expected,
	// or the end of a class's optional data.
	ErrOptionalData = errors.New("optional data")
	// ErrWriteAborted is matched by *WriteAbortedError.
	ErrWriteAborted = errors.New("writing aborted")
	// ErrFieldsNotWritten reports staged field values that were never
	// committed with PutArg.WriteArgs.
	ErrFieldsNotWritten = errors.New("staged fields not written")
	// ErrStreamBroken is returned by an Encoder after a failed top-level
	// write, until Reset.
	ErrStreamBroken = errors.New("stream broken")
	// ErrLimitExceeded reports a depth, length or size beyond the
	// configured limits.
	ErrLimitExceeded = errors.New("limit exceeded")
	// ErrPolicyDenied reports a descriptor rejected by the decoder Policy.
	ErrPolicyDenied = errors.New("denied by policy")
)

func streamCorrupted(format string, args ...any) error {
	return errors.Wrapf(ErrStreamCorrupted, format, args...)
}

func invalidClass(name string, format string, args ...any) error {
	return errors.Wrapf(ErrInvalidClass, "%s: %s", name, fmt.Sprintf(format, args...))
}

func notSerializable(v any) error {
	return errors.Wrapf(ErrNotSerializable, "%T", v)
}

func limitExceeded(what string, n, limit int64) error {
	return errors.Wrapf(ErrLimitExceeded, "%s %d exceeds %d", what, n, limit)
}

// invalidObject marks cause as an invariant violation of class name while
// keeping cause reachable through errors.Is. The mark is only visible to
// errors.Is from github.com/cockroachdb/errors.
func invalidObject(name string, cause error) error {
	if errors.Is(cause, ErrInvalidObject) {
		return cause
	}
	return errors.Wrapf(errors.Mark(cause, ErrInvalidObject), "%s", name)
}

// InvalidObjectf builds an invariant violation for use inside factories.
func InvalidObjectf(format string, args ...any) error {
	return errors.Wrapf(ErrInvalidObject, format, args...)
}

// WriteAbortedError is returned by a Decoder that meets a TC_EXCEPTION
// marker. Detail holds the failure record the writer managed to emit.
type WriteAbortedError struct {
	Detail any
}

func (e *WriteAbortedError) Error() string {
	if f, ok := e.Detail.(*WriteFailure); ok {
		return fmt.Sprintf("writing aborted: %s", f.Message)
	}
	return fmt.Sprintf("writing aborted: %v", e.Detail)
}

func (e *WriteAbortedError) Is(target error) bool {
	return target == ErrWriteAborted
}

// ClassNotFoundFault is staged in place of an object whose class could not
// be resolved. It keeps handle numbering intact; reading it through a GetArg
// or as the root of a graph yields ErrClassNotFound.
type ClassNotFoundFault struct {
	ClassName string
}

func (f *ClassNotFoundFault) Err() error {
	return errors.Wrapf(ErrClassNotFound, "%s", f.ClassName)
}

type multiErrors struct {
	errs []error
}

func (e multiErrors) Error() string {
	final := e.errs[0]
	for i := 1; i < len(e.errs); i++ {
		final = errors.Wrap(e.errs[i], final.Error())
	}
	return final.Error()
}

func (e multiErrors) Unwrap() error {
	if len(e.errs) <= 1 {
		return nil
	}
	if len(e.errs) == 2 {
		return e.errs[1]
	}
	return multiErrors{errs: e.errs[1:]}
}

func (e multiErrors) Is(err error) bool {
	for _, item := range e.errs {
		if errors.Is(item, err) {
			return true
		}
	}
	return false
}

// combine merges errors so that none of them is lost; nils are dropped.
func combine(errs ...error) error {
	errs = lo.Filter(errs, func(err error, _ int) bool { return err != nil })
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	}
	return multiErrors{errs: errs}
}

// Package fault classifies sponsor errors into a small set of stable kinds.
//
// Every package in this module declares its sentinel errors as *fault.Error
// values. Callers match a specific failure with errors.Is against the
// sentinel and classify an arbitrary wrapped chain with KindOf / CodeOf.
package fault

import (
	"errors"
	"net/http"
)

// Kind is the machine-readable category of a failure.
type Kind uint8

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
	KindCapacity
	KindNotFound
	KindStorage
	KindPublish
)

var kindNames = map[Kind]string{
	KindInternal:       "InternalError",
	KindValidation:     "ValidationError",
	KindAuthentication: "AuthenticationError",
	KindAuthorization:  "AuthorizationError",
	KindCapacity:       "CapacityError",
	KindNotFound:       "NotFoundError",
	KindStorage:        "StorageError",
	KindPublish:        "PublishError",
}

// String returns the kind name, e.g. "CapacityError".
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[KindInternal]
}

// HTTPStatus maps a kind to the status code the HTTP layer should return.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindCapacity:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindPublish:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified failure. Code is stable across releases
// (e.g. "UsageCapExceeded"); Message is for humans.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

// New creates a classified error. Intended for package-level sentinels.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func (e *Error) Error() string { return e.Message }

// KindOf returns the kind of the first *Error in err's chain.
// Unclassified errors are KindInternal.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindInternal
}

// CodeOf returns the code of the first *Error in err's chain, or
// "InternalError" for unclassified errors and "" for nil.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return kindNames[KindInternal]
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

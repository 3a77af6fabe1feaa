package catalog

import (
	"errors"
	"net/http"

	"github.com/mesh-intelligence/larder/pkg/types"
)

// StatusCode maps an operation error to the HTTP status an API boundary
// returns for it. A nil error maps to 200.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrValidation),
		errors.Is(err, types.ErrDuplicateKey),
		errors.Is(err, types.ErrReferentialIntegrity),
		errors.Is(err, types.ErrUnknownReferenceKind),
		errors.Is(err, types.ErrUnknownCollection),
		errors.Is(err, types.ErrVetoed):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// SuccessCode returns the status of a successful call made with method:
// PUT (add) is 201, DELETE is 204, GET and PATCH are 200.
func SuccessCode(method string) int {
	switch method {
	case http.MethodPut:
		return http.StatusCreated
	case http.MethodDelete:
		return http.StatusNoContent
	default:
		return http.StatusOK
	}
}

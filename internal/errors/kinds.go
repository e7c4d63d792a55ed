package errors

import "net/http"

// Kind is a categorized sentinel error. Packages declare their sentinels with
// NewKind and wrap them with the builder so callers can use errors.Is.
type Kind struct {
	name     string
	category ErrorCategory
}

// NewKind declares a sentinel error of the given category.
func NewKind(name string, category ErrorCategory) *Kind {
	return &Kind{name: name, category: category}
}

func (k *Kind) Error() string                { return k.name }
func (k *Kind) ErrorCategory() ErrorCategory { return k.category }

// HTTPStatus maps an error to the HTTP status code the API answers with.
//
//	validation      -> 400
//	not-found       -> 404
//	conflict        -> 409
//	limit           -> 429
//	everything else -> 500
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch CategoryOf(err) {
	case CategoryValidation:
		return http.StatusBadRequest
	case CategoryNotFound:
		return http.StatusNotFound
	case CategoryConflict:
		return http.StatusConflict
	case CategoryLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

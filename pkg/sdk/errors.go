package cwfsearch

import "github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrValidation           = domain.ErrValidation
	ErrEmbeddingUnavailable = domain.ErrEmbeddingUnavailable
	ErrStoreUnavailable     = domain.ErrStoreUnavailable
	ErrDimensionMismatch    = domain.ErrDimensionMismatch
	ErrUnsupportedOperator  = domain.ErrUnsupportedOperator
)

// ErrorCode returns the stable error code for err, as reported by the HTTP API.
func ErrorCode(err error) string {
	return domain.Code(err)
}

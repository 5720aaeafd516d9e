package usecase

import (
	"errors"
	"fmt"
	"strings"

	"CandleSync/internal/domain/models"
)

// Error kinds of a synchronization run. Validation, watermark, insert and
// unexpected errors abort the run; fetch and transform errors are recorded
// per request.
var (
	ErrValidation     = errors.New("validation error")
	ErrWatermarkQuery = errors.New("watermark query error")
	ErrFetch          = errors.New("fetch error")
	ErrTransform      = errors.New("transform error")
	ErrInsert         = errors.New("insert error")
	ErrUnexpected     = errors.New("unexpected error")
)

// SyncError carries the kind of a failure and the context needed to diagnose it.
type SyncError struct {
	Kind   error
	Series *models.SeriesKey
	Size   int    // requested candle count, or attempted record count for inserts
	Target string // write target or failing parameter
	Err    error
}

func (e *SyncError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Series != nil {
		fmt.Fprintf(&b, " (%s, %s, %d)", e.Series.Symbol, e.Series.Period, e.Size)
	} else if e.Kind == ErrInsert {
		fmt.Fprintf(&b, " (%d records", e.Size)
		if e.Target != "" {
			fmt.Fprintf(&b, " into %s", e.Target)
		}
		b.WriteString(")")
	} else if e.Target != "" {
		fmt.Fprintf(&b, " (%s)", e.Target)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *SyncError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func validationError(param string, value int) error {
	return &SyncError{Kind: ErrValidation, Target: param, Err: fmt.Errorf("%s must be positive, got %d", param, value)}
}

func requestError(kind error, req models.FetchRequest, err error) error {
	series := req.Series
	return &SyncError{Kind: kind, Series: &series, Size: req.Count, Err: err}
}

// IsFatal reports whether err aborts a run.
func IsFatal(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrWatermarkQuery) || errors.Is(err, ErrInsert) || errors.Is(err, ErrUnexpected)
}

// ErrorKind returns a short label for metrics.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrWatermarkQuery):
		return "watermark"
	case errors.Is(err, ErrFetch):
		return "fetch"
	case errors.Is(err, ErrTransform):
		return "transform"
	case errors.Is(err, ErrInsert):
		return "insert"
	case errors.Is(err, ErrUnexpected):
		return "unexpected"
	default:
		return "unknown"
	}
}

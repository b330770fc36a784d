package fetch

import (
	"errors"
	"fmt"

	"github.com/f5703swl/swl-web-sdr/internal/sources"
)

var (
	// ErrFetch matches any *FetchError.
	ErrFetch = errors.New("fetch failed")
	// ErrUnsupportedFormat matches any *UnsupportedFormatError.
	ErrUnsupportedFormat = errors.New("unsupported format")
)

// FetchError reports a transport failure, a non-success status or an
// undecodable body for one source.
type FetchError struct {
	Source     string
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s (%s): unexpected status %d", e.Source, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s (%s): %v", e.Source, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// UnsupportedFormatError is a configuration bug: the source declares a format
// with no registered parser.
type UnsupportedFormatError struct {
	Source string
	Format sources.Format
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("source %s: unsupported data type %q", e.Source, e.Format)
}

func (e *UnsupportedFormatError) Is(target error) bool { return target == ErrUnsupportedFormat }

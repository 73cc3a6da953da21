package gaijin

import "fmt"

// Cause classifies why a fetch failed.
type Cause string

const (
	CauseNetwork       Cause = "network"
	CauseHttpStatus    Cause = "http-status"
	CauseParse         Cause = "parse"
	CauseSolverTimeout Cause = "solver-timeout"
	CauseSolverError   Cause = "solver-error"
)

// FetchError aborts a whole fetch, no partial results are ever returned
// alongside it.
type FetchError struct {
	Cause Cause
	URL   string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Cause, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ParseWarning is reported when a page parses into zero entries, the page is
// treated as empty.
type ParseWarning struct {
	URL  string
	Page int
}

func (w ParseWarning) Error() string {
	return fmt.Sprintf("page %d (%s) has no entries", w.Page, w.URL)
}

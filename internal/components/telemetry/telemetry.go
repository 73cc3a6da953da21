package telemetry

import (
	"fmt"
)

// API is what every component reports through instead of logging directly,
// tests swap it for a Recorder to assert on what was reported.
type API interface {
	// ReportBroken reports a failure that needs someone to look at it.
	//
	// `id` names the failing component and operation (ex. `fetcher.page`),
	// never a specific line. Ids are lowercase, dashes separate words and a
	// dot separates the component from its operation. Each package declares
	// its ids as `report_...` constants.
	ReportBroken(id string, params ...any)

	// ReportWarning reports something unexpected that the component could
	// recover from, ex. a catalog page without any packs.
	ReportWarning(id string, params ...any)

	// ReportDebug is only visible with verbose logging.
	ReportDebug(msg string, params ...any)

	// ReportCount records a gauge like sample, ex. the number of entries of
	// a fetch. Samples are not summed.
	ReportCount(id string, count int64)
}

// ScopedAPI prefixes every id (and debug message) with a namespace, so
// packages only need to name their own operations.
type ScopedAPI struct {
	namespace string
	inner     API
}

func NewScopedAPI(namespace string, inner API) ScopedAPI {
	return ScopedAPI{namespace: namespace, inner: inner}
}

func (s ScopedAPI) scoped(id string) string {
	return fmt.Sprintf("%s: %s", s.namespace, id)
}

func (s ScopedAPI) ReportBroken(id string, params ...any) {
	s.inner.ReportBroken(s.scoped(id), params...)
}

func (s ScopedAPI) ReportWarning(id string, params ...any) {
	s.inner.ReportWarning(s.scoped(id), params...)
}

func (s ScopedAPI) ReportDebug(msg string, params ...any) {
	s.inner.ReportDebug(s.scoped(msg), params...)
}

func (s ScopedAPI) ReportCount(id string, count int64) {
	s.inner.ReportCount(s.scoped(id), count)
}

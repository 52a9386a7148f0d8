// Package repositories contains the Postgres data access layer. Every
// repository receives its database handle and logger through its
// constructor; queries are built with go-sqlbuilder, never concatenated.
package repositories

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
)

// NotFound returns a 404 HTTP error with a descriptive message
func NotFound(format string, args ...any) error {
	return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf(format, args...))
}

// BadRequest returns a 400 HTTP error
func BadRequest(message string) error {
	return httperror.NewHTTPError(http.StatusBadRequest, message)
}

// MonthBounds returns the first day of the month containing t and the first
// day of the following month, both at midnight UTC. Usage and report queries
// filter on [start, end).
func MonthBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// DateString formats a time as the calendar-date literal the DATE columns
// expect.
func DateString(t time.Time) string {
	return t.Format("2006-01-02")
}

// Package apperr defines the error classes shared by the record and
// attachment layers.
package apperr

import (
	"strings"

	"github.com/zeebo/errs"
)

var (
	// Configuration marks a definition problem detected while building the engine.
	Configuration = errs.Class("configuration")
	// NoDatabaseConnection marks an environment or tenant resolution failure.
	NoDatabaseConnection = errs.Class("no database connection")
	// BadRequest marks malformed caller input.
	BadRequest = errs.Class("bad request")
	// Store marks a document store failure.
	Store = errs.Class("store")
	// Blob marks a blob store failure.
	Blob = errs.Class("blob")
	// NotFound marks a missing record or blob. It is usually wrapped by Store or Blob.
	NotFound = errs.Class("not found")
)

var classes = []*errs.Class{
	&Configuration,
	&NoDatabaseConnection,
	&BadRequest,
	&Store,
	&Blob,
	&NotFound,
}

// IsNotFound reports whether err carries the NotFound class anywhere in its chain.
func IsNotFound(err error) bool {
	return NotFound.Has(err)
}

// Kind returns the outermost class name of err, or "internal" when err is unclassified.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, class := range classes {
		if class.Has(err) && strings.HasPrefix(msg, string(*class)+": ") {
			return string(*class)
		}
	}
	for _, class := range classes {
		if class.Has(err) {
			return string(*class)
		}
	}
	return "internal"
}

// Message returns the human readable message of err with the class
// prefixes removed.
func Message(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for {
		stripped := false
		for _, class := range classes {
			prefix := string(*class) + ": "
			if strings.HasPrefix(msg, prefix) {
				msg = strings.TrimPrefix(msg, prefix)
				stripped = true
			}
		}
		if !stripped {
			break
		}
	}
	return msg
}

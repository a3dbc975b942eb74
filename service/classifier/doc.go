// Package classifier maps a proposed agent action plus contextual signals to
// a risk classification.  Classification is a pure function of its inputs so
// that callers can safely re-classify during retries and always observe the
// same verdict.
package classifier

package fetch

import (
	"context"
	"errors"
	"net"

	"github.com/crawlai/crawl-engine/app/apperr"
)

// Classify maps a transport error onto the fetch taxonomy. Errors that
// already carry a kind pass through unchanged.
func Classify(err error, url string) *apperr.FetchError {
	var fe *apperr.FetchError
	if errors.As(err, &fe) {
		return fe
	}

	switch {
	case errors.Is(err, context.Canceled):
		return apperr.NewFetchError(apperr.Cancelled, url, err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperr.NewFetchError(apperr.Timeout, url, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperr.NewFetchError(apperr.Timeout, url, err)
	}

	return apperr.NewFetchError(apperr.NetworkFailure, url, err)
}

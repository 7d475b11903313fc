package providers

import (
	"context"
	"errors"
	"fmt"

	"tradeshare/internal/model"
	"tradeshare/internal/sdmx"
)

// ErrFetch matches every *FetchError via errors.Is.
var ErrFetch = errors.New("fetch failed")

type Provider interface {
	Name() string
	ListReporters(ctx context.Context) ([]model.Reporter, error)
	FetchPartnerShares(ctx context.Context, reporterISO3 string, flow model.Flow, year int) (*sdmx.Document, error)
}

// FetchError reports a failed partner-share request for one reporter and
// direction. Callers record the pair as having no data and move on.
type FetchError struct {
	Provider string
	Reporter string
	Flow     model.Flow
	Err      error
}

func NewFetchError(provider, reporter string, flow model.Flow, err error) *FetchError {
	return &FetchError{Provider: provider, Reporter: reporter, Flow: flow, Err: err}
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: fetch reporter=%s flow=%s: %v", e.Provider, e.Reporter, e.Flow, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) Is(target error) bool {
	return target == ErrFetch
}

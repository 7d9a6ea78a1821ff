package authsession

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/singleflight"
)

const refreshKey = "refresh"

// RefreshOrchestrator makes sure at most one refresh is in flight. Callers
// that arrive while a refresh is running wait for it and share its result.
type RefreshOrchestrator struct {
	refresher Refresher
	group     singleflight.Group
}

func NewRefreshOrchestrator(r Refresher) *RefreshOrchestrator {
	return &RefreshOrchestrator{refresher: r}
}

// Refresh calls the Refresher through the single flight.
func (o *RefreshOrchestrator) Refresh(ctx context.Context) (RefreshResult, bool, error) {
	return o.Do(ctx, o.exchange)
}

// Do runs fn as the single flight, or joins the one already running, in
// which case fn is not called. ctx only bounds the wait; fn gets a context
// that is never cancelled so a started refresh completes for everyone
// sharing it. shared reports whether the result went to more than one caller.
func (o *RefreshOrchestrator) Do(
	ctx context.Context,
	fn func(context.Context) (RefreshResult, error),
) (res RefreshResult, shared bool, err error) {
	detached := context.WithoutCancel(ctx)
	ch := o.group.DoChan(refreshKey, func() (any, error) {
		return fn(detached)
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			return RefreshResult{}, r.Shared, r.Err
		}
		return r.Val.(RefreshResult), r.Shared, nil
	case <-ctx.Done():
		return RefreshResult{}, false, ctx.Err()
	}
}

// exchange performs one refresh request and normalises its failure.
func (o *RefreshOrchestrator) exchange(ctx context.Context) (RefreshResult, error) {
	if o.refresher == nil {
		return RefreshResult{}, fmt.Errorf("%w: no refresher configured", ErrRefreshFailed)
	}

	res, err := o.refresher.Refresh(ctx)
	if err == nil && res.AccessToken == "" {
		err = errors.New("empty access token in refresh response")
	}
	if err != nil {
		return RefreshResult{}, fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	return res, nil
}

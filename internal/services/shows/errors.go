package shows

import "errors"

var (
	// ErrShowNotFound is returned when a show lookup misses.
	ErrShowNotFound = errors.New("show not found")

	// ErrDuplicateFeed is returned when subscribing to a feed URL that is
	// already tracked.
	ErrDuplicateFeed = errors.New("feed already subscribed")

	// ErrInvalidFeedURL is returned for subscription requests whose URL is
	// not an absolute http or https URL.
	ErrInvalidFeedURL = errors.New("invalid feed url")
)

package ethevents

import (
	"errors"
	"fmt"
)

// Parse failure classes. A ParseError carries one of them together with the
// event kind that failed.
var (
	ErrMissingData          = errors.New("missing data")
	ErrBadDataLength        = errors.New("bad data length")
	ErrWrongTopicCount      = errors.New("wrong topic count")
	ErrBadTopicLength       = errors.New("bad topic length")
	ErrDataOverflow         = errors.New("data overflow")
	ErrShouldOnlyHaveTopics = errors.New("event should only contain topics")
	ErrBadRefLength         = errors.New("bad external ref length")

	ErrUnknownEvent = errors.New("unknown event signature")
	ErrNoTopics     = errors.New("log has no topics")
)

type ParseError struct {
	Event ValidEvent
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s event: %v", e.Event, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func parseErr(ev ValidEvent, err error) error {
	return &ParseError{Event: ev, Err: err}
}

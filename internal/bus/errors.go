package bus

import "errors"

var (
	// ErrSealed indicates Subscribe was called after the first Publish.
	ErrSealed = errors.New("bus: topic sealed after first publish")

	// ErrDuplicateSubscriber indicates a subscription name is already taken.
	ErrDuplicateSubscriber = errors.New("bus: duplicate subscriber")

	// ErrTooManySubscribers indicates MaxSubscribers was reached.
	ErrTooManySubscribers = errors.New("bus: too many subscribers")

	// ErrClosed indicates the topic was closed and the subscription drained.
	ErrClosed = errors.New("bus: topic closed")
)

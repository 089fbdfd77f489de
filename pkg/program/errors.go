package program

import "tweetledger/pkg/errors"

// ErrorCodeOffset is the first code used by program-defined errors.
const ErrorCodeOffset = 300

var (
	ErrTopicTooLong   = errors.Custom(ErrorCodeOffset, "TopicTooLong", "The provided Topic should be 50 Characters long Maximum")
	ErrContentTooLong = errors.Custom(ErrorCodeOffset+1, "ContentTooLong", "The provided Content should be 280 Characters long Maximum")
)

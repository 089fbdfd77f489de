package program

import (
	"unicode/utf8"

	"tweetledger/pkg"
	"tweetledger/pkg/errors"
	"tweetledger/pkg/ledger"
)

// SendTweet writes a tweet by author into tweet, the data of a freshly
// initialized tweet account. Nothing is written unless every check passes.
//
// The caller guarantees that tweet belongs to a rent exempt tweet account and
// that author signed the call.
func SendTweet(tweet []byte, author pkg.PublicKey, clock ledger.Clock, topic, content string) error {
	// Characters, not bytes.
	if utf8.RuneCountInString(topic) > pkg.MaxTopicChars {
		return ErrTopicTooLong
	}
	if utf8.RuneCountInString(content) > pkg.MaxContentChars {
		return ErrContentTooLong
	}
	if len(tweet) != pkg.TweetLength {
		return errors.Constraint(errors.KindConstraintSpace, "tweet", "account is not sized for a tweet")
	}

	now, err := clock.UnixTimestamp()
	if err != nil {
		return errors.Wrap(errors.PhaseExecute, errors.KindClockUnavailable, err, "read clock")
	}

	image, err := pkg.EncodeTweet(&pkg.Tweet{
		Author:    author,
		Timestamp: now,
		Topic:     topic,
		Content:   content,
	})
	if err != nil {
		return err
	}

	copy(tweet, image)
	return nil
}

package pkg

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"tweetledger/pkg/errors"
)

// Tweet is the record stored in a tweet account.
type Tweet struct {
	Author    PublicKey `json:"author"`
	Timestamp int64     `json:"timestamp"`
	Topic     string    `json:"topic"`
	Content   string    `json:"content"`
}

// TweetDiscriminator tags an account as holding a Tweet.
var TweetDiscriminator = AccountDiscriminator("Tweet")

// AccountDiscriminator returns the 8-byte type tag for an account type name.
func AccountDiscriminator(name string) [DiscriminatorLength]byte {
	var d [DiscriminatorLength]byte
	sum := sha256.Sum256([]byte("account:" + name))
	copy(d[:], sum[:DiscriminatorLength])
	return d
}

// HasTweetDiscriminator reports whether data is tagged as a tweet account.
func HasTweetDiscriminator(data []byte) bool {
	return len(data) >= DiscriminatorLength && bytes.Equal(data[:DiscriminatorLength], TweetDiscriminator[:])
}

// EncodeTweet serializes t into a zero-padded TweetLength image, discriminator
// included. It fails if either text field exceeds its byte budget.
func EncodeTweet(t *Tweet) ([]byte, error) {
	if len(t.Topic) > MaxTopicLength {
		return nil, errors.New(errors.PhaseSerialize, errors.KindAccountDidNotSerialize).
			Account("tweet").
			Detail("topic is %d bytes, budget is %d", len(t.Topic), MaxTopicLength).
			Build()
	}
	if len(t.Content) > MaxContentLength {
		return nil, errors.New(errors.PhaseSerialize, errors.KindAccountDidNotSerialize).
			Account("tweet").
			Detail("content is %d bytes, budget is %d", len(t.Content), MaxContentLength).
			Build()
	}

	buf := make([]byte, TweetLength)
	copy(buf, TweetDiscriminator[:])
	copy(buf[AuthorOffset:], t.Author[:])
	binary.LittleEndian.PutUint64(buf[TimestampOffset:], uint64(t.Timestamp))

	off := TopicOffset
	off = putString(buf, off, t.Topic)
	putString(buf, off, t.Content)
	return buf, nil
}

func putString(buf []byte, off int, s string) int {
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(s)))
	off += StringLengthPrefix
	return off + copy(buf[off:], s)
}

// DecodeTweet parses the data of a tweet account.
func DecodeTweet(data []byte) (*Tweet, error) {
	if len(data) != TweetLength && len(data) != LegacyTweetLength {
		return nil, errors.InvalidData(errors.PhaseDecode, fmt.Sprintf("account data is %d bytes, not a tweet account", len(data)))
	}
	if !HasTweetDiscriminator(data) {
		return nil, errors.New(errors.PhaseDecode, errors.KindAccountDiscriminator).
			Account("tweet").
			Detail("account is not a tweet").
			Build()
	}

	t := &Tweet{}
	copy(t.Author[:], data[AuthorOffset:TimestampOffset])
	t.Timestamp = int64(binary.LittleEndian.Uint64(data[TimestampOffset:]))

	var err error
	off := TopicOffset
	if t.Topic, off, err = readString(data, off, MaxTopicLength, "topic"); err != nil {
		return nil, err
	}
	if t.Content, _, err = readString(data, off, MaxContentLength, "content"); err != nil {
		return nil, err
	}
	return t, nil
}

func readString(data []byte, off, limit int, field string) (string, int, error) {
	if off+StringLengthPrefix > len(data) {
		return "", off, errors.InvalidData(errors.PhaseDecode, field+": missing length prefix")
	}
	n := int(binary.LittleEndian.Uint32(data[off:]))
	off += StringLengthPrefix
	if n > limit || off+n > len(data) {
		return "", off, errors.InvalidData(errors.PhaseDecode, fmt.Sprintf("%s: length %d out of bounds", field, n))
	}
	s := data[off : off+n]
	if !utf8.Valid(s) {
		return "", off, errors.InvalidData(errors.PhaseDecode, field+": invalid UTF-8")
	}
	return string(s), off + n, nil
}

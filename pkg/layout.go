package pkg

// Byte widths of the fields of a tweet account.
const (
	DiscriminatorLength = 8
	TimestampLength     = 8
	StringLengthPrefix  = 4

	// MaxBytesPerChar is the worst case UTF-8 width of a single character.
	MaxBytesPerChar = 4

	MaxTopicChars   = 50
	MaxContentChars = 280

	MaxTopicLength   = MaxTopicChars * MaxBytesPerChar
	MaxContentLength = MaxContentChars * MaxBytesPerChar

	// LegacyTopicChars is the topic budget of the first deployment, which
	// reserved room for only 42 worst case characters while accepting 50.
	LegacyTopicChars = 42
)

// TweetLength is the exact size of a tweet account.
const TweetLength = DiscriminatorLength +
	PublicKeyLength + // author
	TimestampLength + // timestamp
	StringLengthPrefix + MaxTopicLength + // topic
	StringLengthPrefix + MaxContentLength // content

// LegacyTweetLength is the size of accounts written by the first deployment.
// They remain readable by DecodeTweet.
const LegacyTweetLength = DiscriminatorLength +
	PublicKeyLength +
	TimestampLength +
	StringLengthPrefix + LegacyTopicChars*MaxBytesPerChar +
	StringLengthPrefix + MaxContentLength

// Field offsets inside a tweet account.
const (
	AuthorOffset    = DiscriminatorLength
	TimestampOffset = AuthorOffset + PublicKeyLength
	TopicOffset     = TimestampOffset + TimestampLength
)

// TweetSize returns the account size needed to hold any topic of topicChars
// characters and any content of contentChars characters. Negative caps count
// as zero, so the result is never below the fixed header and two prefixes.
func TweetSize(topicChars, contentChars int) int {
	topicChars = max(topicChars, 0)
	contentChars = max(contentChars, 0)
	return DiscriminatorLength +
		PublicKeyLength +
		TimestampLength +
		StringLengthPrefix + topicChars*MaxBytesPerChar +
		StringLengthPrefix + contentChars*MaxBytesPerChar
}

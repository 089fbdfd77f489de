package program

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"unicode/utf8"

	"tweetledger/pkg"
	"tweetledger/pkg/errors"
	"tweetledger/pkg/ledger"
)

const SighashLength = 8

// SendTweetSighash prefixes the data of every send_tweet instruction.
var SendTweetSighash = Sighash("send_tweet")

// Sighash returns the 8-byte selector of a global instruction.
func Sighash(name string) [SighashLength]byte {
	var h [SighashLength]byte
	sum := sha256.Sum256([]byte("global:" + name))
	copy(h[:], sum[:SighashLength])
	return h
}

type SendTweetArgs struct {
	Topic   string
	Content string
}

func (a SendTweetArgs) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, SighashLength+2*pkg.StringLengthPrefix+len(a.Topic)+len(a.Content))
	buf = append(buf, SendTweetSighash[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(a.Topic)))
	buf = append(buf, a.Topic...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(a.Content)))
	buf = append(buf, a.Content...)
	return buf, nil
}

// DecodeSendTweetArgs parses instruction data, sighash included.
func DecodeSendTweetArgs(data []byte) (*SendTweetArgs, error) {
	if !bytes.HasPrefix(data, SendTweetSighash[:]) {
		return nil, errors.New(errors.PhaseDecode, errors.KindInstructionFallbackNotFound).
			Detail("unknown instruction").
			Build()
	}
	rest := data[SighashLength:]

	var args SendTweetArgs
	var err error
	if args.Topic, rest, err = decodeString(rest, "topic"); err != nil {
		return nil, err
	}
	if args.Content, rest, err = decodeString(rest, "content"); err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, errors.InvalidData(errors.PhaseDecode, "trailing bytes after instruction arguments")
	}
	return &args, nil
}

func decodeString(b []byte, field string) (string, []byte, error) {
	if len(b) < pkg.StringLengthPrefix {
		return "", nil, errors.InvalidData(errors.PhaseDecode, field+": missing length prefix")
	}
	n := binary.LittleEndian.Uint32(b)
	b = b[pkg.StringLengthPrefix:]
	if uint64(n) > uint64(len(b)) {
		return "", nil, errors.InvalidData(errors.PhaseDecode, field+": truncated")
	}
	s := b[:n]
	if !utf8.Valid(s) {
		return "", nil, errors.InvalidData(errors.PhaseDecode, field+": invalid UTF-8")
	}
	return string(s), b[n:], nil
}

// NewSendTweetInstruction builds the instruction that publishes a tweet into
// the new account tweet. Both tweet and author must sign the transaction.
func NewSendTweetInstruction(programID, tweet, author pkg.PublicKey, topic, content string) ledger.Instruction {
	data, _ := SendTweetArgs{Topic: topic, Content: content}.MarshalBinary()
	return ledger.Instruction{
		ProgramID: programID,
		Accounts: []ledger.AccountMeta{
			{Key: tweet, IsSigner: true, IsWritable: true},
			{Key: author, IsSigner: true, IsWritable: true},
			{Key: pkg.SystemProgramID},
		},
		Data: data,
	}
}

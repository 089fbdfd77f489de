package program

import (
	"tweetledger/pkg"
	"tweetledger/pkg/errors"
	"tweetledger/pkg/ledger"
)

// SendTweetAccounts are the accounts of a send_tweet instruction, in order.
type SendTweetAccounts struct {
	Tweet         *ledger.AccountInfo
	Author        *ledger.AccountInfo
	SystemProgram *ledger.AccountInfo
}

func parseSendTweetAccounts(infos []*ledger.AccountInfo) (*SendTweetAccounts, error) {
	if len(infos) < 3 {
		return nil, errors.New(errors.PhaseConstraint, errors.KindNotEnoughAccountKeys).
			Detail("send_tweet needs 3 accounts, got %d", len(infos)).
			Build()
	}
	return &SendTweetAccounts{
		Tweet:         infos[0],
		Author:        infos[1],
		SystemProgram: infos[2],
	}, nil
}

// Prepare enforces the instruction's account constraints and creates the
// tweet account, paid by author and owned by programID.
func (a *SendTweetAccounts) Prepare(programID pkg.PublicKey, system ledger.System) error {
	if a.SystemProgram.Key != pkg.SystemProgramID {
		return errors.Constraint(errors.KindConstraintAddress, "system_program",
			"expected "+pkg.SystemProgramID.String()+", got "+a.SystemProgram.Key.String())
	}
	if !a.Author.IsSigner {
		return errors.Constraint(errors.KindConstraintSigner, "author", "author must sign")
	}
	if !a.Author.IsWritable {
		return errors.Constraint(errors.KindConstraintMut, "author", "author must be writable to pay rent")
	}

	err := system.CreateAccount(a.Author, a.Tweet, ledger.MinimumBalance(pkg.TweetLength), pkg.TweetLength, programID)
	if err != nil {
		return err
	}
	copy(a.Tweet.Data, pkg.TweetDiscriminator[:])

	return a.checkTweet(programID)
}

// checkTweet verifies that the tweet account is a fresh, tagged tweet slot.
func (a *SendTweetAccounts) checkTweet(programID pkg.PublicKey) error {
	t := a.Tweet
	if t.Owner != programID {
		return errors.Constraint(errors.KindConstraintOwner, "tweet", "tweet account is not owned by the program")
	}
	if len(t.Data) != pkg.TweetLength {
		return errors.Constraint(errors.KindConstraintSpace, "tweet", "tweet account has the wrong size")
	}
	if t.Lamports < ledger.MinimumBalance(pkg.TweetLength) {
		return errors.Constraint(errors.KindInsufficientFunds, "tweet", "tweet account is not rent exempt")
	}
	if !pkg.HasTweetDiscriminator(t.Data) {
		return errors.Constraint(errors.KindAccountDiscriminator, "tweet", "tweet account is not tagged as a tweet")
	}
	for _, b := range t.Data[pkg.DiscriminatorLength:] {
		if b != 0 {
			return errors.Constraint(errors.KindAccountAlreadyInUse, "tweet", "tweet account already holds data")
		}
	}
	return nil
}

// Package program implements the tweet program: a single send_tweet
// instruction that publishes an immutable tweet into a new account.
package program

import (
	"context"

	"go.uber.org/zap"

	"tweetledger/pkg"
	"tweetledger/pkg/ledger"
)

type Program struct {
	id pkg.PublicKey
}

// New returns the tweet program deployed at id.
func New(id pkg.PublicKey) *Program {
	return &Program{id: id}
}

func (p *Program) ID() pkg.PublicKey {
	return p.id
}

func (p *Program) Process(_ context.Context, inv *ledger.Invocation) error {
	args, err := DecodeSendTweetArgs(inv.Data)
	if err != nil {
		return err
	}

	Logger().Debug("Instruction: SendTweet")

	accounts, err := parseSendTweetAccounts(inv.Accounts)
	if err != nil {
		return err
	}
	if err := accounts.Prepare(p.id, inv.System); err != nil {
		return err
	}

	err = SendTweet(accounts.Tweet.Data, accounts.Author.Key, inv.Clock, args.Topic, args.Content)
	if err != nil {
		return err
	}

	Logger().Info("tweet sent",
		zap.Stringer("tweet", accounts.Tweet.Key),
		zap.Stringer("author", accounts.Author.Key))
	return nil
}

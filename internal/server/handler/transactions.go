package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"tweetledger/pkg"
	"tweetledger/pkg/journal"
	"tweetledger/pkg/ledger"
)

// maxBodySize caps request bodies. A send_tweet transaction is a few KB.
const maxBodySize = 64 << 10

// SubmitTransaction executes a signed transaction and journals it.
func (h *Handler) SubmitTransaction(w http.ResponseWriter, r *http.Request) {
	var tx ledger.Transaction
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&tx); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}

	var receipt *ledger.Receipt
	err := h.record(func() (*journal.Entry, error) {
		var err error
		receipt, err = h.Ledger.Submit(r.Context(), &tx)
		if err != nil {
			return nil, err
		}
		return journal.TransactionEntry(&tx, receipt), nil
	})
	if receipt == nil {
		h.writeError(w, r, err)
		return
	}
	if err != nil {
		h.logger(r).Error("journal append failed", zap.Stringer("tx", receipt.Signature), zap.Error(err))
	}
	writeJSON(w, http.StatusCreated, receipt)
}

// record commits through the journal so that journal lines follow commit
// order. Without a journal it only commits.
func (h *Handler) record(commit func() (*journal.Entry, error)) error {
	if h.Journal == nil {
		_, err := commit()
		return err
	}
	return h.Journal.Record(commit)
}

type airdropRequest struct {
	Address  pkg.PublicKey `json:"address"`
	Lamports uint64        `json:"lamports"`
}

// Airdrop funds a system account so it can pay for tweets.
func (h *Handler) Airdrop(w http.ResponseWriter, r *http.Request) {
	var req airdropRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}

	committed := false
	err := h.record(func() (*journal.Entry, error) {
		if err := h.Ledger.Airdrop(r.Context(), req.Address, req.Lamports); err != nil {
			return nil, err
		}
		committed = true
		return journal.AirdropEntry(req.Address, req.Lamports, time.Now().Unix()), nil
	})
	if !committed {
		h.writeError(w, r, err)
		return
	}
	if err != nil {
		h.logger(r).Error("journal append failed", zap.Stringer("account", req.Address), zap.Error(err))
	}

	acct, err := h.Ledger.Account(r.Context(), req.Address)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

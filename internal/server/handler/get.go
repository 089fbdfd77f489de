package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"tweetledger/pkg"
)

func (h *Handler) address(w http.ResponseWriter, r *http.Request) (pkg.PublicKey, bool) {
	key, err := pkg.ParsePublicKey(mux.Vars(r)["address"])
	if err != nil {
		badRequest(w, err.Error())
		return key, false
	}
	return key, true
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	key, ok := h.address(w, r)
	if !ok {
		return
	}
	acct, err := h.Ledger.Account(r.Context(), key)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

type tweetResponse struct {
	Address pkg.PublicKey `json:"address"`
	pkg.Tweet
}

// GetTweet decodes the tweet stored at an address.
func (h *Handler) GetTweet(w http.ResponseWriter, r *http.Request) {
	key, ok := h.address(w, r)
	if !ok {
		return
	}
	acct, err := h.Ledger.Account(r.Context(), key)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if acct.Owner != h.ProgramID {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "not_a_tweet", Msg: "account is not owned by the tweet program"})
		return
	}
	tweet, err := pkg.DecodeTweet(acct.Data)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "not_a_tweet", Msg: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, tweetResponse{Address: key, Tweet: *tweet})
}

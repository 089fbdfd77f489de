package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"tweetledger/internal"
	"tweetledger/pkg"
	"tweetledger/pkg/errors"
	"tweetledger/pkg/journal"
	"tweetledger/pkg/ledger"
)

type Handler struct {
	Ledger    *ledger.Ledger
	Journal   *journal.Journal
	Cfg       *internal.Config
	ProgramID pkg.PublicKey
	Log       *zap.Logger
}

// Routes registers every endpoint behind the API key check.
func (h *Handler) Routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(h.RequestID, h.ApiKeyCheck)

	r.HandleFunc("/transactions", h.SubmitTransaction).Methods(http.MethodPost)
	r.HandleFunc("/airdrop", h.Airdrop).Methods(http.MethodPost)
	r.HandleFunc("/accounts/{address}", h.GetAccount).Methods(http.MethodGet)
	r.HandleFunc("/tweets/{address}", h.GetTweet).Methods(http.MethodGet)
	return r
}

type errorResponse struct {
	Error string `json:"error"`
	Code  uint32 `json:"code,omitempty"`
	Msg   string `json:"msg"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var e *errors.Error
	if !errors.As(err, &e) {
		h.logger(r).Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal", Msg: "internal error"})
		return
	}

	status := http.StatusBadRequest
	switch e.Kind {
	case errors.KindNotFound:
		status = http.StatusNotFound
	case errors.KindStorage, errors.KindClockUnavailable:
		status = http.StatusInternalServerError
		h.logger(r).Error("request failed", zap.Error(err))
	}

	resp := errorResponse{Error: string(e.Kind), Msg: e.Error()}
	if e.Kind == errors.KindCustom {
		resp.Error = e.Name
		resp.Code = e.Code
		resp.Msg = e.Detail
	}
	writeJSON(w, status, resp)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad_request", Msg: msg})
}

func (h *Handler) logger(r *http.Request) *zap.Logger {
	log := h.Log
	if log == nil {
		log = zap.NewNop()
	}
	if id := r.Header.Get(RequestIDHeader); id != "" {
		log = log.With(zap.String("request_id", id))
	}
	return log
}

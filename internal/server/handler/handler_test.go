package handler

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"tweetledger/internal"
	"tweetledger/pkg"
	"tweetledger/pkg/database"
	"tweetledger/pkg/journal"
	"tweetledger/pkg/ledger"
	"tweetledger/pkg/program"
)

const testAPIKey = "demo"

var testProgramID = pkg.MustPublicKey(internal.DefaultProgramID)

type testServer struct {
	t           *testing.T
	handler     http.Handler
	journalPath string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()

	store, err := database.OpenBolt(filepath.Join(dir, "ledger.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	journalPath := filepath.Join(dir, "journal.log")
	j, err := journal.Open(journalPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { j.Close() })

	cfg := &internal.Config{}
	cfg.Server.APIKey = testAPIKey

	h := &Handler{
		Ledger:    ledger.New(store, ledger.FixedClock(1_650_000_000), program.New(testProgramID)),
		Journal:   j,
		Cfg:       cfg,
		ProgramID: testProgramID,
	}
	return &testServer{t: t, handler: h.Routes(), journalPath: journalPath}
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			s.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(APIKeyHeader, testAPIKey)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) key() (ed25519.PrivateKey, pkg.PublicKey) {
	s.t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		s.t.Fatal(err)
	}
	return priv, pkg.PublicKeyFromEd25519(pub)
}

func (s *testServer) fund(key pkg.PublicKey) {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/airdrop", map[string]any{"address": key.String(), "lamports": 1_000_000_000})
	if rec.Code != http.StatusOK {
		s.t.Fatalf("airdrop: %d %s", rec.Code, rec.Body)
	}
}

func (s *testServer) sendTweet(topic, content string) (pkg.PublicKey, *httptest.ResponseRecorder) {
	s.t.Helper()
	author, authorPub := s.key()
	tweet, tweetPub := s.key()
	s.fund(authorPub)

	ix := program.NewSendTweetInstruction(testProgramID, tweetPub, authorPub, topic, content)
	tx := ledger.NewTransaction(ix).Sign(author, tweet)
	return tweetPub, s.do(http.MethodPost, "/transactions", tx)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestApiKeyCheck(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		key  string
		want int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "nope", http.StatusUnauthorized},
		{"valid", testAPIKey, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/accounts/"+pkg.PublicKey{9}.String(), nil)
			if tt.key != "" {
				req.Header.Set(APIKeyHeader, tt.key)
			}
			rec := httptest.NewRecorder()
			s.handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status: got %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/accounts/"+pkg.PublicKey{9}.String(), nil)
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("missing generated request id")
	}

	req := httptest.NewRequest(http.MethodGet, "/accounts/"+pkg.PublicKey{9}.String(), nil)
	req.Header.Set(APIKeyHeader, testAPIKey)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if got := rec.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("request id: got %q", got)
	}
}

func TestSubmitTransaction_SendTweet(t *testing.T) {
	s := newTestServer(t)

	tweetPub, rec := s.sendTweet("Bruno the brave Dog", "Bruno is a brave Dog")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body)
	}
	receipt := decode[ledger.Receipt](t, rec)
	if receipt.Timestamp != 1_650_000_000 {
		t.Errorf("receipt timestamp: got %d", receipt.Timestamp)
	}

	rec = s.do(http.MethodGet, "/tweets/"+tweetPub.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get tweet: %d %s", rec.Code, rec.Body)
	}
	got := decode[tweetResponse](t, rec)
	if got.Address != tweetPub || got.Topic != "Bruno the brave Dog" || got.Content != "Bruno is a brave Dog" || got.Timestamp != 1_650_000_000 {
		t.Errorf("tweet: got %+v", got)
	}

	rec = s.do(http.MethodGet, "/accounts/"+tweetPub.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get account: %d", rec.Code)
	}
	acct := decode[pkg.Account](t, rec)
	if acct.Owner != testProgramID || len(acct.Data) != pkg.TweetLength {
		t.Errorf("account: owner %s, %d bytes", acct.Owner, len(acct.Data))
	}

	n, err := journal.Replay(context.Background(), s.journalPath, func(*journal.Entry) error { return nil })
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("journal entries: got %d, want 2", n)
	}
}

func TestSubmitTransaction_Errors(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		content string
		want    errorResponse
	}{
		{
			name:    "topic too long",
			topic:   strings.Repeat("c", 51),
			content: "Bruno is a brave Dog",
			want:    errorResponse{Error: "TopicTooLong", Code: 300, Msg: "The provided Topic should be 50 Characters long Maximum"},
		},
		{
			name:    "content too long",
			topic:   "Bruno the brave Dog",
			content: strings.Repeat("c", 281),
			want:    errorResponse{Error: "ContentTooLong", Code: 301, Msg: "The provided Content should be 280 Characters long Maximum"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			tweetPub, rec := s.sendTweet(tt.topic, tt.content)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status: got %d, body %s", rec.Code, rec.Body)
			}
			if got := decode[errorResponse](t, rec); got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
			if rec := s.do(http.MethodGet, "/tweets/"+tweetPub.String(), nil); rec.Code != http.StatusNotFound {
				t.Errorf("tweet account after failure: status %d", rec.Code)
			}
		})
	}
}

func TestSubmitTransaction_BadRequests(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body any
		want string
	}{
		{"malformed json", "{", "bad_request"},
		{"no instructions", ledger.NewTransaction(), "invalid_data"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodPost, "/transactions", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status: got %d", rec.Code)
			}
			if got := decode[errorResponse](t, rec); got.Error != tt.want {
				t.Errorf("error: got %q, want %q", got.Error, tt.want)
			}
		})
	}
}

func TestGetTweet(t *testing.T) {
	s := newTestServer(t)
	_, systemAccount := s.key()
	s.fund(systemAccount)

	tests := []struct {
		name    string
		address string
		want    int
	}{
		{"missing", pkg.PublicKey{7}.String(), http.StatusNotFound},
		{"not a tweet", systemAccount.String(), http.StatusUnprocessableEntity},
		{"bad address", "not-an-address", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodGet, "/tweets/"+tt.address, nil)
			if rec.Code != tt.want {
				t.Errorf("status: got %d, want %d (%s)", rec.Code, tt.want, rec.Body)
			}
		})
	}
}

func TestAirdrop(t *testing.T) {
	s := newTestServer(t)
	_, key := s.key()

	rec := s.do(http.MethodPost, "/airdrop", map[string]any{"address": key.String(), "lamports": 0})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("zero airdrop: status %d", rec.Code)
	}

	s.fund(key)
	rec = s.do(http.MethodGet, "/accounts/"+key.String(), nil)
	acct := decode[pkg.Account](t, rec)
	if acct.Lamports != 1_000_000_000 || acct.Owner != pkg.SystemProgramID {
		t.Errorf("account: got %+v", acct)
	}
}

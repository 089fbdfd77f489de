package main

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jessevdk/go-flags"

	"tweetledger/pkg"
	"tweetledger/pkg/ledger"
	"tweetledger/pkg/program"
)

type options struct {
	URL       string `long:"url" default:"http://localhost:8080" description:"Base URL of the ledger API"`
	APIKey    string `long:"api-key" default:"demo" description:"Value of the X-API-Key header"`
	ProgramID string `long:"program-id" default:"7wcobSpj8qrNtHycFaop7BxEWzbf81SRQUd8rsc6kNS5" description:"Address of the tweet program"`
	Requests  int    `short:"n" long:"requests" default:"1000" description:"Total number of tweets to send"`
	Workers   int    `short:"w" long:"workers" default:"50" description:"Concurrent workers"`
	Authors   int    `long:"authors" default:"10" description:"Number of funded authors"`
}

type client struct {
	opts options
	http *http.Client
}

func (c *client) post(path string, body any) (int, []byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequest(http.MethodPost, c.opts.URL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.opts.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	return resp.StatusCode, data, err
}

func randomWord(n int) string {
	chars := "abcdefghijklmnopqrstuvwxyz"
	result := make([]byte, n)
	for i := range result {
		result[i] = chars[rand.Intn(len(chars))]
	}
	return string(result)
}

func randomContent(words int) string {
	var b bytes.Buffer
	b.WriteString("This is about")
	for i := 0; i < words && b.Len() < pkg.MaxContentChars-10; i++ {
		b.WriteByte(' ')
		b.WriteString(randomWord(3 + rand.Intn(6)))
	}
	return b.String()
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		if flagErr, ok := err.(*flags.Error); ok && flagErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
	programID, err := pkg.ParsePublicKey(opts.ProgramID)
	if err != nil {
		log.Fatal(err)
	}

	c := &client{opts: opts, http: &http.Client{Timeout: 10 * time.Second}}

	authors := make([]ed25519.PrivateKey, opts.Authors)
	for i := range authors {
		pub, priv, err := ed25519.GenerateKey(nil)
		if err != nil {
			log.Fatal(err)
		}
		authors[i] = priv
		status, body, err := c.post("/airdrop", map[string]any{
			"address":  pkg.PublicKeyFromEd25519(pub).String(),
			"lamports": uint64(opts.Requests) * ledger.MinimumBalance(pkg.TweetLength),
		})
		if err != nil || status != http.StatusOK {
			log.Fatalf("airdrop failed: status %d, %s, %v", status, body, err)
		}
	}

	var (
		wg      sync.WaitGroup
		sem     = make(chan struct{}, opts.Workers)
		success int64
	)
	start := time.Now()

	for i := 0; i < opts.Requests; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			author := authors[i%len(authors)]
			authorPub := pkg.PublicKeyFromEd25519(author.Public().(ed25519.PublicKey))
			tweetPub, tweet, err := ed25519.GenerateKey(nil)
			if err != nil {
				log.Printf("keygen failed (%d): %v", i, err)
				return
			}

			ix := program.NewSendTweetInstruction(programID, pkg.PublicKeyFromEd25519(tweetPub), authorPub,
				fmt.Sprintf("topic_%d", rand.Intn(1000)), randomContent(40))
			tx := ledger.NewTransaction(ix).Sign(author, tweet)

			status, body, err := c.post("/transactions", tx)
			if err != nil {
				log.Printf("request %d failed: %v", i, err)
				return
			}
			if status != http.StatusCreated {
				log.Printf("request %d: status %d: %s", i, status, body)
				return
			}
			atomic.AddInt64(&success, 1)
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	fmt.Printf("Sent %d tweets in %s\n", opts.Requests, elapsed)
	fmt.Printf("Successful: %d\n", success)
	fmt.Printf("TPS: %.2f\n", float64(success)/elapsed.Seconds())
}

// source-server is a development tool that serves sample JSON datasets
// for exercising API sources locally. Point a job at
// http://localhost:8081/data and watch the pipeline run end to end.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"
)

type stats struct {
	Count int64  `json:"count"`
	Since string `json:"since"`
}

var (
	mu    sync.Mutex
	count int64
	since time.Time
)

func main() {
	since = time.Now().UTC()

	addr := ":8081"
	if v := os.Getenv("ADDR"); v != "" {
		addr = v
	}

	http.HandleFunc("/data", dataHandler)
	http.HandleFunc("/flaky", flakyHandler)
	http.HandleFunc("/stats", statsHandler)
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	log.Printf("source-server listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, nil))
}

// dataHandler returns a list-of-objects dataset. ?rows=N controls the
// row count (default 10).
func dataHandler(w http.ResponseWriter, r *http.Request) {
	recordRequest()

	rows := 10
	if v := r.URL.Query().Get("rows"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 10000 {
			rows = n
		}
	}

	regions := []string{"north", "south", "east", "west"}
	records := make([]map[string]any, rows)
	for i := range records {
		records[i] = map[string]any{
			"id":     i + 1,
			"region": regions[i%len(regions)],
			"amount": float64(rand.Intn(100000)) / 100,
			"active": i%3 != 0,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(records); err != nil {
		log.Printf("encode error: %v", err)
	}
}

// flakyHandler fails with a 500 on two of every three requests, for
// poking at fetch retries and the circuit breaker.
func flakyHandler(w http.ResponseWriter, r *http.Request) {
	recordRequest()

	mu.Lock()
	n := count
	mu.Unlock()

	if n%3 != 0 {
		http.Error(w, "synthetic failure", http.StatusInternalServerError)
		return
	}
	dataHandler(w, r)
}

func statsHandler(w http.ResponseWriter, _ *http.Request) {
	mu.Lock()
	s := stats{Count: count, Since: since.Format(time.RFC3339)}
	mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func recordRequest() {
	mu.Lock()
	count++
	mu.Unlock()
}

package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func fastRetrier() *Retrier {
	r := NewRetrier(zerolog.Nop())
	r.BaseDelay = time.Millisecond
	return r
}

func TestRetrier_SuccessFirstAttempt(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(pongResponse()))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 0)

	content, err := fastRetrier().Call(context.Background(), client, []Message{{Role: RoleUser, Content: "ping"}}, "test call", 5)
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if content != "pong" {
		t.Errorf("Call() = %q, want pong", content)
	}
	// Success returns immediately, no further attempts
	if hits != 1 {
		t.Errorf("Server hits = %d, want 1", hits)
	}
}

func TestRetrier_RecoversWithinBudget(t *testing.T) {
	// Unusable responses for exactly maxAttempts-1 attempts, then success:
	// the budget is respected exactly, not off by one.
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits < 3 {
			w.Write([]byte(`{"choices":[{"message":{"content":"   "}}]}`))
			return
		}
		w.Write([]byte(pongResponse()))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 0)

	content, err := fastRetrier().Call(context.Background(), client, []Message{{Role: RoleUser, Content: "ping"}}, "test call", 3)
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if content != "pong" {
		t.Errorf("Call() = %q, want pong", content)
	}
	if hits != 3 {
		t.Errorf("Server hits = %d, want exactly 3", hits)
	}
}

func TestRetrier_EmptyContentExhaustsBudget(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(`{"choices":[{"message":{"content":""}}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 0)

	_, err := fastRetrier().Call(context.Background(), client, []Message{{Role: RoleUser, Content: "ping"}}, "test call", 3)

	var xerr *ExhaustedRetriesError
	if !errors.As(err, &xerr) {
		t.Fatalf("error = %v, want *ExhaustedRetriesError", err)
	}
	if xerr.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", xerr.Attempts)
	}
	var eerr *EmptyContentError
	if !errors.As(err, &eerr) {
		t.Errorf("Last underlying error = %v, want *EmptyContentError", xerr.Err)
	}
	if hits != 3 {
		t.Errorf("Server hits = %d, want exactly 3", hits)
	}
}

func TestRetrier_MalformedResponseIsRetryable(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits == 1 {
			w.Write([]byte(`{"id":"abc"}`)) // no choices
			return
		}
		w.Write([]byte(pongResponse()))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 0)

	content, err := fastRetrier().Call(context.Background(), client, []Message{{Role: RoleUser, Content: "ping"}}, "test call", 2)
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if content != "pong" {
		t.Errorf("Call() = %q, want pong", content)
	}
	if hits != 2 {
		t.Errorf("Server hits = %d, want 2", hits)
	}
}

func TestRetrier_NonRetryableStatusRetriedAtThisTier(t *testing.T) {
	// 404 surfaces immediately from the transport tier, but the
	// orchestrator still retries it with its own budget.
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 3)

	_, err := fastRetrier().Call(context.Background(), client, []Message{{Role: RoleUser, Content: "ping"}}, "test call", 2)

	var xerr *ExhaustedRetriesError
	if !errors.As(err, &xerr) {
		t.Fatalf("error = %v, want *ExhaustedRetriesError", err)
	}
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Errorf("Last underlying error = %v, want *TransportError", xerr.Err)
	}
	// One server hit per orchestrator attempt: no transport-tier retries
	if hits != 2 {
		t.Errorf("Server hits = %d, want 2", hits)
	}
}

func TestRetrier_ContextCancelDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":""}}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 0)

	r := NewRetrier(zerolog.Nop())
	r.BaseDelay = time.Minute // Would block without cancellation

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := r.Call(ctx, client, []Message{{Role: RoleUser, Content: "ping"}}, "test call", 3)
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Call did not return after context cancellation")
	}
}

func TestCallWithRetry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(pongResponse()))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 0)

	content, err := CallWithRetry(context.Background(), client, []Message{{Role: RoleUser, Content: "ping"}}, "test call", 1)
	if err != nil {
		t.Fatalf("CallWithRetry() error = %v", err)
	}
	if content != "pong" {
		t.Errorf("CallWithRetry() = %q, want pong", content)
	}
}

package wallethttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domainerrors "ekub/contexts/savings-core/ekub-engine/domain/errors"
)

func TestDebitSendsIdempotentTransfer(t *testing.T) {
	var got transferRequest
	var gotKey, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("Idempotency-Key")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	err := client.Debit(context.Background(), "member-1", 100, "contribution:group-1:0:member-1")
	if err != nil {
		t.Fatalf("debit failed: %v", err)
	}
	if gotPath != "/internal/wallet/v1/debits" {
		t.Fatalf("unexpected path %s", gotPath)
	}
	if gotKey != "contribution:group-1:0:member-1" || got.Reference != gotKey {
		t.Fatalf("reference must ride as the idempotency key, got header %q body %q", gotKey, got.Reference)
	}
	if got.MemberID != "member-1" || got.Amount != 100 {
		t.Fatalf("unexpected transfer body: %+v", got)
	}
}

func TestConflictMeansAlreadyApplied(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	if err := client.Credit(context.Background(), "member-1", 300, "payout:group-1:0"); err != nil {
		t.Fatalf("replayed credit must succeed, got %v", err)
	}
}

func TestInsufficientFunds(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(transferError{Error: "balance too low", Code: "insufficient_funds"})
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	err := client.Debit(context.Background(), "member-1", 100, "contribution:group-1:0:member-1")
	if !errors.Is(err, domainerrors.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
}

func TestServerErrorIsWalletUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	err := client.Credit(context.Background(), "member-1", 300, "payout:group-1:0")
	if !errors.Is(err, domainerrors.ErrWalletUnavailable) {
		t.Fatalf("expected ErrWalletUnavailable, got %v", err)
	}

	// A dead endpoint maps to the same error.
	server.Close()
	err = client.Credit(context.Background(), "member-1", 300, "payout:group-1:1")
	if !errors.Is(err, domainerrors.ErrWalletUnavailable) {
		t.Fatalf("expected ErrWalletUnavailable for transport failure, got %v", err)
	}
}

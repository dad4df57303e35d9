package otp

import (
	"context"
	"sync"
	"testing"
	"time"
)

func newTestGate() (*Gate, *MemoryStore, *time.Time) {
	store := NewMemoryStore()
	gate := NewGate(store)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	gate.nowFn = func() time.Time { return now }
	return gate, store, &now
}

func TestGenerateProducesSixDigits(t *testing.T) {
	gate, _, _ := newTestGate()
	for i := 0; i < 50; i++ {
		code, err := gate.Generate(context.Background(), "a@example.com")
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if len(code) != CodeLength {
			t.Fatalf("code %q has length %d, want %d", code, len(code), CodeLength)
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("code %q contains non-digit", code)
			}
		}
	}
}

func TestVerifyHappyPath(t *testing.T) {
	gate, _, _ := newTestGate()
	ctx := context.Background()

	code, err := gate.Generate(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	ok, err := gate.Verify(ctx, "a@example.com", code)
	if err != nil || !ok {
		t.Fatalf("Verify = %v, %v; want true", ok, err)
	}

	// Single use: the same code cannot verify twice.
	ok, err = gate.Verify(ctx, "a@example.com", code)
	if err != nil || ok {
		t.Fatalf("second Verify = %v, %v; want false", ok, err)
	}
}

func TestVerifyNoPendingCode(t *testing.T) {
	gate, store, _ := newTestGate()
	ok, err := gate.Verify(context.Background(), "nobody@example.com", "123456")
	if err != nil || ok {
		t.Fatalf("Verify = %v, %v; want false", ok, err)
	}
	// Fails closed without creating state.
	if len(store.codes) != 0 {
		t.Error("verify against absent code mutated the store")
	}
}

func TestRegenerateInvalidatesPriorCode(t *testing.T) {
	gate, _, _ := newTestGate()
	ctx := context.Background()

	first, _ := gate.Generate(ctx, "a@example.com")
	second, _ := gate.Generate(ctx, "a@example.com")

	if first != second {
		if ok, _ := gate.Verify(ctx, "a@example.com", first); ok {
			t.Fatal("first code verified after regeneration")
		}
	}
	if ok, _ := gate.Verify(ctx, "a@example.com", second); !ok {
		t.Fatal("second code did not verify")
	}
}

func TestVerifyExpiry(t *testing.T) {
	gate, _, now := newTestGate()
	ctx := context.Background()

	code, _ := gate.Generate(ctx, "a@example.com")

	*now = now.Add(TTL + time.Second)
	if ok, _ := gate.Verify(ctx, "a@example.com", code); ok {
		t.Fatal("expired code verified")
	}

	// The expired code was deleted; even rewinding the clock cannot revive it.
	*now = now.Add(-TTL)
	if ok, _ := gate.Verify(ctx, "a@example.com", code); ok {
		t.Fatal("expired code verified after deletion")
	}
}

func TestVerifyJustInsideTTL(t *testing.T) {
	gate, _, now := newTestGate()
	ctx := context.Background()

	code, _ := gate.Generate(ctx, "a@example.com")
	*now = now.Add(TTL)
	if ok, _ := gate.Verify(ctx, "a@example.com", code); !ok {
		t.Fatal("code at exactly TTL should still verify")
	}
}

func TestVerifyAttemptExhaustion(t *testing.T) {
	gate, _, _ := newTestGate()
	ctx := context.Background()

	code, _ := gate.Generate(ctx, "a@example.com")

	for i := 0; i < MaxAttempts; i++ {
		if ok, _ := gate.Verify(ctx, "a@example.com", "000000"); ok {
			t.Fatalf("wrong code verified on attempt %d", i+1)
		}
	}

	// Three failures exhaust the code: the correct code no longer verifies.
	if ok, _ := gate.Verify(ctx, "a@example.com", code); ok {
		t.Fatal("correct code verified after attempt exhaustion")
	}

	// A newly generated code starts with a fresh attempt counter.
	code, _ = gate.Generate(ctx, "a@example.com")
	if ok, _ := gate.Verify(ctx, "a@example.com", code); !ok {
		t.Fatal("fresh code did not verify")
	}
}

func TestVerifyThirdAttemptCorrectSucceeds(t *testing.T) {
	gate, _, _ := newTestGate()
	ctx := context.Background()

	code, _ := gate.Generate(ctx, "a@example.com")
	gate.Verify(ctx, "a@example.com", "000000")
	gate.Verify(ctx, "a@example.com", "111111")
	if ok, _ := gate.Verify(ctx, "a@example.com", code); !ok {
		t.Fatal("correct code on the third attempt should verify")
	}
}

func TestVerifyConcurrentAttempts(t *testing.T) {
	gate, _, _ := newTestGate()
	ctx := context.Background()

	code, _ := gate.Generate(ctx, "race@example.com")

	var wg sync.WaitGroup
	successes := make(chan bool, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _ := gate.Verify(ctx, "race@example.com", code)
			successes <- ok
		}()
	}
	wg.Wait()
	close(successes)

	count := 0
	for ok := range successes {
		if ok {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("%d concurrent verifications consumed the code, want exactly 1", count)
	}
}

func TestCodesAreIndependentPerEmail(t *testing.T) {
	gate, _, _ := newTestGate()
	ctx := context.Background()

	codeA, _ := gate.Generate(ctx, "a@example.com")
	codeB, _ := gate.Generate(ctx, "b@example.com")

	if ok, _ := gate.Verify(ctx, "b@example.com", codeA); ok && codeA != codeB {
		t.Fatal("a's code verified for b")
	}
	if ok, _ := gate.Verify(ctx, "a@example.com", codeA); !ok {
		t.Fatal("a's code did not verify for a")
	}
}

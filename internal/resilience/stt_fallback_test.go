package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/solace/pkg/audio"
	"github.com/MrWong99/solace/pkg/provider/stt"
	sttmock "github.com/MrWong99/solace/pkg/provider/stt/mock"
)

func testPayload() *audio.Payload {
	return &audio.Payload{PCM: make([]byte, 3200), SampleRate: 16000, Channels: 1}
}

func TestSTTFallback_Transcribe_PrimarySuccess(t *testing.T) {
	primary := &sttmock.Provider{Result: stt.Transcript{Text: "hello from primary"}}
	secondary := &sttmock.Provider{Result: stt.Transcript{Text: "hello from secondary"}}

	fb := NewSTTFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	payload := testPayload()
	tr, err := fb.Transcribe(context.Background(), payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.Text != "hello from primary" {
		t.Fatalf("text = %q, want 'hello from primary'", tr.Text)
	}
	if primary.CallCount() != 1 || primary.Calls[0].Payload != payload {
		t.Fatalf("primary calls = %+v", primary.Calls)
	}
	if secondary.CallCount() != 0 {
		t.Fatalf("secondary called %d times, want 0", secondary.CallCount())
	}
}

func TestSTTFallback_Transcribe_Failover(t *testing.T) {
	primary := &sttmock.Provider{Err: errors.New("connection refused")}
	secondary := &sttmock.Provider{Result: stt.Transcript{Text: "from secondary"}}

	fb := NewSTTFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	tr, err := fb.Transcribe(context.Background(), testPayload())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.Text != "from secondary" {
		t.Fatalf("text = %q, want 'from secondary'", tr.Text)
	}
}

func TestSTTFallback_Transcribe_UnintelligibleDoesNotFailOver(t *testing.T) {
	primary := &sttmock.Provider{Err: stt.Unintelligible("primary", nil)}
	secondary := &sttmock.Provider{Result: stt.Transcript{Text: "should not be used"}}

	fb := NewSTTFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 1},
	})
	fb.AddFallback("secondary", secondary)

	for range 3 {
		_, err := fb.Transcribe(context.Background(), testPayload())
		if !stt.IsUnintelligible(err) {
			t.Fatalf("err = %v, want unintelligible", err)
		}
		if errors.Is(err, ErrAllFailed) {
			t.Fatalf("err = %v, should not match ErrAllFailed", err)
		}
	}
	if secondary.CallCount() != 0 {
		t.Fatalf("secondary called %d times, want 0", secondary.CallCount())
	}
	if st := fb.Status(); st[0].State != StateClosed {
		t.Fatalf("primary breaker = %s, want closed", st[0].State)
	}
}

func TestSTTFallback_Transcribe_AllFail(t *testing.T) {
	primary := &sttmock.Provider{Err: errors.New("primary down")}
	secondary := &sttmock.Provider{Err: errors.New("secondary down")}

	fb := NewSTTFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	_, err := fb.Transcribe(context.Background(), testPayload())
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
	if !stt.IsUnavailable(err) {
		t.Fatalf("err = %v, want provider unavailable", err)
	}
}

func TestSTTFallback_Transcribe_CancelledSkipsFallbacks(t *testing.T) {
	primary := &sttmock.Provider{BlockUntilDone: true}
	secondary := &sttmock.Provider{Result: stt.Transcript{Text: "late"}}

	fb := NewSTTFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 1},
	})
	fb.AddFallback("secondary", secondary)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fb.Transcribe(ctx, testPayload())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if secondary.CallCount() != 0 {
		t.Fatalf("secondary called %d times, want 0", secondary.CallCount())
	}
	if !fb.Available() {
		t.Fatal("cancellation should not open the breaker")
	}
}

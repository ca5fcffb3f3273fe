package stash

import (
	"errors"
	"fmt"
	"testing"

	"github.com/zoobzio/clockz"
)

func failure(i int) Failure {
	return Failure{Key: "k", Stage: StagePersist, Err: fmt.Errorf("error%d", i)}
}

func TestFailureRing_NilSafe(t *testing.T) {
	var r *failureRing

	// All operations should be safe on nil
	r.push(failure(1))

	if r.all() != nil {
		t.Error("expected nil from nil ring")
	}
}

func TestFailureRing_ZeroSize(t *testing.T) {
	if r := newFailureRing(0); r != nil {
		t.Error("expected nil ring for size 0")
	}
	if r := newFailureRing(-1); r != nil {
		t.Error("expected nil ring for negative size")
	}
}

func TestFailureRing_KeepsTimestamp(t *testing.T) {
	clock := clockz.NewFakeClock()
	r := newFailureRing(2)

	at := clock.Now()
	r.push(Failure{Key: "k", Stage: StageDecode, Err: errors.New("bad"), At: at})

	got := r.all()
	if len(got) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(got))
	}
	if !got[0].At.Equal(at) {
		t.Errorf("expected timestamp %v, got %v", at, got[0].At)
	}
	if got[0].Stage != StageDecode {
		t.Errorf("expected stage %q, got %q", StageDecode, got[0].Stage)
	}
}

func TestFailureRing_FillsWithoutWrapping(t *testing.T) {
	r := newFailureRing(3)
	for i := 1; i <= 3; i++ {
		r.push(failure(i))
	}

	got := r.all()
	if len(got) != 3 {
		t.Fatalf("expected 3 failures, got %d", len(got))
	}
	for i, f := range got {
		if want := fmt.Sprintf("error%d", i+1); f.Err.Error() != want {
			t.Errorf("failure %d: expected %q, got %q", i, want, f.Err)
		}
	}
}

func TestFailureRing_WrapsOldestFirst(t *testing.T) {
	r := newFailureRing(3)
	for i := 1; i <= 5; i++ {
		r.push(failure(i))
	}

	got := r.all()
	if len(got) != 3 {
		t.Fatalf("expected 3 failures, got %d", len(got))
	}
	for i, f := range got {
		if want := fmt.Sprintf("error%d", i+3); f.Err.Error() != want {
			t.Errorf("failure %d: expected %q, got %q", i, want, f.Err)
		}
	}
}

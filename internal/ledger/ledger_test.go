package ledger

import (
	"testing"
	"time"
)

func TestPairKeyIsOrderIndependent(t *testing.T) {
	a := pairKey("Tom Hardy", "Leonardo DiCaprio")
	b := pairKey("Leonardo DiCaprio", "Tom Hardy")
	if a != b {
		t.Fatalf("pairKey not symmetric: %q vs %q", a, b)
	}
}

func TestBumpRoundResetsAttempts(t *testing.T) {
	rec := FailureRecord{RunID: "r1", ItemID: "i1", Round: 2, Attempts: 5}
	next := BumpRound(rec)
	if next.Round != 3 || next.Attempts != 0 {
		t.Fatalf("got round=%d attempts=%d", next.Round, next.Attempts)
	}
	if rec.Round != 2 {
		t.Fatal("BumpRound must not mutate its argument")
	}
}

func TestBackoffForIsLinear(t *testing.T) {
	unit := 500 * time.Millisecond
	if got := BackoffFor(1, unit); got != 500*time.Millisecond {
		t.Fatalf("got %v", got)
	}
	if got := BackoffFor(3, unit); got != 1500*time.Millisecond {
		t.Fatalf("got %v", got)
	}
}

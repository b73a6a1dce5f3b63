package parallel

import (
	"strings"
	"sync/atomic"
	"testing"

	"github.com/YuminosukeSato/co2stack/pkg/errors"
)

func TestParallelize(t *testing.T) {
	tests := []struct {
		name  string
		items int
	}{
		{"empty", 0},
		{"single", 1},
		{"many", 1003},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen := make([]int32, tt.items)
			Parallelize(tt.items, func(start, end int) {
				for i := start; i < end; i++ {
					atomic.AddInt32(&seen[i], 1)
				}
			})
			for i, c := range seen {
				if c != 1 {
					t.Fatalf("item %d visited %d times", i, c)
				}
			}
		})
	}
}

func TestParallelizeWithThreshold(t *testing.T) {
	calls := 0
	ParallelizeWithThreshold(10, 100, func(start, end int) {
		calls++
		if start != 0 || end != 10 {
			t.Errorf("got range [%d, %d), want [0, 10)", start, end)
		}
	})
	if calls != 1 {
		t.Errorf("expected a single sequential call, got %d", calls)
	}
}

func TestForEach(t *testing.T) {
	out := make([]int, 50)
	err := ForEach(len(out), func(i int) error {
		out[i] = i * i
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range out {
		if v != i*i {
			t.Errorf("out[%d] = %d, want %d", i, v, i*i)
		}
	}

	errLow := errors.New("low")
	err = ForEach(20, func(i int) error {
		switch i {
		case 3:
			return errLow
		case 17:
			return errors.New("high")
		}
		return nil
	})
	if err != errLow {
		t.Errorf("ForEach error = %v, want lowest-index error", err)
	}
}

func TestForEachRecoversPanics(t *testing.T) {
	done := make([]bool, 8)
	err := ForEach(len(done), func(i int) error {
		if i == 5 {
			var m map[string]int
			m["boom"] = 1
		}
		done[i] = true
		return nil
	})
	var perr *errors.PanicError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PanicError, got %v", err)
	}
	if !strings.Contains(perr.Operation, "5") {
		t.Errorf("Operation = %q, want the failing index", perr.Operation)
	}
	for i, ok := range done {
		if i != 5 && !ok {
			t.Errorf("task %d did not run", i)
		}
	}
}

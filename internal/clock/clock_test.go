package clock

import (
	"testing"
	"time"
)

func TestFake(t *testing.T) {
	start := time.Unix(100, 0)
	f := NewFake(start)
	f.Sleep(2 * time.Second)
	f.Advance(time.Second)
	f.Sleep(0)

	if got := f.Now().Sub(start); got != 3*time.Second {
		t.Errorf("elapsed %v, want 3s", got)
	}
	sleeps := f.Sleeps()
	if len(sleeps) != 2 || sleeps[0] != 2*time.Second || sleeps[1] != 0 {
		t.Errorf("sleeps = %v", sleeps)
	}
}

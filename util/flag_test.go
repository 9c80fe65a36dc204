package util

import (
	"testing"
	"time"
)

func TestFlagStartsUnset(t *testing.T) {
	f := NewFlag()
	if f.IsSet() {
		t.Error("new flag reports set")
	}
}

func TestFlagSetIsMonotonicAndIdempotent(t *testing.T) {
	f := NewFlag()
	f.Set()
	f.Set()
	if !f.IsSet() {
		t.Error("flag not set after Set")
	}
}

func TestFlagWaitReleasedBySet(t *testing.T) {
	f := NewFlag()
	done := make(chan bool)
	go func() {
		f.Wait()
		done <- true
	}()

	time.Sleep(20 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("Wait returned before Set")
	default:
	}

	f.Set()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait still blocked after Set")
	}
}

package dedup

import (
	"testing"
	"time"
)

func TestSeenAfterRemember(t *testing.T) {
	store := New(5 * time.Minute)

	if store.Seen("msg-1") {
		t.Error("Seen() before Remember() = true, want false")
	}

	store.Remember("msg-1")

	if !store.Seen("msg-1") {
		t.Error("Seen() after Remember() = false, want true")
	}

	if store.Seen("msg-2") {
		t.Error("Seen() for distinct id = true, want false")
	}
}

func TestEntriesExpireAfterWindow(t *testing.T) {
	store := New(20 * time.Millisecond)
	store.Remember("msg-1")

	time.Sleep(40 * time.Millisecond)

	if store.Seen("msg-1") {
		t.Error("Seen() after retention window = true, want false")
	}
}

func TestRememberDoesNotExtendWindow(t *testing.T) {
	store := New(50 * time.Millisecond)
	store.Remember("msg-1")

	time.Sleep(30 * time.Millisecond)
	store.Remember("msg-1")
	time.Sleep(30 * time.Millisecond)

	if store.Seen("msg-1") {
		t.Error("second Remember() extended the retention window")
	}
}

package room

import (
	"sync"
	"testing"
)

func TestNewRoomDefaults(t *testing.T) {
	r := New("test-room")

	code, language, version := r.Snapshot()
	if code != "" {
		t.Errorf("Expected empty code, got %q", code)
	}
	if language != DefaultLanguage {
		t.Errorf("Expected language %q, got %q", DefaultLanguage, language)
	}
	if version != 0 {
		t.Errorf("Expected version 0, got %d", version)
	}
	if r.MemberCount() != 0 {
		t.Errorf("Expected no members, got %d", r.MemberCount())
	}
}

func TestApplyEdit(t *testing.T) {
	r := New("test-room")

	v := r.ApplyEdit("print(1)")
	if v != 1 {
		t.Errorf("Expected version 1, got %d", v)
	}

	code, _, version := r.Snapshot()
	if code != "print(1)" {
		t.Errorf("Expected code %q, got %q", "print(1)", code)
	}
	if version != 1 {
		t.Errorf("Expected version 1, got %d", version)
	}
}

func TestApplyEditSameContentStillBumpsVersion(t *testing.T) {
	r := New("test-room")

	v1 := r.ApplyEdit("same")
	v2 := r.ApplyEdit("same")

	if v1 != 1 || v2 != 2 {
		t.Errorf("Expected versions 1 and 2, got %d and %d", v1, v2)
	}

	code, _, _ := r.Snapshot()
	if code != "same" {
		t.Errorf("Expected code %q, got %q", "same", code)
	}
}

func TestApplyEditConcurrentVersionsUnique(t *testing.T) {
	r := New("test-room")

	var mu sync.Mutex
	seen := make(map[int64]bool)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v := r.ApplyEdit("x")
			mu.Lock()
			if seen[v] {
				t.Errorf("Version %d returned twice", v)
			}
			seen[v] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	_, _, version := r.Snapshot()
	if version != 100 {
		t.Errorf("Expected version 100 after 100 edits, got %d", version)
	}
}

func TestApplyLanguage(t *testing.T) {
	r := New("test-room")

	r.ApplyLanguage("python")

	_, language, version := r.Snapshot()
	if language != "python" {
		t.Errorf("Expected language %q, got %q", "python", language)
	}
	if version != 0 {
		t.Errorf("Language changes should not bump the version, got %d", version)
	}
}

func TestMembersPreserveJoinOrder(t *testing.T) {
	r := New("test-room")

	r.AddMember("s1", "Alice")
	r.AddMember("s2", "Bob")
	r.AddMember("s3", "Carol")

	members := r.Members()
	want := []string{"Alice", "Bob", "Carol"}
	if len(members) != len(want) {
		t.Fatalf("Expected %d members, got %d", len(want), len(members))
	}
	for i := range want {
		if members[i] != want[i] {
			t.Errorf("Expected member %d to be %q, got %q", i, want[i], members[i])
		}
	}
}

func TestDuplicateUsernamesAllowed(t *testing.T) {
	r := New("test-room")

	r.AddMember("s1", "Alice")
	r.AddMember("s2", "Alice")

	if r.MemberCount() != 2 {
		t.Fatalf("Expected 2 members, got %d", r.MemberCount())
	}

	// Removing one session leaves the other untouched.
	username, remaining := r.RemoveMember("s1")
	if username != "Alice" {
		t.Errorf("Expected removed username Alice, got %q", username)
	}
	if remaining != 1 {
		t.Errorf("Expected 1 remaining member, got %d", remaining)
	}
}

func TestRemoveUnknownMember(t *testing.T) {
	r := New("test-room")
	r.AddMember("s1", "Alice")

	username, remaining := r.RemoveMember("no-such-session")
	if username != "" {
		t.Errorf("Expected empty username, got %q", username)
	}
	if remaining != 1 {
		t.Errorf("Expected membership unchanged, got %d", remaining)
	}
}

func TestRegistryGetOrCreate(t *testing.T) {
	reg := NewRegistry()

	r1 := reg.GetOrCreate("room-a")
	r2 := reg.GetOrCreate("room-a")
	if r1 != r2 {
		t.Error("Expected same room instance for same ID")
	}

	r3 := reg.GetOrCreate("room-b")
	if r1 == r3 {
		t.Error("Expected different rooms for different IDs")
	}

	if reg.Count() != 2 {
		t.Errorf("Expected 2 rooms, got %d", reg.Count())
	}
}

func TestRegistryConcurrentCreate(t *testing.T) {
	reg := NewRegistry()

	var mu sync.Mutex
	instances := make(map[*Room]bool)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := reg.GetOrCreate("contested-room")
			mu.Lock()
			instances[r] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(instances) != 1 {
		t.Errorf("Expected exactly 1 room instance under racing creates, got %d", len(instances))
	}
	if reg.Count() != 1 {
		t.Errorf("Expected 1 room in registry, got %d", reg.Count())
	}
}

func TestRegistryRemoveStartsFresh(t *testing.T) {
	reg := NewRegistry()

	r := reg.GetOrCreate("room-a")
	r.AddMember("s1", "Alice")
	r.ApplyEdit("draft")

	// Last member leaves, room drains.
	r.RemoveMember("s1")
	reg.Remove("room-a")

	if _, ok := reg.Get("room-a"); ok {
		t.Fatal("Expected room to be gone after removal")
	}

	// Rejoining the same ID starts over with an empty buffer.
	fresh := reg.GetOrCreate("room-a")
	code, language, version := fresh.Snapshot()
	if code != "" {
		t.Errorf("Expected empty code in recreated room, got %q", code)
	}
	if language != DefaultLanguage {
		t.Errorf("Expected default language in recreated room, got %q", language)
	}
	if version != 0 {
		t.Errorf("Expected version 0 in recreated room, got %d", version)
	}
}

func TestRegistryActiveRooms(t *testing.T) {
	reg := NewRegistry()

	a := reg.GetOrCreate("room-a")
	a.AddMember("s1", "Alice")
	a.AddMember("s2", "Bob")
	reg.GetOrCreate("room-b")

	counts := reg.ActiveRooms()
	if counts["room-a"] != 2 {
		t.Errorf("Expected 2 members in room-a, got %d", counts["room-a"])
	}
	if counts["room-b"] != 0 {
		t.Errorf("Expected 0 members in room-b, got %d", counts["room-b"])
	}
}

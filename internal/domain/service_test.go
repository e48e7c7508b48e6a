package domain

import (
	"sync/atomic"
	"testing"
)

func TestNewService(t *testing.T) {
	svc := NewService(42, "conference", "Public rooms", false)

	if svc.ID() != 42 {
		t.Errorf("ID() = %d, want 42", svc.ID())
	}
	if svc.Subdomain() != "conference" {
		t.Errorf("Subdomain() = %q, want \"conference\"", svc.Subdomain())
	}
	if svc.Description() != "Public rooms" {
		t.Errorf("Description() = %q, want \"Public rooms\"", svc.Description())
	}
	if svc.Hidden() {
		t.Error("Hidden() = true, want false")
	}
	if svc.RoomCount() != 0 {
		t.Errorf("RoomCount() = %d, want 0", svc.RoomCount())
	}
}

func TestSetDescription(t *testing.T) {
	svc := NewService(1, "conference", "old", false)
	svc.SetDescription("new")
	if svc.Description() != "new" {
		t.Errorf("Description() = %q, want \"new\"", svc.Description())
	}
}

func TestShutdownRunsHookExactlyOnce(t *testing.T) {
	svc := NewService(1, "conference", "", false)

	var calls atomic.Int32
	svc.SetOnShutdown(func() { calls.Add(1) })
	svc.CreateRoom("lobby", RoomConfig{})

	svc.Shutdown()
	svc.Shutdown()
	svc.Shutdown()

	if got := calls.Load(); got != 1 {
		t.Errorf("shutdown hook ran %d times, want 1", got)
	}
	if !svc.Closed() {
		t.Error("Closed() = false after Shutdown")
	}
	if svc.RoomCount() != 0 {
		t.Errorf("RoomCount() = %d after Shutdown, want 0", svc.RoomCount())
	}
}

func TestCreateRoomReturnsExisting(t *testing.T) {
	svc := NewService(1, "conference", "", false)

	first := svc.CreateRoom("lobby", RoomConfig{Subject: "hello"})
	second := svc.CreateRoom("lobby", RoomConfig{Subject: "other"})

	if first != second {
		t.Error("CreateRoom with same name returned a different room")
	}
	if got := second.Config().Subject; got != "hello" {
		t.Errorf("existing room config overwritten: subject = %q, want \"hello\"", got)
	}
	if svc.RoomCount() != 1 {
		t.Errorf("RoomCount() = %d, want 1", svc.RoomCount())
	}
}

func TestRoomsSortedByName(t *testing.T) {
	svc := NewService(1, "conference", "", false)
	svc.CreateRoom("zebra", RoomConfig{})
	svc.CreateRoom("alpha", RoomConfig{})
	svc.CreateRoom("lobby", RoomConfig{})

	rooms := svc.Rooms()
	want := []string{"alpha", "lobby", "zebra"}
	for i, r := range rooms {
		if r.Name() != want[i] {
			t.Errorf("Rooms()[%d] = %q, want %q", i, r.Name(), want[i])
		}
	}
}

func TestConnectedUserCountDeduplicates(t *testing.T) {
	svc := NewService(1, "conference", "", false)
	lobby := svc.CreateRoom("lobby", RoomConfig{})
	dev := svc.CreateRoom("dev", RoomConfig{})

	mustAdd(t, lobby, "alice", "alice@example.org")
	mustAdd(t, dev, "alice-dev", "alice@example.org") // same user, second room
	mustAdd(t, dev, "bob", "bob@example.org")

	if got := svc.OccupantCount(); got != 3 {
		t.Errorf("OccupantCount() = %d, want 3", got)
	}
	if got := svc.ConnectedUserCount(); got != 2 {
		t.Errorf("ConnectedUserCount() = %d, want 2", got)
	}
}

func TestPresenceBroadcastCountsOutgoing(t *testing.T) {
	svc := NewService(1, "conference", "", false)
	lobby := svc.CreateRoom("lobby", RoomConfig{})

	// First arrival has nobody to notify.
	if _, err := lobby.AddOccupant("alice", "alice@example.org", "participant", true); err != nil {
		t.Fatalf("AddOccupant(alice) = %v", err)
	}
	if got := svc.OutgoingMessageCount(); got != 0 {
		t.Errorf("OutgoingMessageCount() after first arrival = %d, want 0", got)
	}

	// Second arrival notifies the one existing occupant.
	if _, err := lobby.AddOccupant("bob", "bob@example.org", "participant", true); err != nil {
		t.Fatalf("AddOccupant(bob) = %v", err)
	}
	if got := svc.OutgoingMessageCount(); got != 1 {
		t.Errorf("OutgoingMessageCount() after second arrival = %d, want 1", got)
	}

	// Silent arrival does not broadcast.
	if _, err := lobby.AddOccupant("carol", "carol@example.org", "participant", false); err != nil {
		t.Fatalf("AddOccupant(carol) = %v", err)
	}
	if got := svc.OutgoingMessageCount(); got != 1 {
		t.Errorf("OutgoingMessageCount() after silent arrival = %d, want 1", got)
	}
}

func mustAdd(t *testing.T, r *Room, nickname, address string) {
	t.Helper()
	if _, err := r.AddOccupant(nickname, address, "participant", false); err != nil {
		t.Fatalf("AddOccupant(%s) = %v", nickname, err)
	}
}

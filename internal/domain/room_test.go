package domain

import (
	"errors"
	"testing"
)

func TestAddOccupant(t *testing.T) {
	room := NewRoom("lobby", RoomConfig{})

	o, err := room.AddOccupant("alice", "alice@example.org", "moderator", false)
	if err != nil {
		t.Fatalf("AddOccupant() = %v", err)
	}
	if o.Nickname != "alice" || o.UserAddress != "alice@example.org" || o.Role != "moderator" {
		t.Errorf("occupant = %+v, want alice/alice@example.org/moderator", o)
	}
	if room.OccupantCount() != 1 {
		t.Errorf("OccupantCount() = %d, want 1", room.OccupantCount())
	}
	if room.Occupant("alice") != o {
		t.Error("Occupant(alice) did not return the added occupant")
	}
}

func TestAddOccupantNicknameConflict(t *testing.T) {
	room := NewRoom("lobby", RoomConfig{})

	if _, err := room.AddOccupant("alice", "alice@example.org", "participant", false); err != nil {
		t.Fatalf("first AddOccupant() = %v", err)
	}
	_, err := room.AddOccupant("alice", "impostor@example.org", "participant", false)
	if !errors.Is(err, ErrNicknameTaken) {
		t.Errorf("second AddOccupant() = %v, want ErrNicknameTaken", err)
	}

	// First occupant must remain untouched.
	if got := room.Occupant("alice").UserAddress; got != "alice@example.org" {
		t.Errorf("Occupant(alice).UserAddress = %q, want original", got)
	}
	if room.OccupantCount() != 1 {
		t.Errorf("OccupantCount() = %d, want 1", room.OccupantCount())
	}
}

func TestOccupantsArrivalOrder(t *testing.T) {
	room := NewRoom("lobby", RoomConfig{})

	for _, nick := range []string{"carol", "alice", "bob"} {
		if _, err := room.AddOccupant(nick, nick+"@example.org", "participant", false); err != nil {
			t.Fatalf("AddOccupant(%s) = %v", nick, err)
		}
	}

	got := room.Occupants()
	want := []string{"carol", "alice", "bob"}
	if len(got) != len(want) {
		t.Fatalf("Occupants() returned %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Nickname != want[i] {
			t.Errorf("Occupants()[%d] = %q, want %q", i, got[i].Nickname, want[i])
		}
	}
}

func TestRemoveOccupant(t *testing.T) {
	room := NewRoom("lobby", RoomConfig{})
	if _, err := room.AddOccupant("alice", "alice@example.org", "participant", false); err != nil {
		t.Fatalf("AddOccupant() = %v", err)
	}
	if _, err := room.AddOccupant("bob", "bob@example.org", "participant", false); err != nil {
		t.Fatalf("AddOccupant() = %v", err)
	}

	if !room.RemoveOccupant("alice") {
		t.Error("RemoveOccupant(alice) = false, want true")
	}
	if room.RemoveOccupant("alice") {
		t.Error("second RemoveOccupant(alice) = true, want false")
	}
	if room.OccupantCount() != 1 {
		t.Errorf("OccupantCount() = %d, want 1", room.OccupantCount())
	}

	// The nickname is free again after removal.
	if _, err := room.AddOccupant("alice", "alice2@example.org", "participant", false); err != nil {
		t.Errorf("AddOccupant after removal = %v", err)
	}
}

func TestUpdateConfig(t *testing.T) {
	room := NewRoom("lobby", RoomConfig{Subject: "old", Persistent: true})

	room.UpdateConfig(RoomConfig{Subject: "new", MaxOccupants: 50})

	cfg := room.Config()
	if cfg.Subject != "new" {
		t.Errorf("Subject = %q, want \"new\"", cfg.Subject)
	}
	if cfg.Persistent {
		t.Error("Persistent = true, want false (remote config wins wholesale)")
	}
	if cfg.MaxOccupants != 50 {
		t.Errorf("MaxOccupants = %d, want 50", cfg.MaxOccupants)
	}
}

// Package domain contains core concepts of the chat system.
// This file defines Participant entities and related invariants.
// No runtime, network, or UI logic should be added here.
package domain

import "time"

// Participant is a registered presence in the room.
// The name is the identity and is unique among live participants.
type Participant struct {
	Name          string    `json:"name"`
	LastHeartbeat time.Time `json:"lastStatus"`
}

// IsStale reports whether no heartbeat was received within threshold of now.
func (p Participant) IsStale(now time.Time, threshold time.Duration) bool {
	return now.Sub(p.LastHeartbeat) > threshold
}

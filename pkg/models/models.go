package models

import (
	"time"

	"github.com/google/uuid"
)

// Room is a shared listening session. Exactly one room may exist per host
// identity, enforced by the unique index on Host.
type Room struct {
	ID            uuid.UUID `json:"id" gorm:"primaryKey"`
	Code          string    `json:"code" gorm:"unique"`
	Host          string    `json:"-" gorm:"uniqueIndex"`
	GuestCanPause bool      `json:"guest_can_pause"`
	VotesToSkip   int       `json:"votes_to_skip"`
	CurrentSong   string    `json:"current_song"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Vote is one guest's skip request for the track currently playing in a room.
// The composite index keeps a voter to a single live vote per (room, song).
type Vote struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey"`
	RoomID    uuid.UUID `json:"room_id" gorm:"uniqueIndex:idx_room_song_voter"`
	SongID    string    `json:"song_id" gorm:"uniqueIndex:idx_room_song_voter"`
	Voter     string    `json:"voter" gorm:"uniqueIndex:idx_room_song_voter"`
	CreatedAt time.Time `json:"created_at"`
}

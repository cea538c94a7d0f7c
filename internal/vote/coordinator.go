package vote

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/music-room-system/pkg/database"
	"github.com/music-room-system/pkg/events"
	"github.com/music-room-system/pkg/models"
)

var (
	// ErrAlreadyVoted is returned when a voter already voted for the current track.
	ErrAlreadyVoted = errors.New("already voted for this track")
	// ErrNoCurrentSong is returned when the room has no observed track to vote on.
	ErrNoCurrentSong = errors.New("no current song")
)

// Store is the vote persistence consumed by the coordinator.
type Store interface {
	CastVote(roomID uuid.UUID, songID, voter string, threshold int) (int, bool, error)
	CountVotes(roomID uuid.UUID, songID string) (int, error)
	ClearVotes(roomID uuid.UUID, songID string) error
	SetCurrentSong(roomID uuid.UUID, songID string) (bool, error)
}

// Skipper advances playback on the host's account.
type Skipper interface {
	Skip(ctx context.Context, hostID string) error
}

// Publisher emits room events.
type Publisher interface {
	Publish(ctx context.Context, eventType events.EventType, roomCode string, payload interface{}) error
}

// Result is the outcome of a skip vote.
type Result struct {
	Skipped  bool `json:"skipped"`
	Votes    int  `json:"votes"`
	Required int  `json:"votes_required"`
}

// Coordinator tallies skip votes per (room, track) and triggers the skip
// action when a room's threshold is reached.
type Coordinator struct {
	store   Store
	skipper Skipper
	events  Publisher
}

func NewCoordinator(store Store, skipper Skipper, events Publisher) *Coordinator {
	return &Coordinator{
		store:   store,
		skipper: skipper,
		events:  events,
	}
}

// CastSkipVote registers a skip request against the room's current track.
// The host bypasses voting: its request clears the tally and skips outright.
// A guest's vote either reaches the threshold, triggering the skip, or
// increments the tally.
func (c *Coordinator) CastSkipVote(ctx context.Context, sessionID string, room *models.Room) (*Result, error) {
	if room.CurrentSong == "" {
		return nil, ErrNoCurrentSong
	}

	if sessionID == room.Host {
		if err := c.store.ClearVotes(room.ID, room.CurrentSong); err != nil {
			return nil, fmt.Errorf("failed to clear votes: %w", err)
		}
		return c.triggerSkip(ctx, room, 0, true)
	}

	count, reached, err := c.store.CastVote(room.ID, room.CurrentSong, sessionID, room.VotesToSkip)
	if err != nil {
		if errors.Is(err, database.ErrDuplicateVote) {
			return nil, ErrAlreadyVoted
		}
		return nil, fmt.Errorf("failed to cast vote: %w", err)
	}

	if reached {
		return c.triggerSkip(ctx, room, count, false)
	}

	c.publish(ctx, events.EventTypeVoteCast, room.Code, events.VoteCastPayload{
		SongID:   room.CurrentSong,
		Votes:    count,
		Required: room.VotesToSkip,
	})

	return &Result{Votes: count, Required: room.VotesToSkip}, nil
}

func (c *Coordinator) triggerSkip(ctx context.Context, room *models.Room, votes int, byHost bool) (*Result, error) {
	if err := c.skipper.Skip(ctx, room.Host); err != nil {
		return nil, err
	}

	c.publish(ctx, events.EventTypeTrackSkipped, room.Code, events.TrackSkippedPayload{
		SongID: room.CurrentSong,
		ByHost: byHost,
	})

	return &Result{Skipped: true, Votes: votes, Required: room.VotesToSkip}, nil
}

// OnTrackObserved reacts to a now-playing observation for a room. When the
// observed track differs from the room's current one, the current song is
// updated and all of the room's votes are cleared. Repeated observations of
// the same track are no-ops.
func (c *Coordinator) OnTrackObserved(ctx context.Context, room *models.Room, songID string) error {
	changed, err := c.store.SetCurrentSong(room.ID, songID)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	room.CurrentSong = songID
	c.publish(ctx, events.EventTypeTrackChanged, room.Code, events.TrackChangedPayload{
		SongID: songID,
	})
	return nil
}

// CountVotes reports the live tally for a room's track.
func (c *Coordinator) CountVotes(room *models.Room, songID string) (int, error) {
	return c.store.CountVotes(room.ID, songID)
}

func (c *Coordinator) publish(ctx context.Context, eventType events.EventType, roomCode string, payload interface{}) {
	if c.events == nil {
		return
	}
	if err := c.events.Publish(ctx, eventType, roomCode, payload); err != nil {
		log.Printf("Warning: failed to publish %s event: %v", eventType, err)
	}
}

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

type EventType string

const (
	EventTypeRoomCreated  EventType = "room_created"
	EventTypeRoomUpdated  EventType = "room_updated"
	EventTypeRoomClosed   EventType = "room_closed"
	EventTypeVoteCast     EventType = "vote_cast"
	EventTypeTrackSkipped EventType = "track_skipped"
	EventTypeTrackChanged EventType = "track_changed"
)

// Event is the envelope published for every room happening. RoomCode keys
// messages so consumers can route per room.
type Event struct {
	Type      EventType       `json:"type"`
	RoomCode  string          `json:"room_code"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type KafkaClient struct {
	writer *kafka.Writer
	reader *kafka.Reader
}

func NewKafkaClient(brokers []string, topic string, groupID string) *KafkaClient {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		StartOffset: kafka.LastOffset,
	})

	return &KafkaClient{
		writer: writer,
		reader: reader,
	}
}

// Publish writes an event for a room. The payload is marshalled into the
// event envelope; a nil payload is allowed.
func (k *KafkaClient) Publish(ctx context.Context, eventType EventType, roomCode string, payload interface{}) error {
	event := Event{
		Type:      eventType,
		RoomCode:  roomCode,
		Timestamp: time.Now().UTC(),
	}

	if payload != nil {
		payloadJSON, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		event.Payload = payloadJSON
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(roomCode),
		Value: eventJSON,
	}

	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

// ConsumeEvents reads events until ctx is cancelled, passing each to handler.
func (k *KafkaClient) ConsumeEvents(ctx context.Context, handler func(Event) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			msg, err := k.reader.ReadMessage(ctx)
			if err != nil {
				return fmt.Errorf("failed to read message: %w", err)
			}

			var event Event
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal event: %w", err)
			}

			if err := handler(event); err != nil {
				return fmt.Errorf("failed to handle event: %w", err)
			}
		}
	}
}

func (k *KafkaClient) Close() error {
	if err := k.writer.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}
	if err := k.reader.Close(); err != nil {
		return fmt.Errorf("failed to close reader: %w", err)
	}
	return nil
}

// Event payload types
type VoteCastPayload struct {
	SongID   string `json:"song_id"`
	Votes    int    `json:"votes"`
	Required int    `json:"votes_required"`
}

type TrackSkippedPayload struct {
	SongID string `json:"song_id"`
	ByHost bool   `json:"by_host"`
}

type TrackChangedPayload struct {
	SongID string `json:"song_id"`
}

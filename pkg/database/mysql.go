package database

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/music-room-system/pkg/models"
)

const codeLength = 6

// ErrDuplicateVote is returned when a voter already holds a live vote for
// the same (room, song).
var ErrDuplicateVote = errors.New("duplicate vote")

type MySQLDB struct {
	*gorm.DB
}

func NewMySQLDB(host, port, user, password, dbname string) (*MySQLDB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		user, password, host, port, dbname)

	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	}

	db, err := gorm.Open(mysql.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := autoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &MySQLDB{DB: db}, nil
}

func autoMigrate(db *gorm.DB) error {
	log.Println("Running database migrations...")

	return db.AutoMigrate(
		&models.Room{},
		&models.Vote{},
	)
}

// Room operations

// UpsertRoomByHost creates a room for host, or updates the settings of the
// room the host already owns. The host's row is locked for the duration of
// the transaction so concurrent double-submissions cannot create two rooms.
// Reports whether a new room was created.
func (db *MySQLDB) UpsertRoomByHost(host string, guestCanPause bool, votesToSkip int) (*models.Room, bool, error) {
	var room models.Room
	var created bool

	err := db.Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&room, "host = ?", host).Error
		switch {
		case err == nil:
			room.GuestCanPause = guestCanPause
			room.VotesToSkip = votesToSkip
			return tx.Model(&room).
				Select("guest_can_pause", "votes_to_skip").
				Updates(&room).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			code, err := generateUniqueCode(tx)
			if err != nil {
				return err
			}
			room = models.Room{
				ID:            uuid.New(),
				Code:          code,
				Host:          host,
				GuestCanPause: guestCanPause,
				VotesToSkip:   votesToSkip,
			}
			if err := tx.Create(&room).Error; err != nil {
				// A concurrent create for the same host can win the race and
				// trip the unique index; fall back to updating its row.
				if !errors.Is(err, gorm.ErrDuplicatedKey) {
					return err
				}
				var existing models.Room
				if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
					First(&existing, "host = ?", host).Error; err != nil {
					return err
				}
				room = existing
				room.GuestCanPause = guestCanPause
				room.VotesToSkip = votesToSkip
				return tx.Model(&room).
					Select("guest_can_pause", "votes_to_skip").
					Updates(&room).Error
			}
			created = true
			return nil
		default:
			return err
		}
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert room: %w", err)
	}

	return &room, created, nil
}

func (db *MySQLDB) GetRoomByCode(code string) (*models.Room, error) {
	var room models.Room
	if err := db.First(&room, "code = ?", code).Error; err != nil {
		return nil, err
	}
	return &room, nil
}

func (db *MySQLDB) GetRoomByHost(host string) (*models.Room, error) {
	var room models.Room
	if err := db.First(&room, "host = ?", host).Error; err != nil {
		return nil, err
	}
	return &room, nil
}

func (db *MySQLDB) ListRooms() ([]*models.Room, error) {
	var rooms []*models.Room
	if err := db.Order("created_at ASC").Find(&rooms).Error; err != nil {
		return nil, err
	}
	return rooms, nil
}

// DeleteRoom removes a room and all of its votes.
func (db *MySQLDB) DeleteRoom(roomID uuid.UUID) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.Vote{}, "room_id = ?", roomID).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Room{}, "id = ?", roomID).Error
	})
}

// Vote operations

// CastVote records a skip vote and decides threshold crossing in a single
// transaction. The room row is locked first, serializing voters per room, so
// two concurrent voters cannot both observe a below-threshold tally and the
// threshold fires exactly once: the crossing transaction also clears the
// tally. A second vote from the same voter fails with ErrDuplicateVote.
// Returns the tally after the insert and whether the threshold was reached.
func (db *MySQLDB) CastVote(roomID uuid.UUID, songID, voter string, threshold int) (int, bool, error) {
	var count int64
	var skipped bool

	err := db.Transaction(func(tx *gorm.DB) error {
		var room models.Room
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&room, "id = ?", roomID).Error; err != nil {
			return err
		}

		vote := models.Vote{
			ID:     uuid.New(),
			RoomID: roomID,
			SongID: songID,
			Voter:  voter,
		}
		if err := tx.Create(&vote).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateVote
			}
			return err
		}

		if err := tx.Model(&models.Vote{}).
			Where("room_id = ? AND song_id = ?", roomID, songID).
			Count(&count).Error; err != nil {
			return err
		}

		if int(count) >= threshold {
			if err := tx.Delete(&models.Vote{}, "room_id = ? AND song_id = ?", roomID, songID).Error; err != nil {
				return err
			}
			skipped = true
		}
		return nil
	})
	if err != nil {
		return 0, false, err
	}

	return int(count), skipped, nil
}

func (db *MySQLDB) CountVotes(roomID uuid.UUID, songID string) (int, error) {
	var count int64
	if err := db.Model(&models.Vote{}).
		Where("room_id = ? AND song_id = ?", roomID, songID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// ClearVotes deletes all votes for (room, song).
func (db *MySQLDB) ClearVotes(roomID uuid.UUID, songID string) error {
	return db.Delete(&models.Vote{}, "room_id = ? AND song_id = ?", roomID, songID).Error
}

// SetCurrentSong records the track observed playing in a room. When the
// observed track differs from the stored one, the room's votes are cleared in
// the same transaction as the update, so a stale tally never survives a track
// change. Calls observing the current track are no-ops. Reports whether the
// track changed.
func (db *MySQLDB) SetCurrentSong(roomID uuid.UUID, songID string) (bool, error) {
	var changed bool

	err := db.Transaction(func(tx *gorm.DB) error {
		var room models.Room
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&room, "id = ?", roomID).Error; err != nil {
			return err
		}

		if room.CurrentSong == songID {
			return nil
		}

		if err := tx.Model(&room).Update("current_song", songID).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Vote{}, "room_id = ?", roomID).Error; err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to update current song: %w", err)
	}

	return changed, nil
}

func generateUniqueCode(tx *gorm.DB) (string, error) {
	for i := 0; i < 10; i++ {
		code := generateRoomCode()
		var count int64
		if err := tx.Model(&models.Room{}).Where("code = ?", code).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return code, nil
		}
	}
	return "", errors.New("failed to generate unique room code")
}

func generateRoomCode() string {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	code := make([]byte, codeLength)
	for i := range code {
		code[i] = charset[rand.Intn(len(charset))]
	}
	return string(code)
}

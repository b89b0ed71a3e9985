package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"chathub/internal/app/user"
	"chathub/internal/realtime"
)

// Room is a chat room row.
type Room struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	CreatedBy   int64     `json:"created_by"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// RoomSummary is a room plus the member's unread count, as listed on the
// room index.
type RoomSummary struct {
	Room
	UnreadCount int64 `json:"unread_count"`
}

// Member is a room membership joined with its user.
type Member struct {
	User     user.User `json:"user"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

const roomColumns = `id, name, slug, type, description, created_by, is_active, created_at`

// CreateRoom inserts a room and its creator's admin membership in one
// transaction.
func (s *Store) CreateRoom(ctx context.Context, name, slug, roomType, description string, createdBy int64) (Room, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Room{}, fmt.Errorf("begin create room: %w", err)
	}
	defer tx.Rollback(ctx)

	var room Room
	err = tx.QueryRow(ctx,
		`INSERT INTO chat_rooms (name, slug, type, description, created_by)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+roomColumns,
		name, slug, roomType, description, createdBy,
	).Scan(&room.ID, &room.Name, &room.Slug, &room.Type, &room.Description,
		&room.CreatedBy, &room.IsActive, &room.CreatedAt)
	if err != nil {
		return Room{}, fmt.Errorf("insert room: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO room_members (room_id, user_id, role) VALUES ($1, $2, 'admin')`,
		room.ID, createdBy,
	)
	if err != nil {
		return Room{}, fmt.Errorf("insert creator membership: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Room{}, fmt.Errorf("commit create room: %w", err)
	}

	return room, nil
}

// GetRoom fetches one active room.
func (s *Store) GetRoom(ctx context.Context, roomID int64) (Room, error) {
	var room Room
	err := s.pool.QueryRow(ctx,
		`SELECT `+roomColumns+` FROM chat_rooms WHERE id = $1 AND is_active`,
		roomID,
	).Scan(&room.ID, &room.Name, &room.Slug, &room.Type, &room.Description,
		&room.CreatedBy, &room.IsActive, &room.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return Room{}, ErrNotFound
	}
	if err != nil {
		return Room{}, fmt.Errorf("select room: %w", err)
	}

	return room, nil
}

// ListJoinedRooms lists the user's rooms with their unread counts. A
// message is unread when it arrived after the member's last read mark and
// was written by someone else.
func (s *Store) ListJoinedRooms(ctx context.Context, userID int64) ([]RoomSummary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT r.id, r.name, r.slug, r.type, r.description, r.created_by, r.is_active, r.created_at,
		        (SELECT count(*) FROM messages m
		          WHERE m.room_id = r.id
		            AND m.deleted_at IS NULL
		            AND m.user_id <> rm.user_id
		            AND m.created_at > COALESCE(rm.last_read_at, rm.joined_at)) AS unread_count
		   FROM chat_rooms r
		   JOIN room_members rm ON rm.room_id = r.id
		  WHERE rm.user_id = $1 AND r.is_active
		  ORDER BY r.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select joined rooms: %w", err)
	}
	defer rows.Close()

	summaries := make([]RoomSummary, 0)
	for rows.Next() {
		var rs RoomSummary
		if err := rows.Scan(&rs.ID, &rs.Name, &rs.Slug, &rs.Type, &rs.Description,
			&rs.CreatedBy, &rs.IsActive, &rs.CreatedAt, &rs.UnreadCount); err != nil {
			return nil, fmt.Errorf("scan joined room: %w", err)
		}
		summaries = append(summaries, rs)
	}

	return summaries, rows.Err()
}

// ListMembers lists the room's memberships joined with their users.
func (s *Store) ListMembers(ctx context.Context, roomID int64) ([]Member, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT u.id, u.name, u.avatar_url, rm.role, rm.joined_at
		   FROM room_members rm
		   JOIN users u ON u.id = rm.user_id
		  WHERE rm.room_id = $1
		  ORDER BY rm.joined_at`,
		roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("select members: %w", err)
	}
	defer rows.Close()

	members := make([]Member, 0)
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.User.ID, &m.User.Name, &m.User.AvatarURL, &m.Role, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}

	return members, rows.Err()
}

// RoomVisibility implements realtime.MembershipStore.
func (s *Store) RoomVisibility(ctx context.Context, roomID int64) (realtime.RoomVisibility, error) {
	var roomType string
	err := s.pool.QueryRow(ctx,
		`SELECT type FROM chat_rooms WHERE id = $1 AND is_active`,
		roomID,
	).Scan(&roomType)

	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("select room visibility: %w", err)
	}

	return realtime.RoomVisibility(roomType), nil
}

// IsMember implements realtime.MembershipStore. Always a fresh read, so
// admission sees membership changes made since any previous attempt.
func (s *Store) IsMember(ctx context.Context, roomID, userID int64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM room_members WHERE room_id = $1 AND user_id = $2)`,
		roomID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("select membership: %w", err)
	}

	return exists, nil
}

// AddMember inserts a membership row.
func (s *Store) AddMember(ctx context.Context, roomID, userID int64, role string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO room_members (room_id, user_id, role) VALUES ($1, $2, $3)`,
		roomID, userID, role,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyMember
	}
	if err != nil {
		return fmt.Errorf("insert membership: %w", err)
	}

	return nil
}

// RemoveMember deletes a membership row. The room creator's membership
// cannot be removed this way.
func (s *Store) RemoveMember(ctx context.Context, roomID, userID int64) error {
	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if room.CreatedBy == userID {
		return ErrCreatorCannotLeave
	}

	tag, err := s.pool.Exec(ctx,
		`DELETE FROM room_members WHERE room_id = $1 AND user_id = $2`,
		roomID, userID,
	)
	if err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotMember
	}

	return nil
}

// MarkRead advances the member's read mark to now. Clients call this when
// focusing a room, so unread counts stay consistent across sessions.
func (s *Store) MarkRead(ctx context.Context, roomID, userID int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE room_members SET last_read_at = now() WHERE room_id = $1 AND user_id = $2`,
		roomID, userID,
	)
	if err != nil {
		return fmt.Errorf("update read mark: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotMember
	}

	return nil
}

// isUniqueViolation reports a PostgreSQL unique constraint violation (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"chathub/internal/realtime"
)

// DefaultPageSize caps one page of the message history (the catch-up fetch).
const DefaultPageSize = 50

// CreateMessageParams carries one durable message write.
type CreateMessageParams struct {
	RoomID      int64
	UserID      int64
	Content     string
	Type        string
	ReplyTo     *int64
	Attachments []AttachmentParams
}

// AttachmentParams references an already-uploaded blob.
type AttachmentParams struct {
	FileKey  string
	FileName string
	MimeType string
	FileSize int64
}

// CreateMessage inserts the message and its attachments in one transaction
// and returns the full wire representation.
func (s *Store) CreateMessage(ctx context.Context, params CreateMessageParams) (realtime.Message, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return realtime.Message{}, fmt.Errorf("begin create message: %w", err)
	}
	defer tx.Rollback(ctx)

	msg := realtime.Message{
		RoomID:  params.RoomID,
		Content: params.Content,
		Type:    params.Type,
		ReplyTo: params.ReplyTo,
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO messages (room_id, user_id, content, type, reply_to)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		params.RoomID, params.UserID, params.Content, params.Type, params.ReplyTo,
	).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return realtime.Message{}, fmt.Errorf("insert message: %w", err)
	}

	for _, a := range params.Attachments {
		att := realtime.Attachment{
			FileKey:  a.FileKey,
			FileName: a.FileName,
			MimeType: a.MimeType,
			FileSize: a.FileSize,
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO message_attachments (message_id, file_key, file_name, mime_type, file_size)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id`,
			msg.ID, a.FileKey, a.FileName, a.MimeType, a.FileSize,
		).Scan(&att.ID)
		if err != nil {
			return realtime.Message{}, fmt.Errorf("insert attachment: %w", err)
		}

		msg.Attachments = append(msg.Attachments, att)
	}

	err = tx.QueryRow(ctx,
		`SELECT name, avatar_url FROM users WHERE id = $1`,
		params.UserID,
	).Scan(&msg.User.Name, &msg.User.AvatarURL)
	if err != nil {
		return realtime.Message{}, fmt.Errorf("select message author: %w", err)
	}
	msg.User.ID = params.UserID

	if err := tx.Commit(ctx); err != nil {
		return realtime.Message{}, fmt.Errorf("commit create message: %w", err)
	}

	return msg, nil
}

// ListMessages returns one history page for the room: the newest messages
// older than beforeID (or the newest overall when beforeID is zero),
// ordered oldest-first within the page. This is the catch-up fetch clients
// run after a connectivity gap.
func (s *Store) ListMessages(ctx context.Context, roomID, beforeID int64, limit int) ([]realtime.Message, error) {
	if limit <= 0 || limit > DefaultPageSize {
		limit = DefaultPageSize
	}

	rows, err := s.pool.Query(ctx,
		`SELECT m.id, m.room_id, m.content, m.type, m.reply_to, m.is_edited, m.edited_at, m.created_at,
		        u.id, u.name, u.avatar_url
		   FROM messages m
		   JOIN users u ON u.id = m.user_id
		  WHERE m.room_id = $1
		    AND m.deleted_at IS NULL
		    AND ($2 = 0 OR m.id < $2)
		  ORDER BY m.id DESC
		  LIMIT $3`,
		roomID, beforeID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select messages: %w", err)
	}
	defer rows.Close()

	page := make([]realtime.Message, 0, limit)
	for rows.Next() {
		var m realtime.Message
		if err := rows.Scan(&m.ID, &m.RoomID, &m.Content, &m.Type, &m.ReplyTo,
			&m.IsEdited, &m.EditedAt, &m.CreatedAt,
			&m.User.ID, &m.User.Name, &m.User.AvatarURL); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		page = append(page, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.loadAttachments(ctx, page); err != nil {
		return nil, err
	}

	// Reverse to oldest-first for in-order client merging.
	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}

	return page, nil
}

// GetMessage fetches one non-deleted message with author and attachments.
func (s *Store) GetMessage(ctx context.Context, messageID int64) (realtime.Message, error) {
	var m realtime.Message
	err := s.pool.QueryRow(ctx,
		`SELECT m.id, m.room_id, m.content, m.type, m.reply_to, m.is_edited, m.edited_at, m.created_at,
		        u.id, u.name, u.avatar_url
		   FROM messages m
		   JOIN users u ON u.id = m.user_id
		  WHERE m.id = $1 AND m.deleted_at IS NULL`,
		messageID,
	).Scan(&m.ID, &m.RoomID, &m.Content, &m.Type, &m.ReplyTo,
		&m.IsEdited, &m.EditedAt, &m.CreatedAt,
		&m.User.ID, &m.User.Name, &m.User.AvatarURL)

	if errors.Is(err, pgx.ErrNoRows) {
		return realtime.Message{}, ErrNotFound
	}
	if err != nil {
		return realtime.Message{}, fmt.Errorf("select message: %w", err)
	}

	msgs := []realtime.Message{m}
	if err := s.loadAttachments(ctx, msgs); err != nil {
		return realtime.Message{}, err
	}

	return msgs[0], nil
}

// UpdateMessage edits a text message's content. Only the author may edit,
// and only within the edit window.
func (s *Store) UpdateMessage(ctx context.Context, messageID, editorID int64, content string) (realtime.Message, error) {
	current, err := s.GetMessage(ctx, messageID)
	if err != nil {
		return realtime.Message{}, err
	}

	if current.User.ID != editorID {
		return realtime.Message{}, ErrNotOwner
	}
	if current.Type != "text" || time.Since(current.CreatedAt) > EditWindow {
		return realtime.Message{}, ErrEditWindowExpired
	}

	err = s.pool.QueryRow(ctx,
		`UPDATE messages
		    SET content = $2, is_edited = TRUE, edited_at = now()
		  WHERE id = $1 AND deleted_at IS NULL
		 RETURNING content, is_edited, edited_at`,
		messageID, content,
	).Scan(&current.Content, &current.IsEdited, &current.EditedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return realtime.Message{}, ErrNotFound
	}
	if err != nil {
		return realtime.Message{}, fmt.Errorf("update message: %w", err)
	}

	return current, nil
}

// DeleteMessage soft-deletes a message and returns its final representation
// so the caller can publish the deletion and clean up attachment blobs.
// Only the author may delete, and only within the delete window.
func (s *Store) DeleteMessage(ctx context.Context, messageID, actorID int64) (realtime.Message, error) {
	current, err := s.GetMessage(ctx, messageID)
	if err != nil {
		return realtime.Message{}, err
	}

	if current.User.ID != actorID {
		return realtime.Message{}, ErrNotOwner
	}
	if time.Since(current.CreatedAt) > DeleteWindow {
		return realtime.Message{}, ErrDeleteWindowExpired
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE messages SET deleted_at = now() WHERE id = $1 AND deleted_at IS NULL`,
		messageID,
	)
	if err != nil {
		return realtime.Message{}, fmt.Errorf("delete message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return realtime.Message{}, ErrNotFound
	}

	return current, nil
}

// loadAttachments hydrates the attachments of the given messages in place.
func (s *Store) loadAttachments(ctx context.Context, msgs []realtime.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(msgs))
	index := make(map[int64]*realtime.Message, len(msgs))
	for i := range msgs {
		ids = append(ids, msgs[i].ID)
		index[msgs[i].ID] = &msgs[i]
	}

	rows, err := s.pool.Query(ctx,
		`SELECT message_id, id, file_key, file_name, mime_type, file_size
		   FROM message_attachments
		  WHERE message_id = ANY($1)
		  ORDER BY id`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("select attachments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var messageID int64
		var att realtime.Attachment
		if err := rows.Scan(&messageID, &att.ID, &att.FileKey, &att.FileName, &att.MimeType, &att.FileSize); err != nil {
			return fmt.Errorf("scan attachment: %w", err)
		}
		if msg, ok := index[messageID]; ok {
			msg.Attachments = append(msg.Attachments, att)
		}
	}

	return rows.Err()
}

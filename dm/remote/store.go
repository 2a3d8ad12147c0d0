////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

// Package remote is the authoritative server-side message store and friend
// list, kept in PostgreSQL.
package remote

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/elixxir/dmsync/dm"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id          TEXT PRIMARY KEY,
	sender_id   TEXT NOT NULL,
	receiver_id TEXT NOT NULL,
	content     TEXT NOT NULL,
	sent_at     BIGINT NOT NULL,
	is_read     BOOLEAN NOT NULL DEFAULT FALSE,
	reply_to_id TEXT
);
CREATE INDEX IF NOT EXISTS messages_receiver_idx ON messages (receiver_id);
CREATE INDEX IF NOT EXISTS messages_sender_idx ON messages (sender_id);

CREATE TABLE IF NOT EXISTS admin_broadcasts (
	id        TEXT PRIMARY KEY,
	sender_id TEXT NOT NULL,
	content   TEXT NOT NULL,
	sent_at   BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS friendships (
	requester_id TEXT NOT NULL,
	addressee_id TEXT NOT NULL,
	status       TEXT NOT NULL,
	PRIMARY KEY (requester_id, addressee_id)
);
`

const messageColumns = `id, sender_id, receiver_id, content, sent_at, ` +
	`is_read, COALESCE(reply_to_id, '')`

// Store is a dm.RemoteStore and dm.FriendGate over a PostgreSQL pool.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to the database at databaseURL.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create database pool")
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "failed to reach database")
	}

	jww.INFO.Printf("[DM Remote] Connected to database")
	return &Store{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return errors.Wrap(err, "failed to migrate schema")
	}
	return nil
}

// FetchReceived returns every peer message addressed to identityID.
func (s *Store) FetchReceived(ctx context.Context, identityID string) (
	[]dm.Message, error) {
	return s.queryMessages(ctx, `SELECT `+messageColumns+
		` FROM messages WHERE receiver_id = $1 ORDER BY sent_at, id`,
		identityID)
}

// FetchSent returns every peer message sent by identityID.
func (s *Store) FetchSent(ctx context.Context, identityID string) (
	[]dm.Message, error) {
	return s.queryMessages(ctx, `SELECT `+messageColumns+
		` FROM messages WHERE sender_id = $1 ORDER BY sent_at, id`,
		identityID)
}

// FetchBroadcasts returns every administrative broadcast.
func (s *Store) FetchBroadcasts(ctx context.Context) ([]dm.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, sender_id, content, sent_at
		FROM admin_broadcasts ORDER BY sent_at, id
	`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch broadcasts")
	}
	defer rows.Close()

	var msgs []dm.Message
	for rows.Next() {
		var sentAt int64
		msg := dm.Message{
			ReceiverID: dm.BroadcastReceiver,
			Type:       dm.AdminBroadcastType,
		}
		if err = rows.Scan(&msg.ID, &msg.SenderID, &msg.Content,
			&sentAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan broadcast")
		}
		msg.Timestamp = fromMillis(sentAt)
		msgs = append(msgs, msg)
	}
	return msgs, errors.Wrap(rows.Err(), "failed to read broadcasts")
}

// MarkRead sets is_read on every unread message from senderID to viewerID.
func (s *Store) MarkRead(ctx context.Context, senderID, viewerID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE messages SET is_read = TRUE
		WHERE sender_id = $1 AND receiver_id = $2 AND is_read = FALSE
	`, senderID, viewerID)
	if err != nil {
		return errors.Wrapf(err, "failed to mark messages from %s read",
			senderID)
	}

	jww.TRACE.Printf("[DM Remote] Marked %d messages from %s to %s read",
		tag.RowsAffected(), senderID, viewerID)
	return nil
}

// StoreMessage inserts the message unless its ID is already stored.
// Broadcasts go to their own table.
func (s *Store) StoreMessage(ctx context.Context, msg dm.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	var err error
	if msg.IsBroadcast() {
		_, err = s.pool.Exec(ctx, `
			INSERT INTO admin_broadcasts (id, sender_id, content, sent_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO NOTHING
		`, msg.ID, msg.SenderID, msg.Content, toMillis(msg.Timestamp))
	} else {
		_, err = s.pool.Exec(ctx, `
			INSERT INTO messages (id, sender_id, receiver_id, content,
				sent_at, is_read, reply_to_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING
		`, msg.ID, msg.SenderID, msg.ReceiverID, msg.Content,
			toMillis(msg.Timestamp), msg.Read, nullable(msg.ReplyToID))
	}
	if err != nil {
		return errors.Wrapf(err, "failed to store message %s", msg.ID)
	}
	return nil
}

// StatusOf returns the friendship status between viewerID and peerID in
// either direction.
func (s *Store) StatusOf(ctx context.Context, viewerID, peerID string) (
	dm.FriendshipStatus, error) {
	var status string
	err := s.pool.QueryRow(ctx, `
		SELECT status FROM friendships
		WHERE (requester_id = $1 AND addressee_id = $2)
		   OR (requester_id = $2 AND addressee_id = $1)
		ORDER BY CASE status WHEN 'accepted' THEN 0 ELSE 1 END
		LIMIT 1
	`, viewerID, peerID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return dm.FriendNone, nil
		}
		return dm.FriendNone, errors.Wrapf(err,
			"failed to look up friendship with %s", peerID)
	}
	return dm.ParseFriendshipStatus(status)
}

// SetFriendship records a friendship row from requesterID to addresseeID.
func (s *Store) SetFriendship(ctx context.Context, requesterID,
	addresseeID string, status dm.FriendshipStatus) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO friendships (requester_id, addressee_id, status)
		VALUES ($1, $2, $3)
		ON CONFLICT (requester_id, addressee_id)
		DO UPDATE SET status = EXCLUDED.status
	`, requesterID, addresseeID, status.String())
	if err != nil {
		return errors.Wrapf(err, "failed to set friendship %s -> %s",
			requesterID, addresseeID)
	}
	return nil
}

func (s *Store) queryMessages(ctx context.Context, query string,
	args ...interface{}) ([]dm.Message, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch messages")
	}
	defer rows.Close()

	var msgs []dm.Message
	for rows.Next() {
		var sentAt int64
		msg := dm.Message{Type: dm.TextType}
		if err = rows.Scan(&msg.ID, &msg.SenderID, &msg.ReceiverID,
			&msg.Content, &sentAt, &msg.Read, &msg.ReplyToID); err != nil {
			return nil, errors.Wrap(err, "failed to scan message")
		}
		msg.Timestamp = fromMillis(sentAt)
		msgs = append(msgs, msg)
	}
	return msgs, errors.Wrap(rows.Err(), "failed to read messages")
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}

// nullable maps an empty string to SQL NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

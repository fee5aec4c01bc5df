package annotation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgu-next-gen-cctv/pipe-label/internal/db"
)

const DefaultDBFilename = "pipelabel.db"

// SQLiteStore keeps the index in the videos and clip_labels tables and
// appends every successful assignment to label_events.
type SQLiteStore struct {
	db     *db.DB
	logger *slog.Logger
}

func NewSQLiteStore(database *db.DB, logger *slog.Logger) *SQLiteStore {
	return &SQLiteStore{db: database, logger: logger}
}

func (s *SQLiteStore) Load(ctx context.Context) (*Index, error) {
	conn := s.db.Conn()

	var ix Index
	err := conn.QueryRowContext(ctx, `SELECT clip_size FROM index_meta WHERE id = 1`).Scan(&ix.ClipSize)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrIndexNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read index metadata: %w", err)
	}

	rows, err := conn.QueryContext(ctx, `
		SELECT position, video_name, total_frames
		FROM videos ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	defer rows.Close()

	positions := make(map[int]int)
	for rows.Next() {
		var pos int
		var e VideoEntry
		if err := rows.Scan(&pos, &e.VideoName, &e.TotalFrames); err != nil {
			return nil, err
		}
		e.Labels = []int{}
		positions[pos] = len(ix.LabelList)
		ix.VideoList = append(ix.VideoList, e.VideoName)
		ix.LabelList = append(ix.LabelList, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	labelRows, err := conn.QueryContext(ctx, `
		SELECT video_position, label
		FROM clip_labels ORDER BY video_position, clip_index
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list clip labels: %w", err)
	}
	defer labelRows.Close()

	for labelRows.Next() {
		var pos, label int
		if err := labelRows.Scan(&pos, &label); err != nil {
			return nil, err
		}
		i, ok := positions[pos]
		if !ok {
			continue
		}
		ix.LabelList[i].Labels = append(ix.LabelList[i].Labels, label)
	}
	if err := labelRows.Err(); err != nil {
		return nil, err
	}

	if ix.VideoList == nil {
		ix.VideoList = []string{}
		ix.LabelList = []VideoEntry{}
	}
	return &ix, nil
}

// Save replaces the whole index. Label history is kept.
func (s *SQLiteStore) Save(ctx context.Context, ix *Index) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM clip_labels`,
			`DELETE FROM videos`,
			`DELETE FROM index_meta`,
		} {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to clear index: %w", err)
			}
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO index_meta (id, clip_size, created_at) VALUES (1, ?, ?)`,
			ix.ClipSize, time.Now().UTC().Format(time.RFC3339),
		); err != nil {
			return fmt.Errorf("failed to write index metadata: %w", err)
		}

		videoStmt, err := tx.PrepareContext(ctx, `INSERT INTO videos (position, video_name, total_frames) VALUES (?, ?, ?)`)
		if err != nil {
			return err
		}
		defer videoStmt.Close()

		labelStmt, err := tx.PrepareContext(ctx, `INSERT INTO clip_labels (video_position, clip_index, label) VALUES (?, ?, ?)`)
		if err != nil {
			return err
		}
		defer labelStmt.Close()

		for pos, e := range ix.LabelList {
			if _, err := videoStmt.ExecContext(ctx, pos, e.VideoName, e.TotalFrames); err != nil {
				return fmt.Errorf("failed to insert video %s: %w", e.VideoName, err)
			}
			for clip, label := range e.Labels {
				if _, err := labelStmt.ExecContext(ctx, pos, clip, label); err != nil {
					return fmt.Errorf("failed to insert slot %d of %s: %w", clip, e.VideoName, err)
				}
			}
		}
		return nil
	})
}

func (s *SQLiteStore) SetLabel(ctx context.Context, videoName string, clip int, labelName string, labels LabelIndexer) (int, error) {
	var previous int

	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var pos int
		err := tx.QueryRowContext(ctx, `SELECT position FROM videos WHERE video_name = ?`, videoName).Scan(&pos)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrVideoNotFound, videoName)
		}
		if err != nil {
			return fmt.Errorf("failed to look up video: %w", err)
		}

		err = tx.QueryRowContext(ctx,
			`SELECT label FROM clip_labels WHERE video_position = ? AND clip_index = ?`, pos, clip,
		).Scan(&previous)
		if errors.Is(err, sql.ErrNoRows) {
			var slots int
			tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM clip_labels WHERE video_position = ?`, pos).Scan(&slots)
			return fmt.Errorf("%w: clip %d of %s (slots: %d)", ErrClipOutOfRange, clip, videoName, slots)
		}
		if err != nil {
			return fmt.Errorf("failed to look up clip: %w", err)
		}

		label, err := resolveLabel(labels, labelName)
		if err != nil {
			return err
		}

		now := time.Now().UTC().Format(time.RFC3339)
		if _, err := tx.ExecContext(ctx,
			`UPDATE clip_labels SET label = ?, updated_at = ? WHERE video_position = ? AND clip_index = ?`,
			label, now, pos, clip,
		); err != nil {
			return fmt.Errorf("failed to update label: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO label_events (video_name, clip_index, label, label_name, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, videoName, clip, label, labelName, now); err != nil {
			return fmt.Errorf("failed to record label event: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return previous, nil
}

// Events lists label assignments, newest first. An empty videoName lists
// every video.
func (s *SQLiteStore) Events(ctx context.Context, videoName string, limit int) ([]LabelEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, video_name, clip_index, label, label_name, created_at
		FROM label_events`
	args := []any{}
	if videoName != "" {
		query += ` WHERE video_name = ?`
		args = append(args, videoName)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list label events: %w", err)
	}
	defer rows.Close()

	events := []LabelEvent{}
	for rows.Next() {
		var e LabelEvent
		if err := rows.Scan(&e.ID, &e.VideoName, &e.ClipIndex, &e.Label, &e.LabelName, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

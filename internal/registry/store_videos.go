package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// UpsertDiscovered records a discovered video, keyed on its deterministic ID.
// New videos start in StageDiscovered with a zero attempt count. For videos
// already on record only the descriptor metadata is refreshed; stage,
// attempts, lease, and produced references are left untouched, so re-running
// discovery never disturbs pipeline state and never resurrects a failed
// video.
func (s *Store) UpsertDiscovered(ctx context.Context, video *Video) (bool, error) {
	if video == nil {
		return false, errors.New("video is nil")
	}
	if video.ID == "" {
		return false, errors.New("video id is empty")
	}
	if _, ok := ParseSource(string(video.Source)); !ok {
		return false, fmt.Errorf("unknown source %q", video.Source)
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	existing, err := s.GetByID(ctx, video.ID)
	if err != nil {
		return false, err
	}

	if existing == nil {
		res, err := s.execWithRetry(
			ctx,
			`INSERT INTO videos (
                id, source, title, committee, page_url, recorded_at,
                stage, attempt_count, stage_entered_at, created_at, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)
            ON CONFLICT(id) DO NOTHING`,
			video.ID,
			string(video.Source),
			nullableString(video.Title),
			nullableString(video.Committee),
			nullableString(video.PageURL),
			formatTime(video.RecordedAt),
			StageDiscovered,
			timestamp,
			timestamp,
			timestamp,
		)
		if err != nil {
			return false, fmt.Errorf("insert video: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return false, fmt.Errorf("rows affected: %w", err)
		}
		if affected > 0 {
			video.Stage = StageDiscovered
			video.AttemptCount = 0
			video.StageEnteredAt = now
			video.CreatedAt = now
			video.UpdatedAt = now
			return true, nil
		}
		// Lost a race with a concurrent discovery of the same item; fall
		// through to the metadata refresh.
	}

	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE videos
         SET title = ?, committee = ?, page_url = ?, recorded_at = ?, updated_at = ?
         WHERE id = ?`,
		nullableString(video.Title),
		nullableString(video.Committee),
		nullableString(video.PageURL),
		formatTime(video.RecordedAt),
		timestamp,
		video.ID,
	); err != nil {
		return false, fmt.Errorf("refresh video metadata: %w", err)
	}
	return false, nil
}

// GetByID fetches a video by identifier. Returns nil when no row matches.
func (s *Store) GetByID(ctx context.Context, id string) (*Video, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = ?`, id)
	video, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get video: %w", err)
	}
	return video, nil
}

// List returns videos filtered by stage set (or all videos when no stage is
// provided), oldest first.
func (s *Store) List(ctx context.Context, stages ...Stage) ([]*Video, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + videoColumns + ` FROM videos`
	orderClause := ` ORDER BY created_at, id`

	if len(stages) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(stages))
		args := make([]any, len(stages))
		for i, stage := range stages {
			args[i] = stage
		}
		query := baseQuery + ` WHERE stage IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer rows.Close()

	var videos []*Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, video)
	}
	return videos, rows.Err()
}

// ListBySource returns videos for one source ordered by recording date.
func (s *Store) ListBySource(ctx context.Context, source Source) ([]*Video, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+videoColumns+` FROM videos WHERE source = ? ORDER BY recorded_at, id`,
		string(source),
	)
	if err != nil {
		return nil, fmt.Errorf("list videos by source: %w", err)
	}
	defer rows.Close()

	var videos []*Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, video)
	}
	return videos, rows.Err()
}

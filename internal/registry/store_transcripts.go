package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AddTranscript stores a finished transcription result. An ID is assigned
// when the caller did not supply one. The caller still owns linking the
// transcript to its video via CommitAdvance; storing and linking are separate
// so a crashed worker leaves at worst an unreferenced transcript row, never a
// dangling reference.
func (s *Store) AddTranscript(ctx context.Context, transcript *Transcript) error {
	if transcript == nil {
		return errors.New("transcript is nil")
	}
	if transcript.VideoID == "" {
		return errors.New("transcript video id is empty")
	}
	if transcript.ID == "" {
		transcript.ID = uuid.NewString()
	}
	if transcript.CreatedAt.IsZero() {
		transcript.CreatedAt = time.Now().UTC()
	}

	if err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO transcripts (id, video_id, provider, content, segments_json, vtt_path, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		transcript.ID,
		transcript.VideoID,
		transcript.Provider,
		transcript.Content,
		nullableString(transcript.SegmentsJSON),
		nullableString(transcript.VTTPath),
		transcript.CreatedAt.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("insert transcript: %w", err)
	}
	return nil
}

// GetTranscript fetches a transcript by identifier. Returns nil when no row
// matches.
func (s *Store) GetTranscript(ctx context.Context, id string) (*Transcript, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, video_id, provider, content, segments_json, vtt_path, created_at
         FROM transcripts WHERE id = ?`,
		id,
	)
	transcript, err := scanTranscript(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transcript: %w", err)
	}
	return transcript, nil
}

// SearchTranscripts returns transcripts whose content matches the query,
// newest recordings first, joined with their video metadata. Matching is a
// case-insensitive substring search; the snippet shows the text surrounding
// the first match.
func (s *Store) SearchTranscripts(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("search query is empty")
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT t.id, t.video_id, v.title, v.committee, v.recorded_at, t.provider, t.content
         FROM transcripts t
         JOIN videos v ON v.id = t.video_id
         WHERE t.content LIKE '%' || ? || '%'
         ORDER BY v.recorded_at DESC, t.id
         LIMIT ?`,
		query,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search transcripts: %w", err)
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var (
			hit         SearchHit
			title       sql.NullString
			committee   sql.NullString
			recordedRaw sql.NullString
			content     string
		)
		if err := rows.Scan(&hit.TranscriptID, &hit.VideoID, &title, &committee, &recordedRaw, &hit.Provider, &content); err != nil {
			return nil, err
		}
		hit.Title = title.String
		hit.Committee = committee.String
		if recorded, err := parseTimeString(recordedRaw.String); err == nil {
			hit.RecordedAt = recorded
		}
		hit.Snippet = snippetAround(content, query, 80)
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// TranscriptsForVideo returns all transcripts recorded for a video, oldest
// first. A video normally has one, but operator retries of the transcription
// stage can accumulate more.
func (s *Store) TranscriptsForVideo(ctx context.Context, videoID string) ([]*Transcript, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, video_id, provider, content, segments_json, vtt_path, created_at
         FROM transcripts WHERE video_id = ? ORDER BY created_at, id`,
		videoID,
	)
	if err != nil {
		return nil, fmt.Errorf("transcripts for video: %w", err)
	}
	defer rows.Close()

	var transcripts []*Transcript
	for rows.Next() {
		transcript, err := scanTranscript(rows)
		if err != nil {
			return nil, err
		}
		transcripts = append(transcripts, transcript)
	}
	return transcripts, rows.Err()
}

func scanTranscript(scanner interface{ Scan(dest ...any) error }) (*Transcript, error) {
	var (
		transcript Transcript
		segments   sql.NullString
		vttPath    sql.NullString
		createdRaw sql.NullString
	)
	if err := scanner.Scan(
		&transcript.ID,
		&transcript.VideoID,
		&transcript.Provider,
		&transcript.Content,
		&segments,
		&vttPath,
		&createdRaw,
	); err != nil {
		return nil, err
	}
	transcript.SegmentsJSON = segments.String
	transcript.VTTPath = vttPath.String
	if created, err := parseTimeString(createdRaw.String); err == nil {
		transcript.CreatedAt = created
	}
	return &transcript, nil
}

// snippetAround extracts the text surrounding the first case-insensitive
// occurrence of query, trimmed to radius runes on each side.
func snippetAround(content, query string, radius int) string {
	normalized := strings.ToLower(content)
	idx := strings.Index(normalized, strings.ToLower(query))
	if idx < 0 {
		if len(content) <= radius*2 {
			return strings.TrimSpace(content)
		}
		return strings.TrimSpace(content[:radius*2]) + "..."
	}

	start := idx - radius
	if start < 0 {
		start = 0
	}
	end := idx + len(query) + radius
	if end > len(content) {
		end = len(content)
	}
	snippet := strings.TrimSpace(content[start:end])
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(content) {
		snippet += "..."
	}
	return snippet
}

package registry

import (
	"database/sql"
	"errors"
	"time"
)

const videoColumns = "id, source, title, committee, page_url, recorded_at, stream_url, media_path, transcript_id, stage, attempt_count, stage_entered_at, lease_owner, leased_at, failed_stage, last_error, created_at, updated_at"

func scanVideo(scanner interface{ Scan(dest ...any) error }) (*Video, error) {
	var (
		id           string
		source       string
		title        sql.NullString
		committee    sql.NullString
		pageURL      sql.NullString
		recordedRaw  sql.NullString
		streamURL    sql.NullString
		mediaPath    sql.NullString
		transcriptID sql.NullString
		stageStr     string
		attemptCount int
		stageEntered sql.NullString
		leaseOwner   sql.NullString
		leasedRaw    sql.NullString
		failedStage  sql.NullString
		lastError    sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&source,
		&title,
		&committee,
		&pageURL,
		&recordedRaw,
		&streamURL,
		&mediaPath,
		&transcriptID,
		&stageStr,
		&attemptCount,
		&stageEntered,
		&leaseOwner,
		&leasedRaw,
		&failedStage,
		&lastError,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	video := &Video{
		ID:           id,
		Source:       Source(source),
		Title:        title.String,
		Committee:    committee.String,
		PageURL:      pageURL.String,
		StreamURL:    streamURL.String,
		MediaPath:    mediaPath.String,
		TranscriptID: transcriptID.String,
		Stage:        Stage(stageStr),
		AttemptCount: attemptCount,
		LeaseOwner:   leaseOwner.String,
		FailedStage:  Stage(failedStage.String),
		LastError:    lastError.String,
	}

	if recorded, err := parseTimeString(recordedRaw.String); err == nil {
		video.RecordedAt = recorded
	}
	if entered, err := parseTimeString(stageEntered.String); err == nil {
		video.StageEnteredAt = entered
	}
	if leasedRaw.Valid {
		if leased, err := parseTimeString(leasedRaw.String); err == nil {
			video.LeasedAt = &leased
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		video.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		video.UpdatedAt = updated
	}
	return video, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func formatTime(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

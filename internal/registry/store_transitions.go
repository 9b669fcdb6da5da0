package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ClaimNext atomically claims the oldest eligible video waiting in the given
// ready stage and moves it into the matching in-progress stage on behalf of
// owner. Eligible means: in the ready stage, unleased, and with attempt
// budget remaining. The claim charges one attempt and stamps the lease pair.
// Returns nil when nothing is eligible.
//
// The claim is a single UPDATE with a nested SELECT; SQLite statement
// atomicity guarantees at most one caller wins a given video, so concurrent
// workers need no in-process coordination. Owner strings must be unique per
// worker because the claimed row is read back by owner.
func (s *Store) ClaimNext(ctx context.Context, ready Stage, owner string) (*Video, error) {
	if !ready.IsReady() {
		return nil, fmt.Errorf("claim from %q: not a ready stage", ready)
	}
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, errors.New("claim owner is empty")
	}
	active, ok := ClaimStageFor(ready)
	if !ok {
		return nil, fmt.Errorf("claim from %q: no in-progress stage", ready)
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	res, err := s.execWithRetry(
		ctx,
		`UPDATE videos
         SET stage = ?, lease_owner = ?, leased_at = ?,
             attempt_count = attempt_count + 1,
             stage_entered_at = ?, updated_at = ?
         WHERE id = (
             SELECT id FROM videos
             WHERE stage = ? AND lease_owner IS NULL AND attempt_count < ?
             ORDER BY created_at, id
             LIMIT 1
         )`,
		active,
		owner,
		timestamp,
		timestamp,
		timestamp,
		ready,
		s.maxAttempts,
	)
	if err != nil {
		return nil, fmt.Errorf("claim next video: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, nil
	}

	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+videoColumns+` FROM videos
         WHERE stage = ? AND lease_owner = ?
         ORDER BY leased_at DESC LIMIT 1`,
		active,
		owner,
	)
	video, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read claimed video: %w", err)
	}
	return video, nil
}

// CommitAdvance moves a video from its expected in-progress stage to the next
// stage, persisting the references the stage produced (stream URL, media
// path, transcript ID) from the record. The attempt count resets, the lease
// clears, and any failure note from earlier attempts is wiped. Returns
// ErrStaleState when the video is no longer in the expected stage, which
// means another actor transitioned it between the caller's claim and this
// commit; the caller must discard its work on the record.
func (s *Store) CommitAdvance(ctx context.Context, video *Video, expected, next Stage) error {
	if video == nil {
		return errors.New("video is nil")
	}
	if !expected.IsInProgress() {
		return fmt.Errorf("advance from %q: not an in-progress stage", expected)
	}
	if advance, ok := AdvanceStageFor(expected); !ok || advance != next {
		return fmt.Errorf("advance %s -> %s: illegal transition", expected, next)
	}

	now := time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE videos
         SET stage = ?, stream_url = ?, media_path = ?, transcript_id = ?,
             attempt_count = 0, lease_owner = NULL, leased_at = NULL,
             failed_stage = NULL, last_error = NULL,
             stage_entered_at = ?, updated_at = ?
         WHERE id = ? AND stage = ?`,
		next,
		nullableString(video.StreamURL),
		nullableString(video.MediaPath),
		nullableString(video.TranscriptID),
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
		video.ID,
		expected,
	)
	if err != nil {
		return fmt.Errorf("commit advance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: video %s is no longer in stage %s", ErrStaleState, video.ID, expected)
	}

	video.Stage = next
	video.AttemptCount = 0
	video.LeaseOwner = ""
	video.LeasedAt = nil
	video.FailedStage = ""
	video.LastError = ""
	video.StageEnteredAt = now
	video.UpdatedAt = now
	return nil
}

// RecordFailure records a failed attempt for a video in its expected
// in-progress stage. While attempts remain the video falls back to the prior
// ready stage with its attempt count intact, so a later claim charges the
// next attempt. When the budget is exhausted the video lands in StageFailed
// with the in-progress stage recorded as the failure site. Both outcomes
// clear the lease. The budget check and the transition happen in one
// statement so they cannot race against another actor.
func (s *Store) RecordFailure(ctx context.Context, id string, expected Stage, reason string) (*Video, error) {
	if !expected.IsInProgress() {
		return nil, fmt.Errorf("record failure in %q: not an in-progress stage", expected)
	}
	rollback, ok := RollbackStageFor(expected)
	if !ok {
		return nil, fmt.Errorf("record failure in %q: no rollback stage", expected)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE videos
         SET stage = CASE WHEN attempt_count >= ? THEN ? ELSE ? END,
             failed_stage = CASE WHEN attempt_count >= ? THEN stage ELSE NULL END,
             lease_owner = NULL, leased_at = NULL,
             last_error = ?, stage_entered_at = ?, updated_at = ?
         WHERE id = ? AND stage = ?`,
		s.maxAttempts,
		StageFailed,
		rollback,
		s.maxAttempts,
		nullableString(strings.TrimSpace(reason)),
		now,
		now,
		id,
		expected,
	)
	if err != nil {
		return nil, fmt.Errorf("record failure: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("%w: video %s is no longer in stage %s", ErrStaleState, id, expected)
	}
	return s.GetByID(ctx, id)
}

// FailPermanently moves a leased video from its in-progress stage straight to
// StageFailed regardless of remaining attempt budget. Used for permanent
// errors where retrying cannot help. The update matches the caller's lease
// pair as well as the stage, so a worker whose lease was reclaimed and
// re-issued to someone else cannot clobber the newer claim.
func (s *Store) FailPermanently(ctx context.Context, video *Video, reason string) error {
	if video == nil {
		return errors.New("video is nil")
	}
	if !video.Stage.IsInProgress() {
		return fmt.Errorf("fail permanently from %q: not an in-progress stage", video.Stage)
	}
	if video.LeaseOwner == "" || video.LeasedAt == nil {
		return fmt.Errorf("fail permanently: video %s carries no lease", video.ID)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE videos
         SET stage = ?, failed_stage = stage,
             lease_owner = NULL, leased_at = NULL,
             last_error = ?, stage_entered_at = ?, updated_at = ?
         WHERE id = ? AND stage = ? AND lease_owner = ? AND leased_at = ?`,
		StageFailed,
		nullableString(strings.TrimSpace(reason)),
		now,
		now,
		video.ID,
		video.Stage,
		video.LeaseOwner,
		nullableTime(video.LeasedAt),
	)
	if err != nil {
		return fmt.Errorf("fail permanently: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: lease on video %s changed since the claim", ErrStaleState, video.ID)
	}
	return nil
}

// FindStuck returns videos whose lease timestamp predates the cutoff,
// restricted to the given in-progress stages (all of them when none are
// specified). These are leases whose workers have stopped making progress:
// crashed, partitioned, or wedged.
func (s *Store) FindStuck(ctx context.Context, cutoff time.Time, stages ...Stage) ([]*Video, error) {
	if len(stages) == 0 {
		for stage := range inProgressStages {
			stages = append(stages, stage)
		}
	}
	for _, stage := range stages {
		if !stage.IsInProgress() {
			return nil, fmt.Errorf("find stuck in %q: not an in-progress stage", stage)
		}
	}

	placeholders := makePlaceholders(len(stages))
	args := make([]any, 0, len(stages)+1)
	for _, stage := range stages {
		args = append(args, stage)
	}
	args = append(args, cutoff.UTC().Format(time.RFC3339Nano))

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+videoColumns+` FROM videos
         WHERE stage IN (`+placeholders+`) AND leased_at IS NOT NULL AND leased_at < ?
         ORDER BY leased_at, id`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("find stuck videos: %w", err)
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

// Reclaim releases an orphaned lease the sweeper observed: with attempt
// budget remaining the video returns to the prior ready stage, otherwise it
// lands in StageFailed. No new attempt is charged; the claim that created the
// lease already paid for it. The update matches the exact lease pair from the
// scanned record. Every claim stamps a fresh owner and timestamp, so a
// matching pair proves no other actor touched the record between the scan and
// the reclaim; it also pins attempt_count, which only changes alongside the
// lease. Returns ErrStaleState when the lease changed underneath the scan, in
// which case the record keeps its newer state. The returned flag reports
// whether the video was requeued rather than failed.
func (s *Store) Reclaim(ctx context.Context, video *Video, reason string) (bool, error) {
	if video == nil {
		return false, errors.New("video is nil")
	}
	if !video.Stage.IsInProgress() {
		return false, fmt.Errorf("reclaim from %q: not an in-progress stage", video.Stage)
	}
	if video.LeaseOwner == "" || video.LeasedAt == nil {
		return false, fmt.Errorf("reclaim: video %s carries no lease", video.ID)
	}
	rollback, ok := RollbackStageFor(video.Stage)
	if !ok {
		return false, fmt.Errorf("reclaim from %q: no rollback stage", video.Stage)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE videos
         SET stage = CASE WHEN attempt_count >= ? THEN ? ELSE ? END,
             failed_stage = CASE WHEN attempt_count >= ? THEN stage ELSE NULL END,
             lease_owner = NULL, leased_at = NULL,
             last_error = ?, stage_entered_at = ?, updated_at = ?
         WHERE id = ? AND stage = ? AND lease_owner = ? AND leased_at = ?`,
		s.maxAttempts,
		StageFailed,
		rollback,
		s.maxAttempts,
		nullableString(strings.TrimSpace(reason)),
		now,
		now,
		video.ID,
		video.Stage,
		video.LeaseOwner,
		nullableTime(video.LeasedAt),
	)
	if err != nil {
		return false, fmt.Errorf("reclaim video: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return false, fmt.Errorf("%w: lease on video %s changed since the scan", ErrStaleState, video.ID)
	}
	return video.AttemptCount < s.maxAttempts, nil
}

// RetryFailed is the explicit operator path out of StageFailed: each failed
// video returns to the ready stage just before the stage it failed in, with a
// fresh attempt budget and its failure fields cleared. With no ids all failed
// videos are retried.
func (s *Store) RetryFailed(ctx context.Context, ids ...string) (int64, error) {
	setClause := `
         SET stage = CASE failed_stage
             WHEN ? THEN ?
             WHEN ? THEN ?
             WHEN ? THEN ?
             ELSE ?
         END,
             attempt_count = 0, failed_stage = NULL, last_error = NULL,
             lease_owner = NULL, leased_at = NULL,
             stage_entered_at = ?, updated_at = ?`
	now := time.Now().UTC().Format(time.RFC3339Nano)
	args := []any{
		StageResolving, StageDiscovered,
		StageDownloading, StageResolved,
		StageTranscribing, StageDownloaded,
		StageDiscovered,
		now,
		now,
	}

	if len(ids) == 0 {
		res, err := s.execWithRetry(
			ctx,
			`UPDATE videos`+setClause+` WHERE stage = ?`,
			append(args, StageFailed)...,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed videos: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args = append(args, StageFailed)
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE videos`+setClause+` WHERE stage = ? AND id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("retry selected videos: %w", err)
	}
	return res.RowsAffected()
}

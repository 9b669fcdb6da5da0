// Package transcribe turns downloaded recordings into stored transcripts.
// Audio is extracted with ffmpeg into the mono 16kHz WAV that WhisperX
// expects, WhisperX runs through uvx so no Python environment needs managing,
// and the parsed result is persisted as a transcript row plus a WebVTT file
// for players. The transcript row is written before the workflow commits the
// stage advance, so a crash mid-commit leaves an unreferenced transcript
// rather than a transcribed video with no transcript.
package transcribe

// Package fetch downloads resolved recordings into the media directory.
// House streams are plain MP4 files and are streamed straight to disk; senate
// streams are HLS manifests and are remuxed into MP4 containers with ffmpeg.
// Downloads land next to their final path under a partial suffix and are
// renamed into place only once complete, so an interrupted fetch never leaves
// a truncated file where the transcriber would pick it up.
package fetch

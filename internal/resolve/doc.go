// Package resolve turns a discovered recording into a directly fetchable
// stream URL. Each chamber publishes streams differently: house recordings
// are plain MP4 files behind a predictable path, senate recordings live on a
// hosted media platform that hands out HLS manifests on request. The step
// handler picks the resolver matching the video's source and commits the
// resulting URL through the workflow manager.
package resolve

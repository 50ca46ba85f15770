// Package engine runs registered transforms through ffmpeg.
//
// Each run writes into a hidden scratch file next to the final output and is
// published with a link only after the process exits zero with a non-empty
// file. Timeouts and cancellation kill the whole process group, and failures
// carry the tail of ffmpeg's stderr as their diagnostic.
package engine

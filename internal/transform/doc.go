// Package transform holds the frozen table of video operations and the ffmpeg
// argument templates behind them.
//
// A Registry is built once at startup and shared by pointer; lookups never
// lock because nothing mutates it afterwards. Operation suffixes double as the
// filename suffix of derived versions, so changing one renames every future
// output of that operation.
package transform

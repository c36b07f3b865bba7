// Package audio provides PCM frame helpers and WAV encoding for the
// 16 kHz mono capture format used by the recognition pipeline.
package audio

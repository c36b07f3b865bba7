// Package recognition implements the audio ingestion pipeline: a bounded
// frame queue feeding a single worker that drives a stateful recognizer
// engine and emits partial/final transcription events.
package recognition

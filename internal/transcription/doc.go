// Package transcription provides the HTTP client for the remote
// transcription API. Finished utterances are uploaded as WAV files in
// multipart form requests with retry, exponential backoff and concurrency
// limiting.
package transcription

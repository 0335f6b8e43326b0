// Package service contains the asset lifecycle logic: path resolution,
// transcoding, the database index and the orchestration on top of them
package service

import "errors"

var (
	// ErrDuplicateAsset is returned when an owner already has a record
	// for the exact canonical path an upload would produce
	ErrDuplicateAsset = errors.New("record already exists")

	// ErrTranscode is returned when the uploaded bytes can't be decoded
	// as a wav waveform. The raw file is kept on disk in that case
	ErrTranscode = errors.New("failed to transcode file")

	// ErrLinkFormat is returned when a record link doesn't match the
	// expected record_id/user_id shape
	ErrLinkFormat = errors.New("malformed record link")

	// ErrNotFound covers both a truly absent record and a record owned
	// by someone else. Callers can't tell the two apart on purpose
	ErrNotFound = errors.New("record not found")
)

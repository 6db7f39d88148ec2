package domain

import (
	"fmt"
	"io"
)

// UploadChannel is how a file reached the upload surface.
type UploadChannel string

const (
	ChannelDrop   UploadChannel = "drop"
	ChannelPicker UploadChannel = "picker"
)

func ParseUploadChannel(raw string) (UploadChannel, error) {
	switch UploadChannel(raw) {
	case ChannelDrop:
		return ChannelDrop, nil
	case ChannelPicker, "":
		return ChannelPicker, nil
	default:
		return "", WrapError(ErrInvalidInput, "parse upload channel", fmt.Errorf("unknown channel %q", raw))
	}
}

// UploadCandidate is one file offered to the upload surface. Size is -1 when
// the caller does not know it.
type UploadCandidate struct {
	Name     string
	MimeType string
	Size     int64
	Content  io.Reader
}

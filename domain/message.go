// Package domain contains core concepts of the public feed.
// This file defines Message records and submissions.
// Messages are immutable once persisted.
package domain

import (
	"time"
)

// Media references an image stored in the media store.
type Media struct {
	Locator      string
	ContentType  string
	OriginalSize int64 // size of the image as submitted, before compression
	Size         int64 // size of the stored, encoded object
}

// Message represents an immutable persisted feed entry.
type Message struct {
	ID        string // assigned by the store
	Author    string
	Body      string
	Media     *Media
	CreatedAt time.Time // assigned by the store at write time
	Approved  bool
}

func (m Message) HasMedia() bool { return m.Media != nil }

// MessageRecord is what the delivery pipeline hands to a MessageStore.
// ID and CreatedAt do not exist yet: the store assigns them.
// Token is generated once per submission and reused on every attempt,
// so that a store can refuse to insert the same submission twice.
type MessageRecord struct {
	Token    string
	Author   string
	Body     string
	Media    *Media
	Approved bool
}

// RawImage is an image as uploaded by a submitter.
type RawImage struct {
	Data        []byte
	ContentType string // declared MIME type
}

// Submission is the input of the delivery pipeline.
type Submission struct {
	Author string
	Body   string
	Image  *RawImage
	// Token is optional, the pipeline generates one when empty.
	Token string
}

func (s Submission) HasImage() bool { return s.Image != nil && len(s.Image.Data) > 0 }

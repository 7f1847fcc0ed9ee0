package internal

import (
	"time"

	"github.com/liquidtune/tunevault/server/internal/failure"
)

// Identifier is the stable id of a piece of remote content,
// the same video always yields the same Identifier.
type Identifier = string

const DefaultCollection = "Downloaded Music"

type AcquisitionState string

const (
	StateIdle       AcquisitionState = "idle"
	StateValidating AcquisitionState = "validating"
	StateFetching   AcquisitionState = "fetching"
	StateCommitting AcquisitionState = "committing"
	StateSucceeded  AcquisitionState = "succeeded"
	StateFailed     AcquisitionState = "failed"
)

// IsActive reports whether a task in this state holds the identifier.
func (s AcquisitionState) IsActive() bool {
	return s == StateFetching || s == StateCommitting
}

func (s AcquisitionState) IsFinished() bool {
	return s == StateSucceeded || s == StateFailed
}

// Information returned by the backend video-info endpoint
type VideoInfo struct {
	VideoId   string  `json:"videoId"`
	Title     string  `json:"title"`
	Duration  float64 `json:"duration"`
	Thumbnail string  `json:"thumbnail"`
}

type AcquisitionRequest struct {
	Locator string `json:"locator"`
	// Where the locator came from, "clipboard" or "manual"
	Source string `json:"source,omitempty"`
}

// Used to serialize an acquisition task for the api surfaces
type TaskSnapshot struct {
	Id              string           `json:"id"`
	Identifier      Identifier       `json:"identifier,omitempty"`
	Locator         string           `json:"locator"`
	State           AcquisitionState `json:"state"`
	Progress        float64          `json:"progress"`
	DestinationPath string           `json:"destination_path,omitempty"`
	ErrorKind       failure.Kind     `json:"error_kind,omitempty"`
	Reason          string           `json:"reason,omitempty"`
	Info            *VideoInfo       `json:"info,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

type LibraryItem struct {
	Identifier      Identifier `json:"identifier"`
	DisplayName     string     `json:"display_name"`
	Artist          string     `json:"artist,omitempty"`
	Album           string     `json:"album,omitempty"`
	Collection      string     `json:"collection"`
	FilePath        string     `json:"file_path"`
	DurationSeconds float64    `json:"duration_seconds"`
	Size            int64      `json:"size"`
	Checksum        string     `json:"checksum,omitempty"`
	Thumbnail       string     `json:"thumbnail,omitempty"`
	AcquiredAt      time.Time  `json:"acquired_at"`
}

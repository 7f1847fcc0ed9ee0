package kv

import "github.com/liquidtune/tunevault/server/internal"

// Entry is anything tracked by the registry while it holds an identifier.
type Entry interface {
	GetId() string
	Identifier() internal.Identifier
	Status() *internal.TaskSnapshot
}

// struct representing the acquisitions still running at shutdown
// used for serializaton/persistence reasons
type Session struct {
	Tasks []internal.TaskSnapshot `json:"tasks"`
}

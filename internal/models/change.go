package models

import "github.com/moznion/go-optional"

// ChangeKind is the tag of a Change.
type ChangeKind string

const (
	ChangeAdd    ChangeKind = "add"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
	ChangeClear  ChangeKind = "clear"
)

// Change is one serialized mutation of a chart's shape set.
//
// Version is monotonic per originating replica only; it carries no
// cross-replica ordering.
type Change struct {
	Kind    ChangeKind
	Chart   ChartKey
	Shape   *Shape // add, update
	ID      string // delete
	Version int64
	Origin  string
}

// Snapshot is the full ordered shape list for a chart.
type Snapshot struct {
	Chart      ChartKey
	Shapes     []*Shape
	Version    int64
	FutureDays optional.Option[int]
}

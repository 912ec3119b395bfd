package parcel

import (
	"fmt"

	"github.com/google/uuid"
)

// Unlabeled marks grayordinates outside every parcel, cortex included
const Unlabeled = 0

// Labeling assigns a parcel id in 1..Parcels() to subcortical grayordinates.
// It is immutable once built and safe to share between goroutines.
type Labeling struct {
	componentsVersion uuid.UUID
	labels            []int
	parcels           int
}

// NewLabeling wraps labels read from storage. Every label must be
// Unlabeled or within 1..parcels.
func NewLabeling(labels []int, parcels int, componentsVersion uuid.UUID) (*Labeling, error) {
	if parcels < 1 {
		return nil, fmt.Errorf("parcel count must be positive, got %d", parcels)
	}
	for g, l := range labels {
		if l != Unlabeled && (l < 1 || l > parcels) {
			return nil, fmt.Errorf("grayordinate %d: parcel id %d outside 1..%d", g, l, parcels)
		}
	}

	return &Labeling{
		componentsVersion: componentsVersion,
		labels:            append([]int(nil), labels...),
		parcels:           parcels,
	}, nil
}

// ComponentsVersion identifies the group components the labels were derived from
func (l *Labeling) ComponentsVersion() uuid.UUID {
	return l.componentsVersion
}

// Parcels returns the number of parcel ids
func (l *Labeling) Parcels() int {
	return l.parcels
}

// Len returns the number of grayordinates
func (l *Labeling) Len() int {
	return len(l.labels)
}

// Label returns the parcel id of grayordinate g
func (l *Labeling) Label(g int) int {
	return l.labels[g]
}

// Labels returns a copy of all labels in grayordinate order
func (l *Labeling) Labels() []int {
	return append([]int(nil), l.labels...)
}

// Members returns, in ascending order, the grayordinates of parcel id
func (l *Labeling) Members(id int) []int {
	var members []int
	for g, label := range l.labels {
		if label == id {
			members = append(members, g)
		}
	}

	return members
}

// Counts returns the member count of every parcel; Counts()[id-1] belongs to id.
func (l *Labeling) Counts() []int {
	counts := make([]int, l.parcels)
	for _, label := range l.labels {
		if label != Unlabeled {
			counts[label-1]++
		}
	}

	return counts
}

// Empty returns the parcel ids without members
func (l *Labeling) Empty() []int {
	var empty []int
	for i, c := range l.Counts() {
		if c == 0 {
			empty = append(empty, i+1)
		}
	}

	return empty
}

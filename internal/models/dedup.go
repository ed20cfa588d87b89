package models

import (
	"fmt"
	"strings"
)

// DedupIndex decides whether a candidate grade collides with an already
// admitted record. A record is a duplicate when the same user already holds
// any grade for the same course code and semester, regardless of credits or
// grade value. Admitting a key mutates the index, so within one batch only
// the first occurrence of a colliding pair is accepted.
type DedupIndex struct {
	keys map[string]struct{}
}

// NewDedupIndex seeds the index from records already stored for the user.
func NewDedupIndex(existing []Grade) *DedupIndex {
	idx := &DedupIndex{keys: make(map[string]struct{}, len(existing))}
	for _, g := range existing {
		idx.keys[dedupKey(g.CourseCode, g.Semester)] = struct{}{}
	}
	return idx
}

// Admit returns true when the course/semester pair is new, recording it so
// later candidates with the same pair are rejected.
func (d *DedupIndex) Admit(courseCode string, semester int) bool {
	key := dedupKey(courseCode, semester)
	if _, exists := d.keys[key]; exists {
		return false
	}
	d.keys[key] = struct{}{}
	return true
}

// Len returns the number of admitted keys.
func (d *DedupIndex) Len() int {
	return len(d.keys)
}

func dedupKey(courseCode string, semester int) string {
	return fmt.Sprintf("%s|%d", strings.ToUpper(strings.TrimSpace(courseCode)), semester)
}

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupIndexAdmit(t *testing.T) {
	index := NewDedupIndex(nil)

	assert.True(t, index.Admit("CS101", 1))
	assert.False(t, index.Admit("CS101", 1), "second attempt for same key must be rejected")
	assert.True(t, index.Admit("CS101", 2), "same course in another semester is distinct")
	assert.True(t, index.Admit("CS102", 1))
	assert.Equal(t, 3, index.Len())
}

func TestDedupIndexSeededFromStored(t *testing.T) {
	stored := []Grade{
		{CourseCode: "MA201", Semester: 3},
		{CourseCode: "PH101", Semester: 1},
	}
	index := NewDedupIndex(stored)

	assert.False(t, index.Admit("MA201", 3))
	assert.False(t, index.Admit("PH101", 1))
	assert.True(t, index.Admit("MA201", 4))
}

func TestDedupIndexNormalizesCourseCode(t *testing.T) {
	index := NewDedupIndex(nil)

	assert.True(t, index.Admit("cs101", 1))
	assert.False(t, index.Admit("CS101", 1))
	assert.False(t, index.Admit("  CS101  ", 1))
}

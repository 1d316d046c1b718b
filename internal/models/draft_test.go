package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubjectMarksDraftAddRowIDsIncrease(t *testing.T) {
	d := NewSubjectMarksDraft("app-1", nil)
	require.Len(t, d.Rows, 1)

	prev := d.Rows[0].ID
	for i := 0; i < 5; i++ {
		n := len(d.Rows)
		row := d.AddRow()
		assert.Len(t, d.Rows, n+1)
		assert.Greater(t, row.ID, prev)
		prev = row.ID
	}
}

func TestSubjectMarksDraftRemoveRow(t *testing.T) {
	d := NewSubjectMarksDraft("app-1", []SubjectMark{{ID: 3, Subject: "Maths"}, {ID: 7, Subject: "Physics"}})
	assert.Equal(t, 8, d.NextID)

	assert.True(t, d.RemoveRow(3))
	require.Len(t, d.Rows, 1)
	assert.Equal(t, 7, d.Rows[0].ID)

	// last row stays
	assert.True(t, d.RemoveRow(7))
	require.Len(t, d.Rows, 1)

	assert.False(t, d.RemoveRow(99))

	// ids are not reused after removal
	row := d.AddRow()
	assert.Equal(t, 8, row.ID)
}

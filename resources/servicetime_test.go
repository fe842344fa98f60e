package resources

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestServiceTimeTableLookupUnsupported(t *testing.T) {
	tbl := NewServiceTimeTable()
	_, ok := tbl.Lookup("cpu-edge", "vision")
	assert.False(t, ok)
}

func TestServiceTimeTableSetAndLookup(t *testing.T) {
	tbl := NewServiceTimeTable()
	tbl.Set("cpu-edge", "vision", 25*time.Millisecond)

	exe, ok := tbl.Lookup("cpu-edge", "vision")
	assert.True(t, ok)
	assert.Equal(t, 25*time.Millisecond, exe)

	_, ok = tbl.Lookup("cpu-edge", "other-service")
	assert.False(t, ok)
}

package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "edunite:timetable:2026-10-19:t-1:-:-:-", Key("timetable", "2026-10-19", "t-1", "", " ", ""))
	assert.Equal(t, "edunite:a_b", Key("a:b"))
	assert.Equal(t, "edunite:timetable:*", Pattern("timetable"))
}

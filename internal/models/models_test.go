package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttendanceStatusCycleCloses(t *testing.T) {
	status := AttendanceNone
	var seen []AttendanceStatus
	for i := 0; i < 4; i++ {
		status = status.Next()
		seen = append(seen, status)
	}
	assert.Equal(t, []AttendanceStatus{AttendancePresent, AttendanceLate, AttendanceAbsent, AttendanceNone}, seen)
	assert.Equal(t, AttendanceNone, AttendanceExcused.Next())
}

func TestParseAttendanceStatus(t *testing.T) {
	status, ok := ParseAttendanceStatus(" Present ")
	assert.True(t, ok)
	assert.Equal(t, AttendancePresent, status)

	status, ok = ParseAttendanceStatus("")
	assert.True(t, ok)
	assert.Equal(t, AttendanceNone, status)

	_, ok = ParseAttendanceStatus("sick")
	assert.False(t, ok)
}

func TestAttendanceStatsExcludesExcusedFromTotal(t *testing.T) {
	var stats AttendanceStats
	for _, s := range []AttendanceStatus{AttendancePresent, AttendanceLate, AttendanceAbsent, AttendanceExcused, AttendanceNone} {
		stats.Add(s)
	}
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Excused)
	assert.InDelta(t, 2.0/3.0, stats.Rate, 1e-9)
}

func TestNormalizeRoom(t *testing.T) {
	online := "Online"
	room, kind := NormalizeRoom(&online, "")
	assert.Nil(t, room)
	assert.Equal(t, LessonTypeOnline, kind)

	physical := " r-101 "
	room, kind = NormalizeRoom(&physical, LessonTypeOffline)
	if assert.NotNil(t, room) {
		assert.Equal(t, "r-101", *room)
	}
	assert.Equal(t, LessonTypeOffline, kind)

	room, kind = NormalizeRoom(&physical, LessonTypeOnline)
	assert.Nil(t, room)
	assert.Equal(t, LessonTypeOnline, kind)
}

func TestLessonPhysicalRoom(t *testing.T) {
	room := "r-1"
	lesson := Lesson{RoomID: &room, Type: LessonTypeOffline}
	id, ok := lesson.PhysicalRoomID()
	assert.True(t, ok)
	assert.Equal(t, "r-1", id)
	assert.True(t, RoomOf(lesson).IsPhysical())

	lesson.Type = LessonTypeOnline
	_, ok = lesson.PhysicalRoomID()
	assert.False(t, ok)
	assert.Equal(t, RoomOnline, RoomOf(lesson).Kind)
}

func TestLessonDateIsDateOnlyOnTheWire(t *testing.T) {
	room := "r-1"
	lesson := Lesson{
		ID:        "l-1",
		GroupID:   "g-1",
		Date:      time.Date(2026, time.October, 19, 0, 0, 0, 0, time.UTC),
		StartTime: "14:00",
		EndTime:   "15:30",
		RoomID:    &room,
		Type:      LessonTypeOffline,
	}

	raw, err := json.Marshal(lesson)
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Equal(t, "2026-10-19", fields["date"])
	assert.Equal(t, "l-1", fields["id"])
	assert.Equal(t, "r-1", fields["room_id"])

	var decoded Lesson
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, lesson, decoded)

	assert.Error(t, json.Unmarshal([]byte(`{"id":"l-1","date":"19.10.2026"}`), &decoded))
}

func TestLessonConflictDateIsDateOnlyOnTheWire(t *testing.T) {
	conflict := LessonConflict{LessonID: "l-1", Date: time.Date(2026, time.October, 19, 0, 0, 0, 0, time.UTC), Dimension: ConflictRoom}

	raw, err := json.Marshal(conflict)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"date":"2026-10-19"`)

	var decoded LessonConflict
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, conflict, decoded)

	raw, err = json.Marshal(&LessonConflictError{Message: "room busy", Conflict: conflict})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"date":"2026-10-19"`)
}

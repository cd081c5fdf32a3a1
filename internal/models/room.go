package models

import "strings"

// RoomKind tags the Room variant.
type RoomKind string

const (
	RoomPhysical RoomKind = "physical"
	RoomOnline   RoomKind = "online"
)

// OnlineRoomSentinel is the room id legacy data uses for online lessons.
const OnlineRoomSentinel = "online"

// Room is either a physical classroom or the online variant, which has no id.
type Room struct {
	Kind     RoomKind `db:"kind" json:"kind"`
	ID       string   `db:"id" json:"id,omitempty"`
	Name     string   `db:"name" json:"name"`
	Capacity int      `db:"capacity" json:"capacity,omitempty"`
}

// PhysicalRoom builds the physical variant.
func PhysicalRoom(id, name string, capacity int) Room {
	return Room{Kind: RoomPhysical, ID: id, Name: name, Capacity: capacity}
}

// OnlineRoom builds the online variant.
func OnlineRoom() Room {
	return Room{Kind: RoomOnline, Name: "Online"}
}

// IsPhysical reports whether the room can be double-booked.
func (r Room) IsPhysical() bool {
	return r.Kind == RoomPhysical && r.ID != ""
}

// NormalizeRoom folds the legacy "online" room id into the lesson type so that
// downstream code only ever sees physical room ids.
func NormalizeRoom(roomID *string, lessonType LessonType) (*string, LessonType) {
	if lessonType == "" {
		lessonType = LessonTypeOffline
	}
	if roomID == nil {
		return nil, lessonType
	}
	trimmed := strings.TrimSpace(*roomID)
	switch {
	case strings.EqualFold(trimmed, OnlineRoomSentinel):
		return nil, LessonTypeOnline
	case trimmed == "" || lessonType == LessonTypeOnline:
		return nil, lessonType
	}
	return &trimmed, lessonType
}

// RoomOf returns the tagged room a lesson occupies.
func RoomOf(l Lesson) Room {
	if id, ok := l.PhysicalRoomID(); ok {
		return PhysicalRoom(id, "", 0)
	}
	return OnlineRoom()
}

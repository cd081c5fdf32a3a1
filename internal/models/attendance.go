package models

import (
	"strings"
	"time"
)

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendanceNone    AttendanceStatus = "none"
	AttendancePresent AttendanceStatus = "present"
	AttendanceLate    AttendanceStatus = "late"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceExcused AttendanceStatus = "excused"
)

// ParseAttendanceStatus normalises user input. An empty string means none.
func ParseAttendanceStatus(raw string) (AttendanceStatus, bool) {
	status := AttendanceStatus(strings.ToLower(strings.TrimSpace(raw)))
	if status == "" {
		return AttendanceNone, true
	}
	return status, status.Valid()
}

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceNone, AttendancePresent, AttendanceLate, AttendanceAbsent, AttendanceExcused:
		return true
	default:
		return false
	}
}

// Next walks the toggle cycle none → present → late → absent → none.
// Excused sits outside the cycle and toggles back to none.
func (s AttendanceStatus) Next() AttendanceStatus {
	switch s {
	case AttendanceNone, "":
		return AttendancePresent
	case AttendancePresent:
		return AttendanceLate
	case AttendanceLate:
		return AttendanceAbsent
	default:
		return AttendanceNone
	}
}

// AttendanceOrigin tells where a looked-up status came from.
type AttendanceOrigin string

const (
	OriginRecorded    AttendanceOrigin = "recorded"
	OriginPlaceholder AttendanceOrigin = "placeholder"
	OriginUnset       AttendanceOrigin = "unset"
)

// AttendanceLookup is the answer for one (student, date) cell.
type AttendanceLookup struct {
	Status AttendanceStatus `json:"status"`
	Origin AttendanceOrigin `json:"-"`
}

// AttendanceRecord is the stored status of one student on one date.
type AttendanceRecord struct {
	StudentID string           `db:"student_id" json:"student_id"`
	Date      time.Time        `db:"date" json:"date"`
	Status    AttendanceStatus `db:"status" json:"status"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// AttendanceStats is derived on demand; Total counts present, late and absent.
type AttendanceStats struct {
	Present int     `json:"present"`
	Late    int     `json:"late"`
	Absent  int     `json:"absent"`
	Excused int     `json:"excused"`
	Total   int     `json:"total"`
	Rate    float64 `json:"rate"`
}

// Add counts one status.
func (s *AttendanceStats) Add(status AttendanceStatus) {
	switch status {
	case AttendancePresent:
		s.Present++
	case AttendanceLate:
		s.Late++
	case AttendanceAbsent:
		s.Absent++
	case AttendanceExcused:
		s.Excused++
	default:
		return
	}
	s.Total = s.Present + s.Late + s.Absent
	if s.Total > 0 {
		s.Rate = float64(s.Present+s.Late) / float64(s.Total)
	}
}

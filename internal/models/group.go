package models

// Group is a cohort of students taking one course with one teacher. Groups are
// owned by the entity store; this service only reads them.
type Group struct {
	ID        string     `db:"id" json:"id"`
	Name      string     `db:"name" json:"name"`
	CourseID  string     `db:"course_id" json:"course_id"`
	TeacherID string     `db:"teacher_id" json:"teacher_id"`
	RoomID    *string    `db:"room_id" json:"room_id,omitempty"`
	Schedule  string     `db:"schedule" json:"schedule"`
	StartTime string     `db:"start_time" json:"start_time"`
	EndTime   string     `db:"end_time" json:"end_time"`
	Type      LessonType `db:"type" json:"type"`
}

// Student is a roster entry of a group.
type Student struct {
	ID      string `db:"id" json:"id"`
	GroupID string `db:"group_id" json:"group_id"`
	Name    string `db:"name" json:"name"`
	Phone   string `db:"phone" json:"phone"`
}

// Pagination describes paging metadata returned by list endpoints.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

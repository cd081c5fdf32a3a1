package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/newuzbdev/edunite/internal/scheduling"

	"github.com/newuzbdev/edunite/internal/models"
)

// MemoryStore keeps groups, students, lessons and attendance in process. It is
// the default driver and backs demos and tests. Lookups of missing keys return
// sql.ErrNoRows so services treat both drivers alike.
type MemoryStore struct {
	mu         sync.RWMutex
	groups     map[string]models.Group
	students   map[string]models.Student
	lessons    map[string]models.Lesson
	attendance map[attendanceKey]models.AttendanceRecord
}

type attendanceKey struct {
	studentID string
	date      string
}

func keyFor(studentID string, date time.Time) attendanceKey {
	return attendanceKey{studentID: studentID, date: date.Format("2006-01-02")}
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		groups:     make(map[string]models.Group),
		students:   make(map[string]models.Student),
		lessons:    make(map[string]models.Lesson),
		attendance: make(map[attendanceKey]models.AttendanceRecord),
	}
}

// Seed is the JSON document accepted by LoadSeed.
type Seed struct {
	Groups     []models.Group   `json:"groups"`
	Students   []models.Student `json:"students"`
	Lessons    []seedLesson     `json:"lessons"`
	Attendance []seedAttendance `json:"attendance"`
}

type seedLesson struct {
	ID        string            `json:"id"`
	GroupID   string            `json:"group_id"`
	Date      string            `json:"date"`
	StartTime string            `json:"start_time"`
	EndTime   string            `json:"end_time"`
	TeacherID string            `json:"teacher_id"`
	RoomID    *string           `json:"room_id"`
	Type      models.LessonType `json:"type"`
	Notes     *string           `json:"notes"`
}

type seedAttendance struct {
	StudentID string                  `json:"student_id"`
	Date      string                  `json:"date"`
	Status    models.AttendanceStatus `json:"status"`
}

// LoadSeedFile reads a seed document from disk into the store.
func (s *MemoryStore) LoadSeedFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(raw, &seed); err != nil {
		return fmt.Errorf("decode seed file: %w", err)
	}
	return s.LoadSeed(seed)
}

// LoadSeed adds the seed entities to the store. Legacy "online" room ids are
// folded into the lesson type.
func (s *MemoryStore) LoadSeed(seed Seed) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, g := range seed.Groups {
		interval, err := scheduling.NewInterval(g.StartTime, g.EndTime)
		if err != nil {
			return fmt.Errorf("seed group %s: %w", g.ID, err)
		}
		g.StartTime, g.EndTime = interval.Start.String(), interval.End.String()
		g.RoomID, g.Type = models.NormalizeRoom(g.RoomID, g.Type)
		s.groups[g.ID] = g
	}
	for _, st := range seed.Students {
		s.students[st.ID] = st
	}
	now := time.Now().UTC()
	for _, l := range seed.Lessons {
		date, err := time.ParseInLocation("2006-01-02", l.Date, time.UTC)
		if err != nil {
			return fmt.Errorf("seed lesson %s: invalid date %q", l.ID, l.Date)
		}
		interval, err := scheduling.NewInterval(l.StartTime, l.EndTime)
		if err != nil {
			return fmt.Errorf("seed lesson %s: %w", l.ID, err)
		}
		lesson := models.Lesson{
			ID:        l.ID,
			GroupID:   l.GroupID,
			Date:      date,
			StartTime: interval.Start.String(),
			EndTime:   interval.End.String(),
			TeacherID: l.TeacherID,
			Notes:     l.Notes,
			CreatedAt: now,
			UpdatedAt: now,
		}
		lesson.RoomID, lesson.Type = models.NormalizeRoom(l.RoomID, l.Type)
		if lesson.ID == "" {
			lesson.ID = uuid.NewString()
		}
		s.lessons[lesson.ID] = lesson
	}
	for _, a := range seed.Attendance {
		date, err := time.ParseInLocation("2006-01-02", a.Date, time.UTC)
		if err != nil {
			return fmt.Errorf("seed attendance %s: invalid date %q", a.StudentID, a.Date)
		}
		if !a.Status.Valid() || a.Status == models.AttendanceNone {
			continue
		}
		s.attendance[keyFor(a.StudentID, date)] = models.AttendanceRecord{StudentID: a.StudentID, Date: date, Status: a.Status, UpdatedAt: now}
	}
	return nil
}

// MemoryLessonRepository serves lessons from a MemoryStore.
type MemoryLessonRepository struct {
	store *MemoryStore
}

// NewMemoryLessonRepository constructs a lesson repository over the store.
func NewMemoryLessonRepository(store *MemoryStore) *MemoryLessonRepository {
	return &MemoryLessonRepository{store: store}
}

func (r *MemoryLessonRepository) sorted(match func(models.Lesson) bool) []models.Lesson {
	var out []models.Lesson
	for _, l := range r.store.lessons {
		if match(l) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime < out[j].StartTime
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// List returns lessons matching the filter, paginated like the SQL driver.
func (r *MemoryLessonRepository) List(ctx context.Context, filter models.LessonFilter) ([]models.Lesson, int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	all := r.sorted(func(l models.Lesson) bool {
		if filter.GroupID != "" && l.GroupID != filter.GroupID {
			return false
		}
		if filter.TeacherID != "" && l.TeacherID != filter.TeacherID {
			return false
		}
		if filter.RoomID != "" && (l.RoomID == nil || *l.RoomID != filter.RoomID) {
			return false
		}
		if filter.DateFrom != nil && l.Date.Before(*filter.DateFrom) {
			return false
		}
		if filter.DateTo != nil && l.Date.After(*filter.DateTo) {
			return false
		}
		return true
	})

	page, size := normalizePage(filter.Page, filter.PageSize)
	start := (page - 1) * size
	if start >= len(all) {
		return []models.Lesson{}, len(all), nil
	}
	end := start + size
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all), nil
}

// ListByDate returns the lessons of one day.
func (r *MemoryLessonRepository) ListByDate(ctx context.Context, date time.Time) ([]models.Lesson, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	day := date.Format("2006-01-02")
	return r.sorted(func(l models.Lesson) bool { return l.Date.Format("2006-01-02") == day }), nil
}

// ListBetween returns the lessons in the inclusive date range.
func (r *MemoryLessonRepository) ListBetween(ctx context.Context, from, to time.Time) ([]models.Lesson, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.sorted(func(l models.Lesson) bool { return !l.Date.Before(from) && !l.Date.After(to) }), nil
}

// FindByID loads a lesson by id.
func (r *MemoryLessonRepository) FindByID(ctx context.Context, id string) (*models.Lesson, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	l, ok := r.store.lessons[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &l, nil
}

// Create stores a new lesson.
func (r *MemoryLessonRepository) Create(ctx context.Context, lesson *models.Lesson) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stampLesson(lesson, time.Now().UTC())
	if _, exists := r.store.lessons[lesson.ID]; exists {
		return fmt.Errorf("create lesson: duplicate id %s", lesson.ID)
	}
	r.store.lessons[lesson.ID] = *lesson
	return nil
}

// BulkCreate stores every lesson or none.
func (r *MemoryLessonRepository) BulkCreate(ctx context.Context, lessons []models.Lesson) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	now := time.Now().UTC()
	seen := make(map[string]struct{}, len(lessons))
	for i := range lessons {
		stampLesson(&lessons[i], now)
		_, dupBatch := seen[lessons[i].ID]
		_, dupStore := r.store.lessons[lessons[i].ID]
		if dupBatch || dupStore {
			return fmt.Errorf("bulk insert lesson: duplicate id %s", lessons[i].ID)
		}
		seen[lessons[i].ID] = struct{}{}
	}
	for _, l := range lessons {
		r.store.lessons[l.ID] = l
	}
	return nil
}

// Update replaces a stored lesson.
func (r *MemoryLessonRepository) Update(ctx context.Context, lesson *models.Lesson) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	existing, ok := r.store.lessons[lesson.ID]
	if !ok {
		return fmt.Errorf("update lesson: %w", sql.ErrNoRows)
	}
	lesson.CreatedAt = existing.CreatedAt
	lesson.UpdatedAt = time.Now().UTC()
	r.store.lessons[lesson.ID] = *lesson
	return nil
}

// Delete removes a lesson by id.
func (r *MemoryLessonRepository) Delete(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.lessons, id)
	return nil
}

// MemoryGroupRepository serves groups from a MemoryStore.
type MemoryGroupRepository struct {
	store *MemoryStore
}

// NewMemoryGroupRepository constructs a group repository over the store.
func NewMemoryGroupRepository(store *MemoryStore) *MemoryGroupRepository {
	return &MemoryGroupRepository{store: store}
}

// List returns every group ordered by name.
func (r *MemoryGroupRepository) List(ctx context.Context) ([]models.Group, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	groups := make([]models.Group, 0, len(r.store.groups))
	for _, g := range r.store.groups {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return strings.ToLower(groups[i].Name) < strings.ToLower(groups[j].Name) })
	return groups, nil
}

// FindByID fetches a group by id.
func (r *MemoryGroupRepository) FindByID(ctx context.Context, id string) (*models.Group, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	g, ok := r.store.groups[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &g, nil
}

// MemoryStudentRepository serves students from a MemoryStore.
type MemoryStudentRepository struct {
	store *MemoryStore
}

// NewMemoryStudentRepository constructs a student repository over the store.
func NewMemoryStudentRepository(store *MemoryStore) *MemoryStudentRepository {
	return &MemoryStudentRepository{store: store}
}

// ListByGroup returns the students of a group ordered by name.
func (r *MemoryStudentRepository) ListByGroup(ctx context.Context, groupID string) ([]models.Student, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var students []models.Student
	for _, st := range r.store.students {
		if st.GroupID == groupID {
			students = append(students, st)
		}
	}
	sort.Slice(students, func(i, j int) bool {
		if students[i].Name != students[j].Name {
			return students[i].Name < students[j].Name
		}
		return students[i].ID < students[j].ID
	})
	return students, nil
}

// FindByID fetches a student by id.
func (r *MemoryStudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	st, ok := r.store.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &st, nil
}

// MemoryAttendanceRepository serves attendance from a MemoryStore.
type MemoryAttendanceRepository struct {
	store *MemoryStore
}

// NewMemoryAttendanceRepository constructs an attendance repository over the store.
func NewMemoryAttendanceRepository(store *MemoryStore) *MemoryAttendanceRepository {
	return &MemoryAttendanceRepository{store: store}
}

// Get loads the record for a student on a date.
func (r *MemoryAttendanceRepository) Get(ctx context.Context, studentID string, date time.Time) (*models.AttendanceRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	rec, ok := r.store.attendance[keyFor(studentID, date)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &rec, nil
}

// Upsert writes the record, replacing any existing status for the key.
func (r *MemoryAttendanceRepository) Upsert(ctx context.Context, record *models.AttendanceRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	record.UpdatedAt = time.Now().UTC()
	r.store.attendance[keyFor(record.StudentID, record.Date)] = *record
	return nil
}

// Delete clears the key.
func (r *MemoryAttendanceRepository) Delete(ctx context.Context, studentID string, date time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.attendance, keyFor(studentID, date))
	return nil
}

// ListByStudents returns the records of the given students in the inclusive date range.
func (r *MemoryAttendanceRepository) ListByStudents(ctx context.Context, studentIDs []string, from, to time.Time) ([]models.AttendanceRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	wanted := make(map[string]struct{}, len(studentIDs))
	for _, id := range studentIDs {
		wanted[id] = struct{}{}
	}
	fromKey, toKey := from.Format("2006-01-02"), to.Format("2006-01-02")
	var records []models.AttendanceRecord
	for key, rec := range r.store.attendance {
		if _, ok := wanted[key.studentID]; !ok {
			continue
		}
		if key.date < fromKey || key.date > toKey {
			continue
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].StudentID != records[j].StudentID {
			return records[i].StudentID < records[j].StudentID
		}
		return records[i].Date.Before(records[j].Date)
	})
	return records, nil
}

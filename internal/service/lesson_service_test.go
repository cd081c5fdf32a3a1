package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/newuzbdev/edunite/internal/models"
	"github.com/newuzbdev/edunite/internal/scheduling"
	appErrors "github.com/newuzbdev/edunite/pkg/errors"
)

type mockLessonRepo struct {
	mu        sync.Mutex
	lessons   map[string]models.Lesson
	seq       int
	bulkCalls int
	listCalls int
}

func newMockLessonRepo(seed ...models.Lesson) *mockLessonRepo {
	repo := &mockLessonRepo{lessons: map[string]models.Lesson{}}
	for _, l := range seed {
		repo.lessons[l.ID] = l
	}
	return repo
}

func (m *mockLessonRepo) sorted(match func(models.Lesson) bool) []models.Lesson {
	var out []models.Lesson
	for _, l := range m.lessons {
		if match(l) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out
}

func (m *mockLessonRepo) List(ctx context.Context, filter models.LessonFilter) ([]models.Lesson, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.sorted(func(l models.Lesson) bool { return filter.GroupID == "" || l.GroupID == filter.GroupID })
	return out, len(out), nil
}

func (m *mockLessonRepo) ListByDate(ctx context.Context, date time.Time) ([]models.Lesson, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(l models.Lesson) bool { return scheduling.SameDay(l.Date, date) }), nil
}

func (m *mockLessonRepo) ListBetween(ctx context.Context, from, to time.Time) ([]models.Lesson, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	return m.sorted(func(l models.Lesson) bool { return !l.Date.Before(from) && !l.Date.After(to) }), nil
}

func (m *mockLessonRepo) FindByID(ctx context.Context, id string) (*models.Lesson, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lessons[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &l, nil
}

// stamp assigns the next free l-N id, skipping ids taken by seeded lessons.
func (m *mockLessonRepo) stamp(l *models.Lesson) {
	for l.ID == "" {
		m.seq++
		id := fmt.Sprintf("l-%d", m.seq)
		if _, taken := m.lessons[id]; !taken {
			l.ID = id
		}
	}
}

func (m *mockLessonRepo) Create(ctx context.Context, lesson *models.Lesson) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stamp(lesson)
	m.lessons[lesson.ID] = *lesson
	return nil
}

func (m *mockLessonRepo) BulkCreate(ctx context.Context, lessons []models.Lesson) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bulkCalls++
	for i := range lessons {
		m.stamp(&lessons[i])
		m.lessons[lessons[i].ID] = lessons[i]
	}
	return nil
}

func (m *mockLessonRepo) Update(ctx context.Context, lesson *models.Lesson) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lessons[lesson.ID]; !ok {
		return sql.ErrNoRows
	}
	m.lessons[lesson.ID] = *lesson
	return nil
}

func (m *mockLessonRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lessons, id)
	return nil
}

type mockGroupRepo struct {
	groups map[string]models.Group
	err    error
}

func (m *mockGroupRepo) FindByID(ctx context.Context, id string) (*models.Group, error) {
	if m.err != nil {
		return nil, m.err
	}
	g, ok := m.groups[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &g, nil
}

func (m *mockGroupRepo) List(ctx context.Context) ([]models.Group, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([]models.Group, 0, len(m.groups))
	for _, g := range m.groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type stubCacheRepo struct {
	mu          sync.Mutex
	items       map[string][]byte
	invalidated []string
}

func newStubCacheRepo() *stubCacheRepo {
	return &stubCacheRepo{items: map[string][]byte{}}
}

func (s *stubCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (s *stubCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.items[key] = raw
	return nil
}

func (s *stubCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidated = append(s.invalidated, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range s.items {
		if strings.HasPrefix(key, prefix) {
			delete(s.items, key)
		}
	}
	return nil
}

func roomPtr(id string) *string { return &id }

func testGroups() *mockGroupRepo {
	return &mockGroupRepo{groups: map[string]models.Group{
		"g-1": {ID: "g-1", Name: "English A1", CourseID: "c-en", TeacherID: "t-1", RoomID: roomPtr("r-1"), Schedule: "Dush/Chor/Juma 14:00-15:30", StartTime: "14:00", EndTime: "15:30", Type: models.LessonTypeOffline},
		"g-2": {ID: "g-2", Name: "Math B2", CourseID: "c-math", TeacherID: "t-2", RoomID: roomPtr("r-2"), Schedule: "Seshanba Payshanba", StartTime: "10:00", EndTime: "11:30", Type: models.LessonTypeOffline},
		"g-3": {ID: "g-3", Name: "Online IELTS", CourseID: "c-en", TeacherID: "t-3", Schedule: "har kuni", StartTime: "18:00", EndTime: "19:00", Type: models.LessonTypeOnline},
	}}
}

type lessonFixture struct {
	svc     *LessonService
	repo    *mockLessonRepo
	cache   *stubCacheRepo
	metrics *MetricsService
}

func newLessonFixture(seed ...models.Lesson) lessonFixture {
	repo := newMockLessonRepo(seed...)
	cacheRepo := newStubCacheRepo()
	metrics := NewMetricsService()
	cacheSvc := NewCacheService(cacheRepo, metrics, time.Minute, zap.NewNop(), true)
	svc := NewLessonService(repo, testGroups(), cacheSvc, metrics, validator.New(), zap.NewNop())
	return lessonFixture{svc: svc, repo: repo, cache: cacheRepo, metrics: metrics}
}

func existingLesson(id, groupID, teacherID string, room *string, date, start, end string) models.Lesson {
	d, _ := scheduling.ParseDate(date)
	return models.Lesson{ID: id, GroupID: groupID, TeacherID: teacherID, RoomID: room, Type: models.LessonTypeOffline, Date: d, StartTime: start, EndTime: end}
}

func TestLessonCreateDefaultsFromGroup(t *testing.T) {
	f := newLessonFixture()

	lesson, err := f.svc.Create(context.Background(), LessonRequest{GroupID: "g-1", Date: "2026-10-19", StartTime: "14:00", EndTime: "15:30"})
	require.NoError(t, err)
	assert.NotEmpty(t, lesson.ID)
	assert.Equal(t, "t-1", lesson.TeacherID)
	require.NotNil(t, lesson.RoomID)
	assert.Equal(t, "r-1", *lesson.RoomID)
	assert.Equal(t, models.LessonTypeOffline, lesson.Type)
	assert.Equal(t, []string{timetableCachePattern}, f.cache.invalidated)
}

func TestLessonCreateNormalisesOnlineSentinel(t *testing.T) {
	f := newLessonFixture()

	lesson, err := f.svc.Create(context.Background(), LessonRequest{GroupID: "g-1", Date: "2026-10-19", StartTime: "09:00", EndTime: "10:00", RoomID: roomPtr("online")})
	require.NoError(t, err)
	assert.Nil(t, lesson.RoomID)
	assert.Equal(t, models.LessonTypeOnline, lesson.Type)
}

func TestLessonCreateStoresZeroPaddedClock(t *testing.T) {
	f := newLessonFixture(existingLesson("l-a", "g-2", "t-2", roomPtr("r-2"), "2026-10-19", "10:00", "11:00"))
	ctx := context.Background()

	lesson, err := f.svc.Create(ctx, LessonRequest{GroupID: "g-1", Date: "2026-10-19", StartTime: "9:00", EndTime: "9:45"})
	require.NoError(t, err)
	assert.Equal(t, "09:00", lesson.StartTime)
	assert.Equal(t, "09:45", lesson.EndTime)
	assert.Equal(t, "09:00", f.repo.lessons[lesson.ID].StartTime)

	listed, _, err := f.repo.List(ctx, models.LessonFilter{})
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, lesson.ID, listed[0].ID, "09:00 sorts before 10:00")
}

func TestLessonCreateRejectsConflicts(t *testing.T) {
	cases := []struct {
		name      string
		existing  models.Lesson
		req       LessonRequest
		dimension models.ConflictDimension
	}{
		{
			name:      "same teacher",
			existing:  existingLesson("l-x", "g-2", "t-1", roomPtr("r-9"), "2026-10-19", "14:30", "15:00"),
			req:       LessonRequest{GroupID: "g-1", Date: "2026-10-19", StartTime: "14:00", EndTime: "15:30", RoomID: roomPtr("r-5"), Type: "offline"},
			dimension: models.ConflictTeacher,
		},
		{
			name:      "same room",
			existing:  existingLesson("l-x", "g-2", "t-2", roomPtr("R-1"), "2026-10-19", "15:00", "16:00"),
			req:       LessonRequest{GroupID: "g-1", Date: "2026-10-19", StartTime: "14:00", EndTime: "15:30"},
			dimension: models.ConflictRoom,
		},
		{
			name:      "same group",
			existing:  existingLesson("l-x", "g-1", "t-9", nil, "2026-10-19", "13:00", "14:30"),
			req:       LessonRequest{GroupID: "g-1", Date: "2026-10-19", StartTime: "14:00", EndTime: "15:30", TeacherID: "t-7", Type: "online"},
			dimension: models.ConflictGroup,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newLessonFixture(tc.existing)

			_, err := f.svc.Create(context.Background(), tc.req)
			require.Error(t, err)
			appErr := appErrors.FromError(err)
			assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
			assert.Equal(t, 409, appErr.Status)

			var conflictErr *models.LessonConflictError
			require.True(t, errors.As(err, &conflictErr))
			assert.Equal(t, "l-x", conflictErr.Conflict.LessonID)
			assert.Equal(t, tc.dimension, conflictErr.Conflict.Dimension)
			assert.Equal(t, conflictErr.Conflict, appErr.Details)
			assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.lessonConflicts.WithLabelValues(string(tc.dimension))))
			assert.Len(t, f.repo.lessons, 1)
		})
	}
}

func TestLessonCreateAllowsTouchingAndOnlineSharing(t *testing.T) {
	f := newLessonFixture(
		existingLesson("l-a", "g-2", "t-2", roomPtr("r-1"), "2026-10-19", "15:30", "16:30"),
		existingLesson("l-b", "g-3", "t-3", roomPtr("r-2"), "2026-10-19", "09:00", "10:00"),
	)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, LessonRequest{GroupID: "g-1", Date: "2026-10-19", StartTime: "14:00", EndTime: "15:30"})
	require.NoError(t, err, "lessons that only touch do not overlap")

	_, err = f.svc.Create(ctx, LessonRequest{GroupID: "g-2", Date: "2026-10-19", StartTime: "09:00", EndTime: "10:00", RoomID: roomPtr("r-2"), Type: "online"})
	require.NoError(t, err, "online lessons never compete for a room")
}

func TestLessonCreateValidation(t *testing.T) {
	f := newLessonFixture()
	ctx := context.Background()

	_, err := f.svc.Create(ctx, LessonRequest{GroupID: "g-1", Date: "2026-10-19", StartTime: "15:00", EndTime: "14:00"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = f.svc.Create(ctx, LessonRequest{GroupID: "g-1", Date: "19.10.2026", StartTime: "14:00", EndTime: "15:00"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = f.svc.Create(ctx, LessonRequest{GroupID: "g-404", Date: "2026-10-19", StartTime: "14:00", EndTime: "15:00"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestLessonUpdateIgnoresItself(t *testing.T) {
	f := newLessonFixture(existingLesson("l-1", "g-1", "t-1", roomPtr("r-1"), "2026-10-19", "14:00", "15:30"))
	ctx := context.Background()

	updated, err := f.svc.Update(ctx, "l-1", LessonRequest{GroupID: "g-1", Date: "2026-10-19", StartTime: "14:30", EndTime: "16:00"})
	require.NoError(t, err)
	assert.Equal(t, "l-1", updated.ID)
	assert.Equal(t, "14:30", f.repo.lessons["l-1"].StartTime)

	_, err = f.svc.Update(ctx, "missing", LessonRequest{GroupID: "g-1", Date: "2026-10-19", StartTime: "14:30", EndTime: "16:00"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestLessonDelete(t *testing.T) {
	f := newLessonFixture(existingLesson("l-1", "g-1", "t-1", roomPtr("r-1"), "2026-10-19", "14:00", "15:30"))
	ctx := context.Background()

	require.NoError(t, f.svc.Delete(ctx, "l-1"))
	assert.Empty(t, f.repo.lessons)

	err := f.svc.Delete(ctx, "l-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestLessonCheckReportsEveryConflictWithoutWriting(t *testing.T) {
	f := newLessonFixture(
		existingLesson("l-1", "g-2", "t-1", roomPtr("r-3"), "2026-10-19", "14:00", "15:00"),
		existingLesson("l-2", "g-2", "t-9", roomPtr("R-1"), "2026-10-19", "15:00", "16:00"),
		existingLesson("l-3", "g-2", "t-9", roomPtr("r-1"), "2026-10-19", "16:00", "17:00"),
	)
	ctx := context.Background()
	req := LessonRequest{GroupID: "g-1", Date: "2026-10-19", StartTime: "14:30", EndTime: "15:30"}

	conflicts, err := f.svc.Check(ctx, req, "")
	require.NoError(t, err)
	require.Len(t, conflicts, 2)
	assert.Equal(t, "l-1", conflicts[0].LessonID)
	assert.Equal(t, models.ConflictTeacher, conflicts[0].Dimension)
	assert.Equal(t, "l-2", conflicts[1].LessonID)
	assert.Equal(t, models.ConflictRoom, conflicts[1].Dimension)
	assert.Len(t, f.repo.lessons, 3)

	conflicts, err = f.svc.Check(ctx, LessonRequest{GroupID: "g-1", Date: "2026-10-19", StartTime: "14:30", EndTime: "15:00"}, "l-1")
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestLessonImportReportsOverlaps(t *testing.T) {
	f := newLessonFixture(existingLesson("l-1", "g-2", "t-1", roomPtr("r-3"), "2026-10-19", "14:00", "15:00"))

	result, err := f.svc.Import(context.Background(), ImportLessonsRequest{Items: []LessonRequest{
		{GroupID: "g-1", Date: "2026-10-19", StartTime: "14:30", EndTime: "15:30"},
		{GroupID: "g-1", Date: "2026-10-21", StartTime: "14:00", EndTime: "15:30"},
		{GroupID: "g-1", Date: "2026-10-21", StartTime: "15:00", EndTime: "16:00"},
	}})
	require.NoError(t, err)
	require.Len(t, result.Created, 3)
	require.Len(t, result.Overlaps, 2)
	assert.Equal(t, 0, result.Overlaps[0].Index)
	assert.Equal(t, "l-1", result.Overlaps[0].Conflict.LessonID)
	assert.Equal(t, 2, result.Overlaps[1].Index)
	assert.Equal(t, models.ConflictGroup, result.Overlaps[1].Conflict.Dimension)
	assert.NotEmpty(t, result.Overlaps[1].Lesson.ID)
	assert.Len(t, f.repo.lessons, 4)
	assert.Equal(t, "g-2", f.repo.lessons["l-1"].GroupID, "imported lessons get fresh ids")
	for _, created := range result.Created {
		assert.NotEqual(t, "l-1", created.ID)
	}
	assert.Equal(t, float64(2), testutil.ToFloat64(f.metrics.importOverlaps))
}

func TestLessonImportRejectsInvalidItem(t *testing.T) {
	f := newLessonFixture()

	_, err := f.svc.Import(context.Background(), ImportLessonsRequest{Items: []LessonRequest{
		{GroupID: "g-1", Date: "2026-10-19", StartTime: "14:30", EndTime: "15:30"},
		{GroupID: "g-404", Date: "2026-10-19", StartTime: "14:30", EndTime: "15:30"},
	}})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "item 1")
	assert.Empty(t, f.repo.lessons)
}

func TestLessonProjectGroupCreatesClassDates(t *testing.T) {
	f := newLessonFixture()

	result, err := f.svc.ProjectGroup(context.Background(), "g-1", ProjectLessonsRequest{From: "2026-10-19", To: "2026-10-25"})
	require.NoError(t, err)
	assert.False(t, result.Fallback)
	assert.Equal(t, []int{1, 3, 5}, result.Weekdays.Ints())
	require.Len(t, result.Created, 3)
	for _, l := range result.Created {
		assert.NotEmpty(t, l.ID)
		assert.Equal(t, "14:00", l.StartTime)
	}
	assert.Equal(t, 1, f.repo.bulkCalls)
}

func TestLessonProjectGroupPartialOnError(t *testing.T) {
	f := newLessonFixture(existingLesson("l-busy", "g-2", "t-2", roomPtr("r-1"), "2026-10-21", "15:00", "16:00"))
	ctx := context.Background()
	req := ProjectLessonsRequest{From: "2026-10-19", To: "2026-10-25"}

	_, err := f.svc.ProjectGroup(ctx, "g-1", req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Len(t, f.repo.lessons, 1, "nothing is written when one date conflicts")

	req.PartialOnError = true
	result, err := f.svc.ProjectGroup(ctx, "g-1", req)
	require.NoError(t, err)
	assert.Len(t, result.Created, 2)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, models.ConflictRoom, result.Conflicts[0].Dimension)

	// Projecting again finds every date taken by the group itself.
	again, err := f.svc.ProjectGroup(ctx, "g-1", req)
	require.NoError(t, err)
	assert.Empty(t, again.Created)
	require.Len(t, again.Conflicts, 3)
	assert.Equal(t, models.ConflictGroup, again.Conflicts[0].Dimension)
	assert.Equal(t, models.ConflictRoom, again.Conflicts[1].Dimension)
	assert.Equal(t, models.ConflictGroup, again.Conflicts[2].Dimension)
	assert.Len(t, f.repo.lessons, 3)
}

func TestLessonProjectGroupFallbackAndErrors(t *testing.T) {
	f := newLessonFixture()
	ctx := context.Background()

	result, err := f.svc.ProjectGroup(ctx, "g-3", ProjectLessonsRequest{From: "2026-10-19", To: "2026-10-25"})
	require.NoError(t, err)
	assert.True(t, result.Fallback)
	assert.Len(t, result.Created, 5)
	for _, l := range result.Created {
		assert.Equal(t, models.LessonTypeOnline, l.Type)
		assert.Nil(t, l.RoomID)
	}
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.parseFallbacks))

	_, err = f.svc.ProjectGroup(ctx, "g-404", ProjectLessonsRequest{From: "2026-10-19", To: "2026-10-25"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = f.svc.ProjectGroup(ctx, "g-1", ProjectLessonsRequest{From: "2026-10-25", To: "2026-10-19"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = f.svc.ProjectGroup(ctx, "g-1", ProjectLessonsRequest{From: "2026-01-01", To: "2027-06-01"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestLessonListPagination(t *testing.T) {
	f := newLessonFixture(
		existingLesson("l-1", "g-1", "t-1", nil, "2026-10-19", "14:00", "15:30"),
		existingLesson("l-2", "g-2", "t-2", nil, "2026-10-20", "10:00", "11:30"),
	)

	lessons, pagination, err := f.svc.List(context.Background(), models.LessonFilter{GroupID: "g-1", PageSize: 500})
	require.NoError(t, err)
	assert.Len(t, lessons, 1)
	assert.Equal(t, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, pagination)
}

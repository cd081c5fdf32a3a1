package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/newuzbdev/edunite/internal/models"
	"github.com/newuzbdev/edunite/internal/scheduling"
	appErrors "github.com/newuzbdev/edunite/pkg/errors"
	"github.com/newuzbdev/edunite/pkg/export"
)

// Fixed roster columns around the per-date cells.
const (
	rosterColumnStudentID = "Student ID"
	rosterColumnStudent   = "Student"
	rosterColumnPhone     = "Phone"
	rosterColumnPresent   = "Present"
	rosterColumnLate      = "Late"
	rosterColumnAbsent    = "Absent"
	rosterColumnTotal     = "Total"
)

// RosterFormat is the file format of a roster export.
type RosterFormat string

const (
	RosterFormatCSV RosterFormat = "csv"
	RosterFormatPDF RosterFormat = "pdf"
)

type rosterStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ListByGroup(ctx context.Context, groupID string) ([]models.Student, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
	Parse(r io.Reader) (export.Dataset, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// RosterFile is a rendered roster ready for download.
type RosterFile struct {
	Filename    string
	ContentType string
	Content     []byte
}

// ImportAttendanceResult summarises a roster import.
type ImportAttendanceResult struct {
	Students int `json:"students"`
	Written  int `json:"written"`
}

// RosterService assembles monthly attendance sheets of a group.
type RosterService struct {
	groups     groupRepository
	students   rosterStudentRepository
	attendance *AttendanceService
	csv        csvRenderer
	pdf        pdfRenderer
	metrics    *MetricsService
	logger     *zap.Logger
}

// NewRosterService constructs a RosterService. Nil renderers fall back to the
// pkg/export implementations.
func NewRosterService(groups groupRepository, students rosterStudentRepository, attendance *AttendanceService, metrics *MetricsService, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *RosterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &RosterService{
		groups:     groups,
		students:   students,
		attendance: attendance,
		csv:        csv,
		pdf:        pdf,
		metrics:    metrics,
		logger:     logger,
	}
}

// ClassDates returns the dates of the month on which the group meets.
func (s *RosterService) ClassDates(ctx context.Context, groupID string, month time.Time) (*models.GroupClassDates, error) {
	group, err := s.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	set, ok := groupWeekdays(*group, s.logger, s.metrics)
	return &models.GroupClassDates{
		GroupID:    group.ID,
		Month:      scheduling.MonthStart(month),
		Weekdays:   set.Ints(),
		Fallback:   !ok,
		ClassDates: scheduling.ClassDatesInRange(set, scheduling.DatesOfMonth(month)),
	}, nil
}

// Roster returns every student of the group with their status on each class
// date of the month and the derived stats.
func (s *RosterService) Roster(ctx context.Context, groupID string, month time.Time) (*models.GroupRoster, error) {
	group, err := s.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	set, _ := groupWeekdays(*group, s.logger, s.metrics)
	classDates := scheduling.ClassDatesInRange(set, scheduling.DatesOfMonth(month))

	students, err := s.students.ListByGroup(ctx, group.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}
	ids := make([]string, len(students))
	for i, st := range students {
		ids[i] = st.ID
	}
	sheet, err := s.attendance.Sheet(ctx, ids, classDates)
	if err != nil {
		return nil, err
	}

	roster := &models.GroupRoster{
		Group:      *group,
		Month:      scheduling.MonthStart(month),
		Weekdays:   set.Ints(),
		ClassDates: classDates,
		Rows:       make([]models.RosterRow, 0, len(students)),
	}
	for _, st := range students {
		cells := sheet[st.ID]
		statuses := make([]models.AttendanceStatus, len(cells))
		for i, cell := range cells {
			statuses[i] = cell.Status
		}
		roster.Rows = append(roster.Rows, models.RosterRow{
			Student:  st,
			Statuses: statuses,
			Stats:    foldStats(cells),
		})
	}
	return roster, nil
}

// StudentStats folds a student's attendance over the group's class dates of
// the month. An empty groupID means the student's own group.
func (s *RosterService) StudentStats(ctx context.Context, studentID, groupID string, month time.Time) (models.AttendanceStats, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.AttendanceStats{}, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return models.AttendanceStats{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if groupID == "" {
		groupID = student.GroupID
	}
	dates, err := s.ClassDates(ctx, groupID, month)
	if err != nil {
		return models.AttendanceStats{}, err
	}
	return s.attendance.StatsFor(ctx, student.ID, dates.ClassDates)
}

// Export renders the monthly roster as CSV or PDF. Statuses recorded on days
// outside the schedule get their own date columns so an import restores them.
func (s *RosterService) Export(ctx context.Context, groupID string, month time.Time, format RosterFormat) (*RosterFile, error) {
	if format == "" {
		format = RosterFormatCSV
	}
	if format != RosterFormatCSV && format != RosterFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	roster, err := s.Roster(ctx, groupID, month)
	if err != nil {
		return nil, err
	}
	extra, err := s.offScheduleCells(ctx, roster)
	if err != nil {
		return nil, err
	}
	data := rosterDataset(roster, extra)
	filename := fmt.Sprintf("attendance-%s-%s.%s", roster.Group.ID, roster.Month.Format(scheduling.MonthLayout), format)

	switch format {
	case RosterFormatPDF:
		title := fmt.Sprintf("%s attendance %s", roster.Group.Name, roster.Month.Format(scheduling.MonthLayout))
		content, err := s.pdf.Render(data, title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
		}
		return &RosterFile{Filename: filename, ContentType: "application/pdf", Content: content}, nil
	default:
		content, err := s.csv.Render(data)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
		}
		return &RosterFile{Filename: filename, ContentType: "text/csv; charset=utf-8", Content: content}, nil
	}
}

// Import reads a CSV roster in the export layout and writes every non-empty
// status cell. The whole file is validated before anything is written.
func (s *RosterService) Import(ctx context.Context, groupID string, r io.Reader) (*ImportAttendanceResult, error) {
	group, err := s.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	data, err := s.csv.Parse(r)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid roster file")
	}
	if !hasHeader(data.Headers, rosterColumnStudentID) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "roster file has no "+rosterColumnStudentID+" column")
	}

	type dateColumn struct {
		header string
		date   time.Time
	}
	var columns []dateColumn
	for _, h := range data.Headers {
		if d, err := scheduling.ParseDate(h); err == nil {
			columns = append(columns, dateColumn{header: h, date: d})
		}
	}

	students, err := s.students.ListByGroup(ctx, group.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}
	members := make(map[string]bool, len(students))
	for _, st := range students {
		members[st.ID] = true
	}

	type cellWrite struct {
		studentID string
		date      time.Time
		status    models.AttendanceStatus
	}
	var writes []cellWrite
	seen := make(map[string]bool)
	for i, row := range data.Rows {
		line := strconv.Itoa(i + 2)
		studentID := row[rosterColumnStudentID]
		if studentID == "" {
			continue
		}
		if !members[studentID] {
			return nil, appErrors.Clone(appErrors.ErrValidation, "line "+line+": student "+studentID+" is not in the group")
		}
		seen[studentID] = true
		for _, col := range columns {
			raw := row[col.header]
			if raw == "" {
				continue
			}
			status, ok := models.ParseAttendanceStatus(raw)
			if !ok {
				return nil, appErrors.Clone(appErrors.ErrValidation, "line "+line+": unknown status "+raw+" on "+col.header)
			}
			writes = append(writes, cellWrite{studentID: studentID, date: col.date, status: status})
		}
	}

	for _, w := range writes {
		if err := s.attendance.set(ctx, w.studentID, w.date, w.status, attendanceSourceImport); err != nil {
			return nil, err
		}
	}
	s.logger.Info("attendance roster imported",
		zap.String("group_id", group.ID),
		zap.Int("students", len(seen)),
		zap.Int("cells", len(writes)),
	)
	return &ImportAttendanceResult{Students: len(seen), Written: len(writes)}, nil
}

func (s *RosterService) loadGroup(ctx context.Context, id string) (*models.Group, error) {
	if strings.TrimSpace(id) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "group id is required")
	}
	group, err := s.groups.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}
	return group, nil
}

// offScheduleStatuses holds recorded statuses on dates that are not class
// dates, keyed by student id and then by YYYY-MM-DD.
type offScheduleStatuses struct {
	dates    []time.Time
	statuses map[string]map[string]models.AttendanceStatus
}

func (s *RosterService) offScheduleCells(ctx context.Context, roster *models.GroupRoster) (offScheduleStatuses, error) {
	extra := offScheduleStatuses{statuses: make(map[string]map[string]models.AttendanceStatus)}
	ids := make([]string, len(roster.Rows))
	for i, r := range roster.Rows {
		ids[i] = r.Student.ID
	}
	month := scheduling.DatesOfMonth(roster.Month)
	if len(month) == 0 {
		return extra, nil
	}
	records, err := s.attendance.Recorded(ctx, ids, month[0], month[len(month)-1])
	if err != nil {
		return extra, err
	}

	scheduled := make(map[string]bool, len(roster.ClassDates))
	for _, d := range roster.ClassDates {
		scheduled[d.Format(scheduling.DateLayout)] = true
	}
	for _, r := range records {
		key := r.Date.Format(scheduling.DateLayout)
		if scheduled[key] || r.Status == models.AttendanceNone {
			continue
		}
		if extra.statuses[r.StudentID] == nil {
			extra.statuses[r.StudentID] = make(map[string]models.AttendanceStatus)
		}
		extra.statuses[r.StudentID][key] = r.Status
		scheduled[key] = true
		extra.dates = append(extra.dates, scheduling.Day(r.Date))
	}
	if len(extra.dates) > 0 {
		s.logger.Debug("roster export includes off-schedule dates",
			zap.String("group_id", roster.Group.ID),
			zap.Int("dates", len(extra.dates)),
		)
	}
	return extra, nil
}

func rosterDataset(roster *models.GroupRoster, extra offScheduleStatuses) export.Dataset {
	dates := append(append([]time.Time{}, roster.ClassDates...), extra.dates...)
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	headers := []string{rosterColumnStudentID, rosterColumnStudent, rosterColumnPhone}
	for _, d := range dates {
		headers = append(headers, d.Format(scheduling.DateLayout))
	}
	headers = append(headers, rosterColumnPresent, rosterColumnLate, rosterColumnAbsent, rosterColumnTotal)

	rows := make([]map[string]string, 0, len(roster.Rows))
	for _, r := range roster.Rows {
		row := map[string]string{
			rosterColumnStudentID: r.Student.ID,
			rosterColumnStudent:   r.Student.Name,
			rosterColumnPhone:     r.Student.Phone,
			rosterColumnPresent:   strconv.Itoa(r.Stats.Present),
			rosterColumnLate:      strconv.Itoa(r.Stats.Late),
			rosterColumnAbsent:    strconv.Itoa(r.Stats.Absent),
			rosterColumnTotal:     strconv.Itoa(r.Stats.Total),
		}
		for _, d := range extra.dates {
			key := d.Format(scheduling.DateLayout)
			row[key] = string(extra.statuses[r.Student.ID][key])
		}
		for i, d := range roster.ClassDates {
			status := r.Statuses[i]
			if status == models.AttendanceNone {
				status = ""
			}
			row[d.Format(scheduling.DateLayout)] = string(status)
		}
		rows = append(rows, row)
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func hasHeader(headers []string, name string) bool {
	for _, h := range headers {
		if h == name {
			return true
		}
	}
	return false
}

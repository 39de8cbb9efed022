package workload

import (
	"strings"

	"github.com/sells-group/trial-workload/internal/config"
	"github.com/sells-group/trial-workload/internal/model"
)

// StudyActuals is one study's logged effort over a window of weeks.
type StudyActuals struct {
	StudyID string
	// Weeks has one row per window week, oldest first, including empty weeks.
	Weeks             []model.WeeklyActual
	ContributingWeeks int
	Contributors      int
	Entries           int
	LastWeekStart     model.Week

	AvgMeetingHours        float64
	AvgScreeningHours      float64
	AvgQueryHours          float64
	AvgScreeningStudyCount float64
	AvgQueryStudyCount     float64
}

// attribution is the part of one log credited to one study.
type attribution struct {
	studyID   string
	meeting   float64
	screening float64
	query     float64
	notes     string
}

func (a attribution) total() float64 {
	return a.meeting + a.screening + a.query
}

type weekAccum struct {
	meeting      float64
	screening    float64
	query        float64
	notes        map[string]struct{}
	coordinators map[string]struct{}
}

type studyAccum struct {
	weeks           []weekAccum
	coordinators    map[string]struct{}
	entries         int
	screeningCounts int
	queryCounts     int
}

func newStudyAccum(n int) *studyAccum {
	acc := &studyAccum{
		weeks:        make([]weekAccum, n),
		coordinators: make(map[string]struct{}),
	}
	for i := range acc.weeks {
		acc.weeks[i].notes = make(map[string]struct{})
		acc.weeks[i].coordinators = make(map[string]struct{})
	}
	return acc
}

// Aggregate rolls weekly logs up per study over the given weeks. Logs
// outside the weeks are ignored. Hours a breakdown does not cover are
// attributed according to the apportionment policy.
func Aggregate(logs []model.CoordinatorWeeklyLog, assignments []model.Assignment, weeks []model.Week, policy string) map[string]*StudyActuals {
	index := make(map[string]int, len(weeks))
	for i, w := range weeks {
		index[w.String()] = i
	}

	byCoordinator := make(map[string][]model.Assignment)
	for _, a := range assignments {
		byCoordinator[a.CoordinatorID] = append(byCoordinator[a.CoordinatorID], a)
	}

	accums := make(map[string]*studyAccum)
	for _, l := range logs {
		wi, ok := index[model.WeekOf(l.WeekStart.Time).String()]
		if !ok {
			continue
		}
		for _, at := range attribute(l, byCoordinator[l.CoordinatorID], weeks[wi], policy) {
			if at.total() <= 0 {
				continue
			}
			acc, ok := accums[at.studyID]
			if !ok {
				acc = newStudyAccum(len(weeks))
				accums[at.studyID] = acc
			}
			wk := &acc.weeks[wi]
			wk.meeting += at.meeting
			wk.screening += at.screening
			wk.query += at.query
			if n := strings.TrimSpace(at.notes); n != "" {
				wk.notes[n] = struct{}{}
			}
			wk.coordinators[l.CoordinatorID] = struct{}{}
			acc.coordinators[l.CoordinatorID] = struct{}{}
			acc.entries++
			acc.screeningCounts += l.ScreeningStudyCount
			acc.queryCounts += l.QueryStudyCount
		}
	}

	out := make(map[string]*StudyActuals, len(accums))
	for id, acc := range accums {
		out[id] = acc.finish(id, weeks)
	}
	return out
}

func (acc *studyAccum) finish(studyID string, weeks []model.Week) *StudyActuals {
	sa := &StudyActuals{
		StudyID:      studyID,
		Weeks:        make([]model.WeeklyActual, len(weeks)),
		Contributors: len(acc.coordinators),
		Entries:      acc.entries,
	}
	var meeting, screening, query float64
	for i, wk := range acc.weeks {
		total := wk.meeting + wk.screening + wk.query
		sa.Weeks[i] = model.WeeklyActual{
			WeekStart:      weeks[i],
			MeetingHours:   wk.meeting,
			ScreeningHours: wk.screening,
			QueryHours:     wk.query,
			TotalHours:     total,
			NotesCount:     len(wk.notes),
			Contributors:   len(wk.coordinators),
		}
		if total <= 0 {
			continue
		}
		sa.ContributingWeeks++
		if weeks[i].After(sa.LastWeekStart) {
			sa.LastWeekStart = weeks[i]
		}
		meeting += wk.meeting
		screening += wk.screening
		query += wk.query
	}
	if sa.ContributingWeeks > 0 {
		n := float64(sa.ContributingWeeks)
		sa.AvgMeetingHours = meeting / n
		sa.AvgScreeningHours = screening / n
		sa.AvgQueryHours = query / n
	}
	if sa.Entries > 0 {
		sa.AvgScreeningStudyCount = float64(acc.screeningCounts) / float64(sa.Entries)
		sa.AvgQueryStudyCount = float64(acc.queryCounts) / float64(sa.Entries)
	}
	return sa
}

// attribute splits a log into per-study hours. Breakdown entries are taken
// as given. Any category the breakdown leaves at zero while the log's total
// for it is positive is apportioned by policy, as is the whole log when it
// has no breakdown.
func attribute(l model.CoordinatorWeeklyLog, assignments []model.Assignment, w model.Week, policy string) []attribution {
	out := make([]attribution, 0, len(l.Breakdown))
	index := make(map[string]int, len(l.Breakdown))
	var covered attribution
	for _, e := range l.Breakdown {
		if e.StudyID == "" {
			continue
		}
		if _, ok := index[e.StudyID]; !ok {
			index[e.StudyID] = len(out)
		}
		out = append(out, attribution{
			studyID:   e.StudyID,
			meeting:   e.MeetingHours,
			screening: e.ScreeningHours,
			query:     e.QueryHours,
			notes:     e.Notes,
		})
		covered.meeting += e.MeetingHours
		covered.screening += e.ScreeningHours
		covered.query += e.QueryHours
	}

	var rest attribution
	if covered.meeting <= 0 {
		rest.meeting = l.MeetingHours
	}
	if covered.screening <= 0 {
		rest.screening = l.ScreeningHours
	}
	if covered.query <= 0 {
		rest.query = l.QueryHours
	}
	if rest.total() <= 0 || policy != config.ApportionEvenSplit {
		return out
	}

	studies := activeStudies(assignments, w)
	if len(studies) == 0 {
		return out
	}
	n := float64(len(studies))
	for _, id := range studies {
		part := attribution{
			studyID:   id,
			meeting:   rest.meeting / n,
			screening: rest.screening / n,
			query:     rest.query / n,
			notes:     l.Notes,
		}
		if i, ok := index[id]; ok {
			out[i].meeting += part.meeting
			out[i].screening += part.screening
			out[i].query += part.query
			continue
		}
		out = append(out, part)
	}
	return out
}

// activeStudies lists the distinct studies a coordinator is assigned to in
// week w, in assignment order.
func activeStudies(assignments []model.Assignment, w model.Week) []string {
	var studies []string
	seen := make(map[string]bool)
	for _, a := range assignments {
		if a.StudyID == "" || seen[a.StudyID] || !a.ActiveDuring(w) {
			continue
		}
		seen[a.StudyID] = true
		studies = append(studies, a.StudyID)
	}
	return studies
}

// Observed is a study's logged effort expressed in configuration units.
type Observed struct {
	Screening     float64
	Query         float64
	MeetingPoints float64
	HasScreening  bool
	HasQuery      bool
	HasMeeting    bool
}

// Observe converts average hours into multiplier equivalents and meeting
// points. A nil or empty aggregate observes nothing.
func (p Params) Observe(sa *StudyActuals) Observed {
	var o Observed
	if sa == nil || sa.ContributingWeeks == 0 {
		return o
	}
	if sa.AvgScreeningHours > 0 && p.ReferenceScreeningHours > 0 {
		o.Screening = sa.AvgScreeningHours / p.ReferenceScreeningHours
		o.HasScreening = true
	}
	if sa.AvgQueryHours > 0 && p.ReferenceQueryHours > 0 {
		o.Query = sa.AvgQueryHours / p.ReferenceQueryHours
		o.HasQuery = true
	}
	if sa.AvgMeetingHours > 0 {
		o.MeetingPoints = sa.AvgMeetingHours * p.WeeksPerMonth * p.MeetingPointsPerHour
		o.HasMeeting = true
	}
	return o
}

// ActualsRaw returns the unweighted points implied by logged effort. A
// category without hours keeps its configured value; a study without any
// contributing week is zero.
func (p Params) ActualsRaw(prof model.StudyWorkloadProfile, sa *StudyActuals) float64 {
	if sa == nil || sa.ContributingWeeks == 0 {
		return 0
	}
	o := p.Observe(sa)
	screening, query, meeting := prof.ScreeningMultiplier, prof.QueryMultiplier, prof.MeetingAdminPoints
	if o.HasScreening {
		screening = o.Screening
	}
	if o.HasQuery {
		query = o.Query
	}
	if o.HasMeeting {
		meeting = o.MeetingPoints
	}
	return prof.ProtocolScore*screening*query + meeting
}

package service

import (
	"context"
	"sort"
	"sync"

	"github.com/sells-group/trial-workload/internal/apperr"
	"github.com/sells-group/trial-workload/internal/model"
	"github.com/sells-group/trial-workload/internal/store"
)

// mockStore implements store.Store in memory for testing.
type mockStore struct {
	mu           sync.Mutex
	studies      map[string]model.Study
	profiles     map[string]model.StudyWorkloadProfile
	visitTypes   map[string][]string
	coordinators map[string]bool
	logs         []model.CoordinatorWeeklyLog
	assignments  []model.Assignment
	undecodable  map[string]error

	// readErr, when set, fails every read.
	readErr    error
	readCalls  int
	savedCount int
	upserts    int
}

func newMockStore() *mockStore {
	return &mockStore{
		studies:      map[string]model.Study{},
		profiles:     map[string]model.StudyWorkloadProfile{},
		visitTypes:   map[string][]string{},
		coordinators: map[string]bool{},
	}
}

func (m *mockStore) read() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readCalls++
	return m.readErr
}

func (m *mockStore) setReadErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr = err
}

func (m *mockStore) GetStudy(_ context.Context, id string) (*model.Study, error) {
	if err := m.read(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.studies[id]
	if !ok {
		return nil, apperr.NotFound("mock: get study", "study", id)
	}
	return &st, nil
}

func (m *mockStore) ListStudies(_ context.Context) ([]model.Study, error) {
	if err := m.read(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Study, 0, len(m.studies))
	for _, st := range m.studies {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockStore) ListVisitTypes(_ context.Context, studyID string) ([]string, error) {
	if err := m.read(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.visitTypes[studyID], nil
}

func (m *mockStore) GetProfile(_ context.Context, studyID string) (*model.StudyWorkloadProfile, error) {
	if err := m.read(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[studyID]
	if !ok {
		return nil, apperr.NotFound("mock: get profile", "workload profile", studyID)
	}
	return &p, nil
}

func (m *mockStore) ListProfiles(_ context.Context) (store.ProfileList, error) {
	if err := m.read(); err != nil {
		return store.ProfileList{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.StudyWorkloadProfile, 0, len(m.profiles))
	for _, p := range m.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudyID < out[j].StudyID })
	return store.ProfileList{Profiles: out, Undecodable: m.undecodable}, nil
}

func (m *mockStore) SaveProfile(_ context.Context, p model.StudyWorkloadProfile) (*model.StudyWorkloadProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.studies[p.StudyID]
	if !ok {
		return nil, apperr.NotFound("mock: save profile", "study", p.StudyID)
	}
	st.Lifecycle = p.Lifecycle
	st.Recruitment = p.Recruitment
	m.studies[p.StudyID] = st
	m.profiles[p.StudyID] = p
	m.savedCount++
	return &p, nil
}

func (m *mockStore) CoordinatorExists(_ context.Context, id string) (bool, error) {
	if err := m.read(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.coordinators[id] {
		return true, nil
	}
	for _, a := range m.assignments {
		if a.CoordinatorID == id {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStore) UpsertWeeklyLog(_ context.Context, l model.CoordinatorWeeklyLog) (*model.CoordinatorWeeklyLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	for i, existing := range m.logs {
		if existing.CoordinatorID == l.CoordinatorID && existing.WeekStart.Equal(l.WeekStart.Time) {
			l.ID = existing.ID
			m.logs[i] = l
			return &l, nil
		}
	}
	l.ID = "log-" + l.CoordinatorID + "-" + l.WeekStart.String()
	m.logs = append(m.logs, l)
	return &l, nil
}

func (m *mockStore) ListWeeklyLogs(_ context.Context, f store.LogFilter) ([]model.CoordinatorWeeklyLog, error) {
	if err := m.read(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.CoordinatorWeeklyLog
	for _, l := range m.logs {
		if f.CoordinatorID != "" && l.CoordinatorID != f.CoordinatorID {
			continue
		}
		if !f.From.IsZero() && l.WeekStart.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && !l.WeekStart.Before(f.To) {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WeekStart.After(out[j].WeekStart) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *mockStore) ListAssignments(_ context.Context, f store.AssignmentFilter) ([]model.Assignment, error) {
	if err := m.read(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Assignment
	for _, a := range m.assignments {
		if f.CoordinatorID != "" && a.CoordinatorID != f.CoordinatorID {
			continue
		}
		if f.StudyID != "" && a.StudyID != f.StudyID {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (m *mockStore) Seed(_ context.Context, _ store.Fixtures) error { return nil }

func (m *mockStore) Migrate(_ context.Context) error { return nil }

func (m *mockStore) Ping(_ context.Context) error { return m.read() }

func (m *mockStore) Close() error { return nil }

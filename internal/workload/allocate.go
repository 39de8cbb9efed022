package workload

import (
	"sort"

	"github.com/sells-group/trial-workload/internal/model"
)

// StudyPoints are the weighted figures of one study used for allocation.
type StudyPoints struct {
	Forecast float64
	Actual   float64
}

// Allocation is the result of splitting study points across coordinators.
type Allocation struct {
	Coordinators []model.CoordinatorLoad
	// Unallocated lists studies no assignment references.
	Unallocated []string
}

// Allocate divides each study's points evenly across the assignments that
// reference it. Assignments to studies missing from points are skipped.
// Coordinators are ordered by load, highest first.
func Allocate(points map[string]StudyPoints, assignments []model.Assignment) Allocation {
	divisor := make(map[string]int)
	for _, a := range assignments {
		if _, ok := points[a.StudyID]; ok {
			divisor[a.StudyID]++
		}
	}

	loads := make(map[string]*model.CoordinatorLoad)
	var order []string
	for _, a := range assignments {
		pts, ok := points[a.StudyID]
		if !ok {
			continue
		}
		d := divisor[a.StudyID]
		cl, ok := loads[a.CoordinatorID]
		if !ok {
			cl = &model.CoordinatorLoad{CoordinatorID: a.CoordinatorID}
			loads[a.CoordinatorID] = cl
			order = append(order, a.CoordinatorID)
		}
		share := model.StudyShare{
			StudyID:       a.StudyID,
			AssignmentID:  a.ID,
			Divisor:       d,
			Share:         pts.Forecast / float64(d),
			BaselineShare: pts.Actual / float64(d),
		}
		cl.Studies = append(cl.Studies, share)
		cl.Load += share.Share
		cl.Baseline += share.BaselineShare
	}

	out := Allocation{Coordinators: make([]model.CoordinatorLoad, 0, len(order))}
	for _, id := range order {
		cl := loads[id]
		cl.TrendPct = TrendPct(cl.Load, cl.Baseline)
		cl.Band = BandFor(cl.Load)
		sort.SliceStable(cl.Studies, func(i, j int) bool {
			return cl.Studies[i].StudyID < cl.Studies[j].StudyID
		})
		out.Coordinators = append(out.Coordinators, *cl)
	}
	sort.SliceStable(out.Coordinators, func(i, j int) bool {
		if out.Coordinators[i].Load != out.Coordinators[j].Load {
			return out.Coordinators[i].Load > out.Coordinators[j].Load
		}
		return out.Coordinators[i].CoordinatorID < out.Coordinators[j].CoordinatorID
	})

	for id := range points {
		if divisor[id] == 0 {
			out.Unallocated = append(out.Unallocated, id)
		}
	}
	sort.Strings(out.Unallocated)
	return out
}

package model

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sells-group/trial-workload/internal/apperr"
)

// breakdownTolerance absorbs float rounding when comparing breakdown sums
// against the top-level totals.
const breakdownTolerance = 1e-6

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	})
	_ = v.RegisterValidation("lifecycle", func(fl validator.FieldLevel) bool {
		return Lifecycle(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("recruitment", func(fl validator.FieldLevel) bool {
		return Recruitment(fl.Field().String()).Valid()
	})
	return v
}

// ValidateProfile checks a complete profile before it is scored or saved.
func ValidateProfile(p StudyWorkloadProfile) error {
	return check("model: profile", p)
}

// ValidatePartialProfile checks a settings update before it is merged.
func ValidatePartialProfile(u PartialProfile) error {
	return check("model: settings update", u)
}

// ValidateWeeklyLog checks a weekly submission: non-negative figures, a
// normalized week that is not in the future, unique breakdown studies, and
// breakdown sums that stay within the top-level totals.
func ValidateWeeklyLog(l CoordinatorWeeklyLog, now time.Time) error {
	fields := map[string]string{}
	if err := validate.Struct(l); err != nil {
		collect(err, fields)
	}

	switch {
	case l.WeekStart.IsZero():
		fields["weekStart"] = "is required"
	case !l.WeekStart.Equal(WeekOf(l.WeekStart.Time).Time):
		fields["weekStart"] = "must be a Monday"
	case l.WeekStart.After(WeekOf(now)):
		fields["weekStart"] = "must not be in the future"
	}

	var meeting, screening, query float64
	seen := make(map[string]bool, len(l.Breakdown))
	for i, e := range l.Breakdown {
		if e.StudyID != "" && seen[e.StudyID] {
			fields[fmt.Sprintf("breakdown[%d].studyId", i)] = fmt.Sprintf("duplicate study %q", e.StudyID)
		}
		seen[e.StudyID] = true
		meeting += e.MeetingHours
		screening += e.ScreeningHours
		query += e.QueryHours
	}
	if meeting > l.MeetingHours+breakdownTolerance {
		fields["breakdown.meetingHours"] = fmt.Sprintf("sum %.2f exceeds total %.2f", meeting, l.MeetingHours)
	}
	if screening > l.ScreeningHours+breakdownTolerance {
		fields["breakdown.screeningHours"] = fmt.Sprintf("sum %.2f exceeds total %.2f", screening, l.ScreeningHours)
	}
	if query > l.QueryHours+breakdownTolerance {
		fields["breakdown.queryHours"] = fmt.Sprintf("sum %.2f exceeds total %.2f", query, l.QueryHours)
	}

	if len(fields) > 0 {
		return apperr.Validation("model: weekly log", fields)
	}
	return nil
}

func check(op string, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	fields := map[string]string{}
	collect(err, fields)
	if len(fields) == 0 {
		return apperr.Invalid(op, "input", err.Error())
	}
	return apperr.Validation(op, fields)
}

func collect(err error, fields map[string]string) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		fields["input"] = err.Error()
		return
	}
	for _, fe := range verrs {
		fields[fieldKey(fe)] = describe(fe)
	}
}

// fieldKey turns "StudyWorkloadProfile.visitWeights[x]" into "visitWeights[x]".
func fieldKey(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	return strings.ReplaceAll(ns, "EffortTotals.", "")
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return "must be >= " + fe.Param()
	case "finite":
		return "must be a finite number"
	case "lifecycle", "recruitment":
		return fmt.Sprintf("unknown value %q", fmt.Sprint(fe.Value()))
	default:
		return fmt.Sprintf("failed %s check", fe.Tag())
	}
}

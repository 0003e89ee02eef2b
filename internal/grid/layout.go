package grid

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/nadmax/failscope/internal/task"
	"github.com/samber/lo"
)

// SortRows returns a copy of rows ordered by the declared column sorts. Columns with a
// higher sort priority are compared first; ties keep their input order.
func SortRows(rows []task.Record, cols []Column) []task.Record {
	keys := lo.Filter(cols, func(c Column, _ int) bool { return c.Sort != nil })
	slices.SortStableFunc(keys, func(a, b Column) int {
		return cmp.Compare(b.Sort.Priority, a.Sort.Priority)
	})

	sorted := slices.Clone(rows)
	slices.SortStableFunc(sorted, func(a, b task.Record) int {
		for _, c := range keys {
			d := compareField(a, b, c.Field)
			if d == 0 {
				continue
			}
			if c.Sort.Direction == Descending {
				return -d
			}
			return d
		}
		return 0
	})
	return sorted
}

func compareField(a, b task.Record, field string) int {
	switch field {
	case FieldCreateTime:
		return a.CreateTime.Compare(b.CreateTime)
	case FieldTimedOut:
		return cmp.Compare(boolRank(a.StatusDetails.TimedOut), boolRank(b.StatusDetails.TimedOut))
	default:
		return strings.Compare(Value(a, field), Value(b, field))
	}
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

type TaskGroup struct {
	DisplayName   string
	MaxCreateTime time.Time
	Rows          []task.Record
}

type VariantGroup struct {
	BuildVariant  string
	MaxCreateTime time.Time
	Tasks         []TaskGroup
}

// Group nests rows by build variant (outer level) then task name. Each group
// carries the latest create time among its members.
func Group(rows []task.Record) []VariantGroup {
	byVariant := lo.GroupBy(rows, func(r task.Record) string { return r.BuildVariant })

	variants := lo.Keys(byVariant)
	slices.Sort(variants)

	groups := make([]VariantGroup, 0, len(variants))
	for _, variant := range variants {
		byTask := lo.GroupBy(byVariant[variant], func(r task.Record) string { return r.DisplayName })
		names := lo.Keys(byTask)
		slices.Sort(names)

		vg := VariantGroup{BuildVariant: variant}
		for _, name := range names {
			members := slices.Clone(byTask[name])
			slices.SortStableFunc(members, func(a, b task.Record) int {
				return b.CreateTime.Compare(a.CreateTime)
			})
			tg := TaskGroup{DisplayName: name, MaxCreateTime: maxCreateTime(members), Rows: members}
			if tg.MaxCreateTime.After(vg.MaxCreateTime) {
				vg.MaxCreateTime = tg.MaxCreateTime
			}
			vg.Tasks = append(vg.Tasks, tg)
		}
		groups = append(groups, vg)
	}
	return groups
}

func maxCreateTime(rows []task.Record) time.Time {
	var latest time.Time
	for _, r := range rows {
		if r.CreateTime.After(latest) {
			latest = r.CreateTime
		}
	}
	return latest
}

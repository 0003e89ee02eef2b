// Package grid describes how failure rows are laid out for a grid renderer:
// column definitions with sort, grouping and link conventions.
package grid

import (
	"strconv"
	"strings"
	"time"

	"github.com/nadmax/failscope/internal/task"
)

type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

type Aggregation string

const AggregateMax Aggregation = "max"

const (
	FieldTaskID       = "task_id"
	FieldBuildID      = "build_id"
	FieldCreateTime   = "create_time"
	FieldDisplayName  = "display_name"
	FieldBuildVariant = "build_variant"
	FieldDetailsType  = "status_details.type"
	FieldTimedOut     = "status_details.timed_out"
	FieldStatus       = "status"
)

// TimeLayout is how create_time cells and their group aggregates are rendered.
const TimeLayout = time.RFC3339

type Sort struct {
	Direction Direction `json:"direction"`
	Priority  int       `json:"priority"`
}

type Grouping struct {
	Priority int `json:"group_priority"`
}

type Column struct {
	Name         string
	Field        string
	Sort         *Sort
	Grouping     *Grouping
	LinkTemplate string
	Aggregation  Aggregation
	CellClass    func(task.Record) string
	CellFormat   func(task.Record) string
	Width        int
	Hidden       bool
}

var columns = []Column{
	{
		Name:        "Create Time",
		Field:       FieldCreateTime,
		Sort:        &Sort{Direction: Descending, Priority: 2},
		Aggregation: AggregateMax,
	},
	{
		Name:         "Task",
		Field:        FieldDisplayName,
		Sort:         &Sort{Direction: Ascending, Priority: 1},
		Grouping:     &Grouping{Priority: 1},
		LinkTemplate: "/task/{task_id}",
	},
	{
		Name:         "Variant",
		Field:        FieldBuildVariant,
		Sort:         &Sort{Direction: Ascending, Priority: 0},
		Grouping:     &Grouping{Priority: 0},
		LinkTemplate: "/build/{build_id}",
	},
	{
		Name:       "Kind",
		Field:      FieldDetailsType,
		CellClass:  task.StatusClass,
		CellFormat: task.StatusLabel,
		Width:      160,
	},
	{
		Name:  "Fail Type",
		Field: FieldDetailsType,
	},
	{
		Name:  "Timed Out",
		Field: FieldTimedOut,
	},
	{
		Name:   "Status",
		Field:  FieldStatus,
		Hidden: true,
	},
}

// Columns returns the failure grid columns. The slice is a fresh copy.
func Columns() []Column {
	out := make([]Column, len(columns))
	copy(out, columns)
	return out
}

func Value(r task.Record, field string) string {
	switch field {
	case FieldTaskID:
		return r.TaskID
	case FieldBuildID:
		return r.BuildID
	case FieldCreateTime:
		return FormatTime(r.CreateTime)
	case FieldDisplayName:
		return r.DisplayName
	case FieldBuildVariant:
		return r.BuildVariant
	case FieldDetailsType:
		return r.StatusDetails.Type
	case FieldTimedOut:
		return strconv.FormatBool(r.StatusDetails.TimedOut)
	case FieldStatus:
		return string(r.Status)
	default:
		return ""
	}
}

func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(TimeLayout)
}

func (c Column) Value(r task.Record) string {
	return Value(r, c.Field)
}

// Text is the cell content: the formatted value when the column has a formatter,
// the raw field value otherwise.
func (c Column) Text(r task.Record) string {
	if c.CellFormat != nil {
		return c.CellFormat(r)
	}
	return c.Value(r)
}

func (c Column) Class(r task.Record) string {
	if c.CellClass == nil {
		return ""
	}
	return c.CellClass(r)
}

func (c Column) Link(r task.Record) string {
	if c.LinkTemplate == "" {
		return ""
	}
	return expand(c.LinkTemplate, r)
}

func expand(tmpl string, r task.Record) string {
	var b strings.Builder
	for {
		start := strings.IndexByte(tmpl, '{')
		if start < 0 {
			b.WriteString(tmpl)
			return b.String()
		}
		end := strings.IndexByte(tmpl[start:], '}')
		if end < 0 {
			b.WriteString(tmpl)
			return b.String()
		}
		b.WriteString(tmpl[:start])
		b.WriteString(Value(r, tmpl[start+1:start+end]))
		tmpl = tmpl[start+end+1:]
	}
}

func TaskLink(r task.Record) string {
	return expand("/task/{task_id}", r)
}

func BuildLink(r task.Record) string {
	return expand("/build/{build_id}", r)
}

// Definition is the serialisable form of a Column handed to a browser grid.
type Definition struct {
	Name        string      `json:"name"`
	Field       string      `json:"field"`
	Sort        *Sort       `json:"sort,omitempty"`
	Grouping    *Grouping   `json:"grouping,omitempty"`
	Link        string      `json:"link,omitempty"`
	Aggregation Aggregation `json:"aggregation,omitempty"`
	Formatted   bool        `json:"formatted,omitempty"`
	Width       int         `json:"width,omitempty"`
	Visible     bool        `json:"visible"`
}

func Definitions(cols []Column) []Definition {
	defs := make([]Definition, 0, len(cols))
	for _, c := range cols {
		defs = append(defs, Definition{
			Name:        c.Name,
			Field:       c.Field,
			Sort:        c.Sort,
			Grouping:    c.Grouping,
			Link:        c.LinkTemplate,
			Aggregation: c.Aggregation,
			Formatted:   c.CellFormat != nil || c.CellClass != nil,
			Width:       c.Width,
			Visible:     !c.Hidden,
		})
	}
	return defs
}

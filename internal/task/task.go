// Package task defines the task record model returned by the task query service
// and the status formatting helpers used when rendering those records.
package task

import (
	"encoding/json"
	"time"
)

type (
	TaskStatus    string
	StatusDetails struct {
		Type        string `json:"type,omitempty"`
		TimedOut    bool   `json:"timed_out"`
		Description string `json:"desc,omitempty"`
	}
	Record struct {
		TaskID        string        `json:"task_id"`
		ProjectID     string        `json:"project_id,omitempty"`
		BuildID       string        `json:"build_id"`
		BuildVariant  string        `json:"build_variant"`
		DisplayName   string        `json:"display_name"`
		CreateTime    time.Time     `json:"create_time"`
		Status        TaskStatus    `json:"status"`
		StatusDetails StatusDetails `json:"status_details"`
	}
)

const (
	StatusUndispatched TaskStatus = "undispatched"
	StatusInactive     TaskStatus = "inactive"
	StatusDispatched   TaskStatus = "dispatched"
	StatusStarted      TaskStatus = "started"
	StatusSucceeded    TaskStatus = "success"
	StatusFailed       TaskStatus = "failed"
)

// Values of StatusDetails.Type.
const (
	DetailsTest   = "test"
	DetailsSetup  = "setup"
	DetailsSystem = "system"
)

// Heartbeat is the StatusDetails.Description of a task whose agent stopped responding.
const Heartbeat = "heartbeat"

func (s TaskStatus) String() string {
	return string(s)
}

func (r *Record) ToJSON() (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", err
	}

	return string(data), nil
}

func RecordFromJSON(data string) (*Record, error) {
	var r Record
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return nil, err
	}

	return &r, nil
}

// DecodeRecord decodes one record leniently. Fields whose values do not decode are
// left at their zero value and their names returned in dropped. An error is returned
// only when data is not a JSON object.
func DecodeRecord(data []byte) (r Record, dropped []string, err error) {
	if err := json.Unmarshal(data, &r); err == nil {
		return r, nil, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Record{}, nil, err
	}

	r = Record{}
	targets := []struct {
		name string
		dst  any
	}{
		{"task_id", &r.TaskID},
		{"project_id", &r.ProjectID},
		{"build_id", &r.BuildID},
		{"build_variant", &r.BuildVariant},
		{"display_name", &r.DisplayName},
		{"create_time", &r.CreateTime},
		{"status", &r.Status},
		{"status_details", &r.StatusDetails},
	}
	for _, t := range targets {
		raw, ok := fields[t.name]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, t.dst); err != nil {
			dropped = append(dropped, t.name)
		}
	}
	return r, dropped, nil
}

package task

// StatusClass returns the CSS class a grid cell uses to color a record by how it ended.
func StatusClass(r Record) string {
	switch r.Status {
	case StatusSucceeded:
		return "success"
	case StatusFailed:
		return failureClass(r.StatusDetails)
	case StatusStarted, StatusDispatched:
		return string(r.Status)
	case StatusInactive:
		return "inactive"
	case StatusUndispatched:
		return "unscheduled"
	default:
		return ""
	}
}

func failureClass(d StatusDetails) string {
	switch {
	case d.Type == DetailsSystem && d.TimedOut && d.Description == Heartbeat:
		return "system-unresponsive"
	case d.Type == DetailsSystem && d.TimedOut:
		return "system-timed-out"
	case d.Type == DetailsSystem:
		return "system-failed"
	case d.Type == DetailsSetup:
		return "setup-failed"
	case d.TimedOut:
		return "test-timed-out"
	default:
		return "failed"
	}
}

var classLabels = map[string]string{
	"success":             "Succeeded",
	"failed":              "Failed",
	"system-failed":       "System Failed",
	"system-timed-out":    "System Timed Out",
	"system-unresponsive": "System Unresponsive",
	"setup-failed":        "Setup Failed",
	"test-timed-out":      "Timed Out",
	"started":             "Running",
	"dispatched":          "Dispatched",
	"inactive":            "Inactive",
	"unscheduled":         "Unscheduled",
}

// StatusLabel returns the human readable label matching StatusClass.
func StatusLabel(r Record) string {
	if label, ok := classLabels[StatusClass(r)]; ok {
		return label
	}

	return string(r.Status)
}

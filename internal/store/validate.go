package store

import (
	"math"
	"strings"
	"unicode/utf8"
)

const (
	maxNameLen        = 200
	maxDescriptionLen = 2000
	maxTagLen         = 40
)

func checkName(field, v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", invalid(field, "is required")
	}
	if utf8.RuneCountInString(v) > maxNameLen {
		return "", invalid(field, "must be at most %d characters", maxNameLen)
	}
	return v, nil
}

// checkOptional trims v and turns empty strings into nil.
func checkOptional(field string, v *string, max int) (*string, error) {
	if v == nil {
		return nil, nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(t) > max {
		return nil, invalid(field, "must be at most %d characters", max)
	}
	return &t, nil
}

func checkRate(v *float64) error {
	if v == nil {
		return nil
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) || *v < 0 {
		return invalid("hourlyRate", "must be a non-negative number")
	}
	return nil
}

func checkTags(tags []string) ([]string, error) {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			return nil, invalid("tags", "must not contain empty tags")
		}
		if utf8.RuneCountInString(tag) > maxTagLen {
			return nil, invalid("tags", "tag %q is longer than %d characters", tag, maxTagLen)
		}
		if strings.Contains(tag, ",") {
			return nil, invalid("tags", "tag %q must not contain a comma", tag)
		}
		if seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out, nil
}

func checkEstimate(v *int) error {
	if v != nil && *v <= 0 {
		return invalid("estimateMinutes", "must be a positive integer")
	}
	return nil
}

func checkProjectStatus(st ProjectStatus) error {
	switch st {
	case ProjectActive, ProjectArchived, ProjectCompleted:
		return nil
	}
	return invalid("status", "unknown project status %q", st)
}

func checkTaskStatus(st TaskStatus) error {
	switch st {
	case TaskTodo, TaskInProgress, TaskDone:
		return nil
	}
	return invalid("status", "unknown task status %q", st)
}

func checkPriority(p TaskPriority) error {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return nil
	}
	return invalid("priority", "unknown priority %q", p)
}

func joinTags(tags []string) string {
	return strings.Join(tags, ",")
}

func splitTags(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}

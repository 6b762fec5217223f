package meeting

import (
	"regexp"
	"strings"
)

// ValidationError captures field level validation issues that callers can
// surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

var (
	datePattern  = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)
	clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
)

// Validate checks a meeting draft before it is accepted: required fields,
// date and time shapes, and a positive time range. Conflict detection is a
// separate step.
func Validate(m Meeting) error {
	vErr := &ValidationError{}

	if strings.TrimSpace(m.Room) == "" {
		vErr.add("room", "room is required")
	}

	switch {
	case strings.TrimSpace(m.Date) == "":
		vErr.add("date", "date is required")
	case !datePattern.MatchString(strings.TrimSpace(m.Date)):
		vErr.add("date", "date must be DD/MM/YYYY")
	default:
		if _, err := ParseDate(m.Date); err != nil {
			vErr.add("date", "date must be DD/MM/YYYY")
		}
	}

	validateClockField(vErr, "startTime", m.StartTime)
	validateClockField(vErr, "endTime", m.EndTime)

	if !vErr.HasErrors() {
		start, _ := ParseClock(m.StartTime)
		end, _ := ParseClock(m.EndTime)
		if end <= start {
			vErr.add("time", "end time must be after start time")
		}
	}

	if vErr.HasErrors() {
		return vErr
	}
	return nil
}

func validateClockField(vErr *ValidationError, field, value string) {
	switch {
	case strings.TrimSpace(value) == "":
		vErr.add(field, field+" is required")
	case !clockPattern.MatchString(strings.TrimSpace(value)):
		vErr.add(field, field+" must be HH:MM")
	}
}

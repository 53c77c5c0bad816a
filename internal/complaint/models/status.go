package models

import (
	"strings"

	dErrors "grievance/pkg/domain-errors"
)

// Status is the lifecycle position of a complaint.
type Status string

const (
	StatusNew        Status = "new"
	StatusInProgress Status = "in_progress"
	StatusFinished   Status = "finished"
	StatusDeclined   Status = "declined"
)

// IsValid reports whether s is one of the four lifecycle statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusFinished, StatusDeclined:
		return true
	}
	return false
}

func (s Status) String() string {
	return string(s)
}

// ParseStatus constructs a Status from external input. Case and surrounding
// whitespace are ignored.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "status must be one of new, in_progress, finished, declined")
	}
	return s, nil
}

var transitions = map[Status][]Status{
	StatusNew:        {StatusInProgress, StatusDeclined},
	StatusInProgress: {StatusFinished, StatusDeclined},
	StatusFinished:   {StatusInProgress},
	StatusDeclined:   {StatusNew, StatusInProgress},
}

// AllowedTransitions lists the statuses reachable from s. Unknown statuses reach nothing.
func AllowedTransitions(s Status) []Status {
	out := make([]Status, len(transitions[s]))
	copy(out, transitions[s])
	return out
}

// CanTransitionTo reports whether the lifecycle graph has an edge from s to to.
// It says nothing about who may make the move; see Complaint.CanChangeStatus.
func (s Status) CanTransitionTo(to Status) bool {
	for _, t := range transitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

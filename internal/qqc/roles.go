package qqc

import (
	"fmt"
	"strings"
)

// Role is the conversational function of a speaker.
type Role int

const (
	RoleInterviewer Role = iota + 1
	RoleSubject
)

// Roles lists every role in assignment order.
var Roles = []Role{RoleInterviewer, RoleSubject}

func (r Role) String() string {
	switch r {
	case RoleInterviewer:
		return "INTERVIEWER"
	case RoleSubject:
		return "SUBJECT"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

func (r Role) valid() bool {
	return r == RoleInterviewer || r == RoleSubject
}

// MarshalText encodes the role by name.
func (r Role) MarshalText() ([]byte, error) {
	if !r.valid() {
		return nil, &InvalidRoleError{Role: r}
	}
	return []byte(r.String()), nil
}

// UnmarshalText accepts the role name in any case.
func (r *Role) UnmarshalText(text []byte) error {
	switch strings.ToUpper(string(text)) {
	case "INTERVIEWER":
		*r = RoleInterviewer
	case "SUBJECT":
		*r = RoleSubject
	default:
		return fmt.Errorf("unknown role %q", string(text))
	}
	return nil
}

// InvalidRoleError is returned when a confidence is requested for a value
// outside the known roles.
type InvalidRoleError struct {
	Role Role
}

func (e *InvalidRoleError) Error() string {
	return fmt.Sprintf("invalid role: %s", e.Role)
}

// Confidence weights. Each row sums to 1.
const (
	weightQuestions      = 0.5
	weightSelfReferences = 0.4
	weightTurnDuration   = 0.05
	weightTurns          = 0.05
)

// Totals are the per-transcript sums of every speaker's metrics.
type Totals struct {
	Questions      int
	SelfReferences int
	Turns          int
	TurnDuration   float64
}

// ComputeTotals sums metrics across all speakers.
func ComputeTotals(metrics []SpeakerMetrics) Totals {
	var t Totals
	for _, m := range metrics {
		t.Questions += m.NumQuestions
		t.SelfReferences += m.NumSelfReferences
		t.Turns += m.NumTurns
		t.TurnDuration += m.SumTurnDuration
	}
	return t
}

// ratios is one speaker's share of each total.
type ratios struct {
	questions      float64
	selfReferences float64
	turns          float64
	turnDuration   float64
}

func speakerRatios(m SpeakerMetrics, t Totals) ratios {
	return ratios{
		questions:      ratio(float64(m.NumQuestions), float64(t.Questions)),
		selfReferences: ratio(float64(m.NumSelfReferences), float64(t.SelfReferences)),
		turns:          ratio(float64(m.NumTurns), float64(t.Turns)),
		turnDuration:   ratio(m.SumTurnDuration, t.TurnDuration),
	}
}

// ratio returns 0 for a zero total.
func ratio(part, total float64) float64 {
	if total == 0 {
		return 0
	}
	return part / total
}

func (r ratios) confidence(role Role) (float64, error) {
	switch role {
	case RoleInterviewer:
		return weightQuestions*r.questions +
			weightSelfReferences*(1-r.selfReferences) +
			weightTurnDuration*(1-r.turnDuration) +
			weightTurns*(1-r.turns), nil
	case RoleSubject:
		return weightQuestions*(1-r.questions) +
			weightSelfReferences*r.selfReferences +
			weightTurnDuration*r.turnDuration +
			weightTurns*r.turns, nil
	default:
		return 0, &InvalidRoleError{Role: role}
	}
}

// Confidence scores how well each speaker matches role, keyed by speaker.
//
// Interviewers ask more questions and refer to themselves less; subjects
// talk longer, take more turns and say "I" more.
func Confidence(metrics []SpeakerMetrics, role Role) (map[string]float64, error) {
	if !role.valid() {
		return nil, &InvalidRoleError{Role: role}
	}
	totals := ComputeTotals(metrics)

	confidences := make(map[string]float64, len(metrics))
	for _, m := range metrics {
		c, err := speakerRatios(m, totals).confidence(role)
		if err != nil {
			return nil, err
		}
		confidences[m.Speaker] = c
	}
	return confidences, nil
}

// AssignRoles records both role confidences on every speaker and gives
// each role to its highest-scoring speaker. Ties go to the
// lexicographically smallest speaker. Roles are assigned in Roles order,
// so a speaker that wins both ends up as the later role.
func AssignRoles(metrics []SpeakerMetrics) error {
	for _, role := range Roles {
		confidences, err := Confidence(metrics, role)
		if err != nil {
			return err
		}

		best := -1
		for i := range metrics {
			c := confidences[metrics[i].Speaker]
			switch role {
			case RoleInterviewer:
				metrics[i].InterviewerConfidence = c
			case RoleSubject:
				metrics[i].SubjectConfidence = c
			}

			if best < 0 {
				best = i
				continue
			}
			bc := confidences[metrics[best].Speaker]
			if c > bc || (c == bc && metrics[i].Speaker < metrics[best].Speaker) {
				best = i
			}
		}

		if best >= 0 {
			r := role
			metrics[best].Role = &r
		}
	}
	return nil
}

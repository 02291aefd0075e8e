package room

import (
	"fmt"
	"strings"
)

// DuplicatePolicy decides what createGame does with an id that is already live.
type DuplicatePolicy string

const (
	DuplicateReject  DuplicatePolicy = "reject"
	DuplicateReplace DuplicatePolicy = "replace"
	DuplicateJoin    DuplicatePolicy = "join"
	DuplicateSuffix  DuplicatePolicy = "suffix"
)

// ResetPolicy decides from which states resetGame is accepted.
type ResetPolicy string

const (
	ResetOverOnly ResetPolicy = "over"
	ResetAny      ResetPolicy = "any"
)

// VacancyPolicy decides what happens to a started session when one player leaves.
type VacancyPolicy string

const (
	VacancyPause VacancyPolicy = "pause"
	VacancyKeep  VacancyPolicy = "keep"
)

// Policy bundles the configurable lifecycle decisions.
type Policy struct {
	Duplicate DuplicatePolicy
	Reset     ResetPolicy
	Vacancy   VacancyPolicy
}

func DefaultPolicy() Policy {
	return Policy{Duplicate: DuplicateReject, Reset: ResetOverOnly, Vacancy: VacancyPause}
}

// ParsePolicy validates textual policy names; empty values keep the defaults.
func ParsePolicy(duplicate, reset, vacancy string) (Policy, error) {
	p := DefaultPolicy()
	switch v := DuplicatePolicy(norm(duplicate)); v {
	case "":
	case DuplicateReject, DuplicateReplace, DuplicateJoin, DuplicateSuffix:
		p.Duplicate = v
	default:
		return p, fmt.Errorf("unknown duplicate game policy %q", duplicate)
	}
	switch v := ResetPolicy(norm(reset)); v {
	case "":
	case ResetOverOnly, ResetAny:
		p.Reset = v
	default:
		return p, fmt.Errorf("unknown reset policy %q", reset)
	}
	switch v := VacancyPolicy(norm(vacancy)); v {
	case "":
	case VacancyPause, VacancyKeep:
		p.Vacancy = v
	default:
		return p, fmt.Errorf("unknown vacancy policy %q", vacancy)
	}
	return p, nil
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

package models

import (
	"encoding/json"
	"slices"
	"time"

	dErrors "clearinghouse/pkg/domain-errors"
	"clearinghouse/pkg/platform/strings"
)

// Process groups the documents logged under one pid and names the connectors
// allowed to log and query them.
//
// Invariants:
//   - Pid is non-empty, immutable and compared byte-exact
//   - Owners is never empty and holds no duplicates
//   - Owners only grow; existing owners keep their position
type Process struct {
	Pid       string    `json:"pid"`
	Owners    []string  `json:"owners"`
	CreatedAt time.Time `json:"created_at"`
}

// NewProcess validates and builds a Process. Duplicate and empty owners are
// dropped; order of first occurrence is kept.
func NewProcess(pid string, owners []string, now time.Time) (*Process, error) {
	if pid == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "pid must not be empty")
	}
	owners = strings.Dedupe(owners)
	if len(owners) == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "process needs at least one owner")
	}
	return &Process{Pid: pid, Owners: owners, CreatedAt: now}, nil
}

// IsOwner reports whether subject is one of the owners.
func (p *Process) IsOwner(subject string) bool {
	return subject != "" && slices.Contains(p.Owners, subject)
}

// Clone returns a deep copy.
func (p *Process) Clone() *Process {
	cp := *p
	cp.Owners = slices.Clone(p.Owners)
	return &cp
}

// OwnerList is the payload of a create_process request naming additional
// owners.
type OwnerList struct {
	Owners []string `json:"owners"`
}

// ParseOwnerList decodes an OwnerList payload.
func ParseOwnerList(payload string) (OwnerList, error) {
	var list OwnerList
	if err := json.Unmarshal([]byte(payload), &list); err != nil {
		return OwnerList{}, dErrors.Wrap(err, dErrors.CodeValidation, "payload is not an owner list")
	}
	return list, nil
}

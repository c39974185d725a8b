// pkg/core/behavior.go
package core

import (
	"fmt"
	"strings"
)

// BehaviorState is the occupant's panic state. The numeric values are part of the
// decision observation (state/2), keep them stable.
type BehaviorState uint8

const (
	Calm BehaviorState = iota
	Anxious
	Panicked
)

func (s BehaviorState) String() string {
	switch s {
	case Calm:
		return "calm"
	case Anxious:
		return "anxious"
	case Panicked:
		return "panicked"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// ParseBehaviorState accepts the lower case state names.
func ParseBehaviorState(s string) (BehaviorState, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "calm":
		return Calm, nil
	case "anxious":
		return Anxious, nil
	case "panicked", "panic":
		return Panicked, nil
	}
	return Calm, fmt.Errorf("unknown behavior state %q", s)
}

// Role is the occupant's position in the social graph.
type Role uint8

const (
	RoleLeader Role = iota
	RoleFollower
)

func (r Role) String() string {
	if r == RoleFollower {
		return "follower"
	}
	return "leader"
}

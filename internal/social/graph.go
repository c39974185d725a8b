// Package social keeps the leader/follower bindings between occupants and rescue agents.
package social

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/OCAP2/evacsim/pkg/core"
)

// Graph is a directed follower -> leader graph. A follower has at most one leader and a leader
// keeps its followers in binding order. Reads may run concurrently; writes are expected to come
// from the simulation step only.
type Graph struct {
	mu        sync.RWMutex
	leaderOf  map[core.EntityID]core.EntityID
	followers map[core.EntityID][]core.EntityID
	logger    *slog.Logger
}

// New creates an empty graph. A nil logger uses slog.Default.
func New(logger *slog.Logger) *Graph {
	if logger == nil {
		logger = slog.Default()
	}
	return &Graph{
		leaderOf:  make(map[core.EntityID]core.EntityID),
		followers: make(map[core.EntityID][]core.EntityID),
		logger:    logger,
	}
}

// Bind makes follower follow leader, detaching it from any previous leader first.
// Binding an entity to itself or to the zero ID is logged and ignored.
func (g *Graph) Bind(follower, leader core.EntityID) bool {
	if follower == core.NoEntity || leader == core.NoEntity || follower == leader {
		g.logger.Warn("ignoring invalid binding", "follower", follower, "leader", leader)
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if cur, ok := g.leaderOf[follower]; ok {
		if cur == leader {
			return true
		}
		g.detach(follower, cur)
	}
	g.leaderOf[follower] = leader
	g.followers[leader] = append(g.followers[leader], follower)
	return true
}

// Unbind detaches follower from its leader. It returns the previous leader, if any.
func (g *Graph) Unbind(follower core.EntityID) (core.EntityID, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	cur, ok := g.leaderOf[follower]
	if !ok {
		return core.NoEntity, false
	}
	g.detach(follower, cur)
	return cur, true
}

// UnbindAll removes every edge touching id in both directions and returns the followers it
// released.
func (g *Graph) UnbindAll(id core.EntityID) []core.EntityID {
	g.mu.Lock()
	defer g.mu.Unlock()

	if cur, ok := g.leaderOf[id]; ok {
		g.detach(id, cur)
	}
	released := g.followers[id]
	for _, f := range released {
		delete(g.leaderOf, f)
	}
	delete(g.followers, id)
	return released
}

// detach expects g.mu to be held.
func (g *Graph) detach(follower, leader core.EntityID) {
	delete(g.leaderOf, follower)
	list := g.followers[leader]
	i := slices.Index(list, follower)
	if i < 0 {
		g.logger.Error("binding missing from leader side", "follower", follower, "leader", leader)
		return
	}
	list = slices.Delete(list, i, i+1)
	if len(list) == 0 {
		delete(g.followers, leader)
		return
	}
	g.followers[leader] = list
}

// Leader returns the leader of follower.
func (g *Graph) Leader(follower core.EntityID) (core.EntityID, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	l, ok := g.leaderOf[follower]
	return l, ok
}

// Followers returns a copy of leader's followers in binding order.
func (g *Graph) Followers(leader core.EntityID) []core.EntityID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Clone(g.followers[leader])
}

// FollowerCount returns the number of followers bound to leader.
func (g *Graph) FollowerCount(leader core.EntityID) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.followers[leader])
}

// LeadsTo reports whether following leaders upwards from id reaches target. It is used to
// keep herds from forming cycles.
func (g *Graph) LeadsTo(id, target core.EntityID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	seen := make(map[core.EntityID]bool)
	for cur := id; ; {
		if cur == target {
			return true
		}
		if seen[cur] {
			return false
		}
		seen[cur] = true
		next, ok := g.leaderOf[cur]
		if !ok {
			return false
		}
		cur = next
	}
}

// Len returns the number of bindings.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.leaderOf)
}

// Prune removes every binding whose follower or leader is no longer active. Edges are
// collected first and removed after the scan.
func (g *Graph) Prune(isActive func(core.EntityID) bool) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	type edge struct{ follower, leader core.EntityID }
	var stale []edge
	for f, l := range g.leaderOf {
		if !isActive(f) || !isActive(l) {
			stale = append(stale, edge{f, l})
		}
	}
	for _, e := range stale {
		g.detach(e.follower, e.leader)
	}
	return len(stale)
}

// Reset drops every binding.
func (g *Graph) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	clear(g.leaderOf)
	clear(g.followers)
}

// Check verifies that both sides of every binding agree.
func (g *Graph) Check() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	count := 0
	for l, list := range g.followers {
		seen := make(map[core.EntityID]bool, len(list))
		for _, f := range list {
			if seen[f] {
				return fmt.Errorf("follower %d listed twice under leader %d", f, l)
			}
			seen[f] = true
			if g.leaderOf[f] != l {
				return fmt.Errorf("follower %d listed under %d but bound to %d", f, l, g.leaderOf[f])
			}
			count++
		}
	}
	if count != len(g.leaderOf) {
		return fmt.Errorf("%d follower entries for %d bindings", count, len(g.leaderOf))
	}
	return nil
}

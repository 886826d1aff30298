package bank

import "time"

// gatherState tracks which (agent_id, tag) pairs of the required cross
// product have been observed. It is call-scoped; every Gather call
// re-derives it from the backlog. Mutated only with the bank lock held.
type gatherState struct {
	agentIDs []string
	tags     []string
	required int
	seen     map[GatherPair]struct{}
}

func newGatherState(agentIDs, tags []string) *gatherState {
	ua := dedupe(agentIDs)
	ut := dedupe(tags)
	return &gatherState{
		agentIDs: ua,
		tags:     ut,
		required: len(ua) * len(ut),
		seen:     map[GatherPair]struct{}{},
	}
}

func (g *gatherState) observe(m *Message) {
	if !contains(g.agentIDs, m.AgentID) {
		return
	}
	for _, t := range g.tags {
		if contains(m.Tags, t) {
			g.seen[GatherPair{m.AgentID, t}] = struct{}{}
		}
	}
}

func (g *gatherState) complete() bool {
	return len(g.seen) == g.required
}

// pairs lists the satisfied requirements in required-set order: agents
// in caller order, tags in caller order within each agent.
func (g *gatherState) pairs() []GatherPair {
	out := []GatherPair{}
	for _, a := range g.agentIDs {
		for _, t := range g.tags {
			if _, ok := g.seen[GatherPair{a, t}]; ok {
				out = append(out, GatherPair{a, t})
			}
		}
	}
	return out
}

func dedupe(values []string) []string {
	out := make([]string, 0, len(values))
	seen := map[string]struct{}{}
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Gather waits until every (agent_id, tag) pair in agent_ids x tags has
// been observed, counting the current backlog first and then incoming
// appends, or until timeout. It never removes messages; the returned
// Messages are a read-only snapshot of everything matching the overall
// filter at resolution time. On timeout the pairs seen so far are
// returned with Partial set.
func (b *Bank) Gather(agentIDs, tags []string, timeout time.Duration) (GatherResult, error) {
	if len(agentIDs) == 0 {
		return GatherResult{}, newError(CodeValidation, "agent_ids is required")
	}
	if len(tags) == 0 {
		return GatherResult{}, newError(CodeValidation, "tags is required")
	}
	timeout = b.clampTimeout(timeout, b.cfg.DefaultGatherTimeout)

	g := newGatherState(agentIDs, tags)
	f := Filter{AgentIDs: g.agentIDs, Tags: g.tags}

	b.mu.Lock()
	for _, m := range b.messages {
		g.observe(m)
	}
	if g.complete() {
		res := GatherResult{Completed: g.pairs(), Messages: b.peekLocked(f)}
		b.mu.Unlock()
		return res, nil
	}
	ch := make(chan GatherResult, 1)
	w := b.addWaiterLocked(func(m *Message) bool {
		g.observe(m)
		if !g.complete() {
			return false
		}
		ch <- GatherResult{Completed: g.pairs(), Messages: b.peekLocked(f)}
		return true
	})
	b.mu.Unlock()

	return awaitWaiter(b, w, ch, timeout, func() GatherResult {
		return GatherResult{Completed: g.pairs(), Partial: true, Messages: b.peekLocked(f)}
	}), nil
}

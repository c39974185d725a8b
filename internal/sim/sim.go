// Package sim drives the evacuation: a fixed time step over every occupant and rescue agent,
// grouped into episodes that end on timeout or when nobody is left inside.
package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/OCAP2/evacsim/internal/decision"
	"github.com/OCAP2/evacsim/internal/dispatcher"
	"github.com/OCAP2/evacsim/internal/hazard"
	"github.com/OCAP2/evacsim/internal/nav"
	"github.com/OCAP2/evacsim/internal/occupant"
	"github.com/OCAP2/evacsim/internal/rescue"
	"github.com/OCAP2/evacsim/internal/scenario"
	"github.com/OCAP2/evacsim/internal/session"
	"github.com/OCAP2/evacsim/internal/social"
	"github.com/OCAP2/evacsim/internal/tuning"
	"github.com/OCAP2/evacsim/internal/vision"
	"github.com/OCAP2/evacsim/pkg/core"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// collider radii on the scan layers
const (
	occupantRadius = 0.3
	agentRadius    = 0.5
	doorRadius     = 0.5
)

// fixture is a door or an exit.
type fixture struct {
	id  core.EntityID
	pos core.Vec3
}

// Option configures a Simulation.
type Option func(*Simulation)

func WithTuning(t *tuning.Tuning) Option             { return func(s *Simulation) { s.tuning = t } }
func WithNavigator(n nav.Navigator) Option           { return func(s *Simulation) { s.nav = n } }
func WithProvider(p decision.Provider) Option        { return func(s *Simulation) { s.provider = p } }
func WithDispatcher(d *dispatcher.Dispatcher) Option { return func(s *Simulation) { s.events = d } }
func WithLogger(l *slog.Logger) Option               { return func(s *Simulation) { s.logger = l } }
func WithSession(c *session.Context) Option          { return func(s *Simulation) { s.session = c } }

// Simulation owns the arena. Step is not safe for concurrent use; the only parallel work is the
// hazard phase it fans out itself.
type Simulation struct {
	cfg      Config
	tuning   *tuning.Tuning
	layout   scenario.Layout
	dataset  *hazard.Dataset
	nav      nav.Navigator
	graph    *social.Graph
	scene    *vision.Scene
	provider decision.Provider
	ledger   *decision.Ledger
	events   *dispatcher.Dispatcher
	session  *session.Context
	logger   *slog.Logger
	rng      *rand.Rand
	metrics  *metrics

	doors     []fixture
	exits     []fixture
	agents    []*rescue.Agent
	occupants []*occupant.Occupant
	firstOcc  core.EntityID
	byID      map[core.EntityID]*occupant.Occupant
	agentByID map[core.EntityID]*rescue.Agent
	fixtures  map[core.EntityID]occupant.Body

	episode      int
	episodeID    string
	now          float64
	nextDecision float64
	nextSnapshot float64
	escaped      int
	dead         int
	healthSum    float64
	stats        Stats
}

// New builds the arena for a layout. The hazard dataset is shared read-only; every occupant
// queries it through its own engine.
func New(ds *hazard.Dataset, layout scenario.Layout, cfg Config, opts ...Option) (*Simulation, error) {
	if ds == nil || ds.Len() == 0 {
		return nil, hazard.ErrNoDataset
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid simulation config: %w", err)
	}
	if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("invalid layout: %w", err)
	}

	s := &Simulation{
		cfg:       cfg,
		layout:    layout,
		dataset:   ds,
		ledger:    decision.NewLedger(),
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		byID:      make(map[core.EntityID]*occupant.Occupant),
		agentByID: make(map[core.EntityID]*rescue.Agent),
		fixtures:  make(map[core.EntityID]occupant.Body),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.tuning == nil {
		t := tuning.Default()
		s.tuning = &t
	}
	if s.nav == nil {
		fp, err := layout.FloorPlan()
		if err != nil {
			return nil, fmt.Errorf("building floor plan: %w", err)
		}
		s.nav = fp
	}
	if s.provider == nil {
		mode, err := decision.ParseMode(cfg.PanicMode)
		if err != nil {
			return nil, err
		}
		if s.provider, err = decision.ForMode(mode, cfg.Seed); err != nil {
			return nil, err
		}
	}
	if s.cfg.Occupants == 0 {
		s.cfg.Occupants = layout.Occupants
	}

	var err error
	if s.metrics, err = newMetrics(); err != nil {
		return nil, err
	}
	s.graph = social.New(s.logger)
	s.scene = vision.NewScene(layout.VisionWalls())

	next := core.EntityID(1)
	for _, p := range layout.Doors {
		s.addFixture(&s.doors, next, core.KindDoor, p.Vec())
		next++
	}
	for _, p := range layout.Exits {
		s.addFixture(&s.exits, next, core.KindExit, p.Vec())
		next++
	}
	for _, patrol := range layout.Agents {
		route := make([]core.Vec3, 0, len(patrol.Route))
		for _, p := range patrol.Route {
			route = append(route, p.Vec())
		}
		a := rescue.New(next, patrol.Spawn.Vec(), route, s.tuning)
		s.agents = append(s.agents, a)
		s.agentByID[a.ID] = a
		next++
	}
	s.firstOcc = next
	return s, nil
}

func (s *Simulation) addFixture(list *[]fixture, id core.EntityID, kind core.Kind, pos core.Vec3) {
	*list = append(*list, fixture{id: id, pos: pos})
	s.fixtures[id] = occupant.Body{ID: id, Kind: kind, Pos: pos, Forward: core.Forward, Active: true}
}

func (s *Simulation) Config() Config                  { return s.cfg }
func (s *Simulation) Now() float64                    { return s.now }
func (s *Simulation) Episode() int                    { return s.episode }
func (s *Simulation) EpisodeID() string               { return s.episodeID }
func (s *Simulation) Graph() *social.Graph            { return s.graph }
func (s *Simulation) Ledger() *decision.Ledger        { return s.ledger }
func (s *Simulation) Stats() Stats                    { return s.stats }
func (s *Simulation) Occupants() []*occupant.Occupant { return s.occupants }
func (s *Simulation) Agents() []*rescue.Agent         { return s.agents }
func (s *Simulation) Occupant(id core.EntityID) (*occupant.Occupant, bool) {
	o, ok := s.byID[id]
	return o, ok
}

// Reset tears the current episode down and spawns the next one. Every binding is unwound and
// every occupant deactivated before the new population is placed.
func (s *Simulation) Reset() {
	for _, o := range s.occupants {
		s.graph.UnbindAll(o.ID)
		o.Deactivate()
	}
	for _, a := range s.agents {
		a.Deactivate(s.graph)
	}
	if n := s.graph.Len(); n > 0 {
		s.logger.Warn("bindings left after episode teardown", "count", n)
		s.graph.Reset()
	}

	s.episode++
	s.episodeID = uuid.NewString()
	s.now, s.nextDecision, s.nextSnapshot = 0, 0, 0
	s.escaped, s.dead, s.healthSum = 0, 0, 0
	s.ledger.Reset()
	if r, ok := s.provider.(decision.Resetter); ok {
		r.Reset()
	}
	if s.session != nil {
		s.session.SetEpisode(s.episode)
	}

	for _, a := range s.agents {
		a.Reset()
	}

	var engineOpts []hazard.EngineOption
	if s.cfg.TargetDuration > 0 {
		engineOpts = append(engineOpts, hazard.WithTimeScale(s.dataset.Duration(), s.cfg.TargetDuration))
	}
	s.occupants = s.occupants[:0]
	clear(s.byID)
	for i := range s.cfg.Occupants {
		id := s.firstOcc + core.EntityID(i)
		pos := s.layout.Spawn.Sample(s.rng)
		if p, ok := s.nav.SamplePosition(pos, 2); ok {
			pos = p
		}
		o := occupant.New(id, pos, s.dataset.NewEngine(engineOpts...), s.tuning, core.Calm)
		s.occupants = append(s.occupants, o)
		s.byID[id] = o
	}

	s.logger.Info("episode started", "episode", s.episode, "episode_id", s.episodeID,
		"occupants", len(s.occupants), "agents", len(s.agents))
}

// Step advances the arena by one Dt: hazard and vitals for everyone in parallel, then deaths,
// decisions, behavior, movement, rescue agents and door/exit triggers in order.
func (s *Simulation) Step(ctx context.Context) error {
	start := time.Now()
	dt := s.cfg.Dt

	if err := s.sense(ctx, dt); err != nil {
		return err
	}
	for _, o := range s.occupants {
		if o.Active() && o.Vitals.Dead() {
			s.finish(ctx, o, core.OutcomeDeath)
		}
	}

	if s.now >= s.nextDecision {
		if err := s.decide(ctx); err != nil {
			return err
		}
		s.nextDecision += s.tuning.Decision.Interval
	}

	s.rebuildScene()
	env := s.occupantEnv()
	for _, o := range s.occupants {
		if !o.Active() {
			continue
		}
		o.FSM.Evaluate(o.Vitals.Panic, dt)
		o.Decide(env)
		o.Move(env)
	}

	renv := s.rescueEnv()
	for _, a := range s.agents {
		a.Step(renv)
	}

	s.triggers(ctx)

	if s.cfg.SnapshotEvery > 0 && s.now >= s.nextSnapshot {
		s.publish(TopicSnapshot, s.Snapshot())
		s.nextSnapshot += s.cfg.SnapshotEvery
	}

	s.now += dt
	s.metrics.stepTime.Record(ctx, float64(time.Since(start).Microseconds())/1000)
	return nil
}

// sense runs the hazard query and vitals update of every active occupant on a bounded group.
func (s *Simulation) sense(ctx context.Context, dt float64) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.cfg.Workers, 1))
	now := s.now
	for _, o := range s.occupants {
		if !o.Active() {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			o.Sense(now, dt)
			return nil
		})
	}
	return g.Wait()
}

// decide shapes rewards and polls the decision provider for every active occupant.
func (s *Simulation) decide(ctx context.Context) error {
	hold := s.tuning.Decision.Interval
	for _, o := range s.occupants {
		if !o.Active() {
			continue
		}
		s.ledger.Add(o.ID, decision.Shape(o.State(), o.Reading()))
		obs := decision.Observe(o)
		obs.Reward = s.ledger.Take(o.ID)

		state, ok, err := s.provider.Decide(ctx, obs)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn("decision failed, keeping own state", "occupant", o.ID, "error", err)
			continue
		}
		if !ok {
			continue
		}
		if o.FSM.Override(state, hold) {
			s.logger.Debug("behavior overridden", "occupant", o.ID, "state", state)
		}
		s.metrics.overrides.Add(ctx, 1)
	}
	return nil
}

func (s *Simulation) rebuildScene() {
	s.scene.Reset()
	v := s.tuning.Vision
	for _, d := range s.doors {
		s.scene.Add(vision.Entity{ID: d.id, Kind: core.KindDoor, Pos: d.pos, Radius: doorRadius, Layer: v.DoorLayer})
	}
	for _, e := range s.exits {
		s.scene.Add(vision.Entity{ID: e.id, Kind: core.KindExit, Pos: e.pos, Radius: s.layout.ExitRadius, Layer: v.DoorLayer})
	}
	for _, a := range s.agents {
		if a.Active() {
			s.scene.Add(vision.Entity{ID: a.ID, Kind: core.KindRescueAgent, Pos: a.Pos, Radius: agentRadius, Layer: v.AgentLayer})
		}
	}
	for _, o := range s.occupants {
		if o.Active() {
			s.scene.Add(vision.Entity{ID: o.ID, Kind: core.KindOccupant, Pos: o.Pos, Radius: occupantRadius, Layer: v.AgentLayer})
		}
	}
}

func (s *Simulation) occupantEnv() *occupant.Env {
	return &occupant.Env{
		Now:    s.now,
		Dt:     s.cfg.Dt,
		Scene:  s.scene,
		Nav:    s.nav,
		Graph:  s.graph,
		Bodies: s,
		Rand:   s.rng,
		Tuning: s.tuning,
		Logger: s.logger,
		OnYield: func(_, _ core.EntityID) {
			s.ledger.Yield()
		},
	}
}

func (s *Simulation) rescueEnv() *rescue.Env {
	env := &rescue.Env{
		Dt:     s.cfg.Dt,
		Nav:    s.nav,
		Graph:  s.graph,
		Tuning: s.tuning,
		Logger: s.logger,
		Active: func(id core.EntityID) bool {
			o, ok := s.byID[id]
			return ok && o.Active()
		},
	}
	for _, e := range s.exits {
		env.Exits = append(env.Exits, e.pos)
	}
	for _, d := range s.doors {
		env.Doors = append(env.Doors, d.pos)
	}
	return env
}

// triggers records door crossings and lets occupants inside an exit radius escape.
func (s *Simulation) triggers(ctx context.Context) {
	for _, o := range s.occupants {
		if !o.Active() {
			continue
		}
		for _, d := range s.doors {
			if o.Pos.FlatDist(d.pos) <= s.layout.DoorRadius {
				o.PassDoor(d.id)
			}
		}
		for _, e := range s.exits {
			if o.Pos.FlatDist(e.pos) <= s.layout.ExitRadius {
				s.finish(ctx, o, core.OutcomeEscape)
				break
			}
		}
	}
}

// finish books a death or escape once and releases everyone who was following the occupant.
func (s *Simulation) finish(ctx context.Context, o *occupant.Occupant, kind core.OutcomeKind) {
	if !o.Finish(kind) {
		return
	}
	for _, id := range s.graph.UnbindAll(o.ID) {
		if f, ok := s.byID[id]; ok {
			f.Role = core.RoleLeader
		}
	}

	out := o.Outcome(s.episode, s.now)
	switch kind {
	case core.OutcomeEscape:
		s.escaped++
		s.healthSum += float64(out.RemainingHealth)
	case core.OutcomeDeath:
		s.dead++
	}
	s.ledger.Outcome(out)
	s.metrics.outcome(ctx, kind.String())
	s.logger.Debug("occupant finished", "occupant", o.ID, "kind", kind, "health", out.RemainingHealth, "elapsed", s.now)
	s.publish(TopicOutcome, out)
}

func (s *Simulation) publish(topic string, payload any) {
	if s.events == nil || !s.events.HasSubscribers(topic) {
		return
	}
	if err := s.events.Publish(dispatcher.Event{Topic: topic, Payload: payload}); err != nil {
		s.logger.Warn("event not delivered", "topic", topic, "error", err)
	}
}

// Active reports how many occupants are still inside.
func (s *Simulation) Active() int {
	n := 0
	for _, o := range s.occupants {
		if o.Active() {
			n++
		}
	}
	return n
}

// Done reports whether the episode is over and whether it ended by timeout.
func (s *Simulation) Done() (done, timedOut bool) {
	if s.Active() == 0 {
		return true, false
	}
	if s.now >= s.cfg.EpisodeTimeout {
		return true, true
	}
	return false, false
}

// Snapshot aggregates the population at the current time.
func (s *Simulation) Snapshot() core.PopulationSnapshot {
	snap := core.PopulationSnapshot{Episode: s.episode, SimTime: s.now, Escaped: s.escaped, Dead: s.dead}
	for _, o := range s.occupants {
		if !o.Active() {
			continue
		}
		snap.Alive++
		switch o.State() {
		case core.Calm:
			snap.Calm++
		case core.Anxious:
			snap.Anxious++
		case core.Panicked:
			snap.Panicked++
		}
		if o.Role == core.RoleFollower {
			snap.Followers++
		}
		snap.AvgHealth += o.Vitals.Health
		snap.AvgPanic += o.Vitals.Panic
	}
	if snap.Alive > 0 {
		snap.AvgHealth /= float64(snap.Alive)
		snap.AvgPanic /= float64(snap.Alive)
	}
	return snap
}

func (s *Simulation) summary(timedOut bool) core.EpisodeSummary {
	return core.EpisodeSummary{
		ID:        s.episodeID,
		Index:     s.episode,
		Duration:  s.now,
		Total:     len(s.occupants),
		Escaped:   s.escaped,
		Dead:      s.dead,
		HealthSum: s.healthSum,
		TimedOut:  timedOut,
	}
}

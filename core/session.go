package orchestration

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-rehearse/core/dictation"
)

const listeningTitle = "Listening..."

// SessionFactory builds the orchestrator for one session of scenario.
type SessionFactory func(ctx context.Context, scenario Scenario) (*Orchestrator, error)

type SessionControllerOption func(*SessionController)

func WithScenarios(scenarios []Scenario) SessionControllerOption {
	return func(c *SessionController) {
		if err := c.SetScenarios(scenarios); err != nil {
			logger.Warn("ignoring scenarios", "error", err)
		}
	}
}

func WithInitialScenario(id string) SessionControllerOption {
	return func(c *SessionController) {
		if err := c.ChangeScenario(id); err != nil {
			logger.Warn("ignoring initial scenario", "scenario", id, "error", err)
		}
	}
}

// SessionController owns at most one live session at a time and the scenario
// catalog sessions are started from.
type SessionController struct {
	factory SessionFactory

	mu             sync.Mutex
	scenarios      []Scenario
	scenarioID     string
	starting       bool
	stopPending    bool
	active         *Orchestrator
	activeScenario Scenario
	sessionID      string
}

func NewSessionController(factory SessionFactory, opts ...SessionControllerOption) *SessionController {
	c := &SessionController{factory: factory, scenarios: DefaultScenarios()}
	c.scenarioID = c.scenarios[0].ID

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins a session of scenarioID, or of the selected scenario when
// scenarioID is empty.
func (c *SessionController) Start(ctx context.Context, scenarioID string) error {
	ctx, span := tracer.Start(ctx, "start session")
	defer span.End()

	c.mu.Lock()
	ended := c.reapLocked()
	scenario, err := c.beginStartLocked(scenarioID)
	c.mu.Unlock()
	closeEnded(ended)
	if err != nil {
		return err
	}

	orchestrator, err := c.startOrchestrator(ctx, scenario)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.starting = false
	if err != nil {
		return err
	}
	if c.stopPending {
		c.stopPending = false
		logger.InfoContext(ctx, "session stopped while starting", "scenario", scenario.ID)
		orchestrator.Close()
		return ErrStartCancelled
	}

	c.active = orchestrator
	c.activeScenario = scenario
	c.scenarioID = scenario.ID
	c.sessionID = uuid.NewString()
	logger.InfoContext(ctx, "session started", "session_id", c.sessionID, "scenario", scenario.ID)
	return nil
}

func (c *SessionController) beginStartLocked(scenarioID string) (Scenario, error) {
	if c.active != nil || c.starting {
		return Scenario{}, ErrSessionActive
	}
	if scenarioID == "" {
		scenarioID = c.scenarioID
	}
	scenario, ok := findScenario(c.scenarios, scenarioID)
	if !ok {
		return Scenario{}, fmt.Errorf("%w: %q", ErrUnknownScenario, scenarioID)
	}

	c.starting = true
	c.stopPending = false
	return scenario, nil
}

func (c *SessionController) startOrchestrator(ctx context.Context, scenario Scenario) (*Orchestrator, error) {
	if c.factory == nil {
		return nil, fmt.Errorf("no session factory configured")
	}

	orchestrator, err := c.factory(ctx, scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	if err := orchestrator.Start(ctx); err != nil {
		orchestrator.Close()
		return nil, err
	}
	return orchestrator, nil
}

// Stop ends the live session. A session that is still starting is closed as
// soon as its start completes. It is a no-op while idle.
func (c *SessionController) Stop() {
	if orchestrator := c.detach(); orchestrator != nil {
		orchestrator.Stop()
		orchestrator.Close()
	}
}

// Reset ends the live session and discards everything it buffered.
func (c *SessionController) Reset() {
	if orchestrator := c.detach(); orchestrator != nil {
		orchestrator.Reset()
		orchestrator.Close()
	}
}

func (c *SessionController) detach() *Orchestrator {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.starting {
		c.stopPending = true
	}
	orchestrator := c.active
	if orchestrator != nil {
		logger.Info("session ended", "session_id", c.sessionID)
	}
	c.active = nil
	c.sessionID = ""
	return orchestrator
}

// reapLocked detaches a session whose orchestrator went idle on its own, for
// example when capture could not restart after a reply. The caller closes the
// returned orchestrator after releasing the lock.
func (c *SessionController) reapLocked() *Orchestrator {
	orchestrator := c.active
	if orchestrator == nil || orchestrator.State().Live() {
		return nil
	}

	logger.Info("session ended on its own", "session_id", c.sessionID)
	c.active = nil
	c.sessionID = ""
	return orchestrator
}

func closeEnded(orchestrator *Orchestrator) {
	if orchestrator != nil {
		orchestrator.Close()
	}
}

// ChangeScenario selects the scenario of the next session.
func (c *SessionController) ChangeScenario(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ended := c.reapLocked(); ended != nil {
		go closeEnded(ended)
	}
	if c.active != nil || c.starting {
		return ErrSessionActive
	}
	if _, ok := findScenario(c.scenarios, id); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownScenario, id)
	}
	c.scenarioID = id
	return nil
}

// SetScenarios replaces the catalog. A live session keeps its scenario; the
// selection falls back to the first scenario when it disappeared.
func (c *SessionController) SetScenarios(scenarios []Scenario) error {
	if err := ValidateScenarios(scenarios); err != nil {
		return err
	}
	copied, err := copyScenarios(scenarios)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.scenarios = copied
	if _, ok := findScenario(copied, c.scenarioID); !ok {
		c.scenarioID = copied[0].ID
	}
	return nil
}

func (c *SessionController) Scenarios() []Scenario {
	c.mu.Lock()
	defer c.mu.Unlock()

	scenarios, err := copyScenarios(c.scenarios)
	if err != nil {
		return nil
	}
	return scenarios
}

// Scenario returns the scenario of the live session, or the selected one.
func (c *SessionController) Scenario() Scenario {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ended := c.reapLocked(); ended != nil {
		go closeEnded(ended)
	}
	if c.active != nil {
		return c.activeScenario
	}
	scenario, _ := findScenario(c.scenarios, c.scenarioID)
	return scenario
}

// Title is "Listening..." while a session is live and the selected
// scenario's title otherwise.
func (c *SessionController) Title() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ended := c.reapLocked(); ended != nil {
		go closeEnded(ended)
	}
	if c.active != nil {
		return listeningTitle
	}
	scenario, _ := findScenario(c.scenarios, c.scenarioID)
	return scenario.Title
}

func (c *SessionController) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *SessionController) Active() bool {
	return c.current() != nil
}

func (c *SessionController) State() SessionState {
	if orchestrator := c.current(); orchestrator != nil {
		return orchestrator.State()
	}
	return StateIdle
}

func (c *SessionController) VisibleTurns() []dictation.Turn {
	if orchestrator := c.current(); orchestrator != nil {
		return orchestrator.VisibleTurns()
	}
	return nil
}

func (c *SessionController) current() *Orchestrator {
	c.mu.Lock()
	ended := c.reapLocked()
	orchestrator := c.active
	c.mu.Unlock()

	closeEnded(ended)
	return orchestrator
}

package orchestration

import (
	"fmt"

	"github.com/jinzhu/copier"
)

// Scenario is the situation a session rehearses. It seeds the response
// generator and the title shown while idle.
type Scenario struct {
	ID       string `json:"id" yaml:"id"`
	Title    string `json:"title" yaml:"title"`
	Prompt   string `json:"prompt" yaml:"prompt"`
	Greeting string `json:"greeting,omitempty" yaml:"greeting,omitempty"`
}

func DefaultScenarios() []Scenario {
	return []Scenario{
		{
			ID:       "interview",
			Title:    "Interview",
			Prompt:   "You are interviewing the user for a job. Ask one question at a time and react briefly to their answers.",
			Greeting: "Thanks for coming in today. Could you start by telling me about yourself?",
		},
		{
			ID:       "order-coffee",
			Title:    "Ordering a Coffee",
			Prompt:   "You are a barista at a busy cafe. Take the user's order, ask about size and extras, and keep replies short.",
			Greeting: "Hi there! What can I get started for you?",
		},
		{
			ID:       "conversation",
			Title:    "Free Conversation",
			Prompt:   "You are a friendly conversation partner. Keep replies to one or two sentences and ask follow-up questions.",
			Greeting: "Hey! What would you like to talk about?",
		},
	}
}

func findScenario(scenarios []Scenario, id string) (Scenario, bool) {
	for _, scenario := range scenarios {
		if scenario.ID == id {
			return scenario, true
		}
	}
	return Scenario{}, false
}

func copyScenarios(scenarios []Scenario) ([]Scenario, error) {
	copied := []Scenario{}
	if err := copier.CopyWithOption(&copied, &scenarios, copier.Option{DeepCopy: true}); err != nil {
		return nil, fmt.Errorf("failed to copy scenarios: %w", err)
	}
	return copied, nil
}

// ValidateScenarios reports empty or duplicate ids.
func ValidateScenarios(scenarios []Scenario) error {
	if len(scenarios) == 0 {
		return fmt.Errorf("no scenarios")
	}

	seen := map[string]struct{}{}
	for i, scenario := range scenarios {
		if scenario.ID == "" {
			return fmt.Errorf("scenario %d: missing id", i)
		}
		if _, ok := seen[scenario.ID]; ok {
			return fmt.Errorf("scenario %q: duplicate id", scenario.ID)
		}
		seen[scenario.ID] = struct{}{}
	}
	return nil
}

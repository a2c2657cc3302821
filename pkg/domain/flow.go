package domain

// StepType discriminates the closed set of step kinds.
type StepType string

const (
	// StepTypeMessage displays text and continues immediately.
	StepTypeMessage StepType = "message"
	// StepTypeChoice presents options and halts waiting for an answer.
	StepTypeChoice StepType = "choice"
	// StepTypeExecute triggers an external action and continues.
	StepTypeExecute StepType = "execute"
)

// FlowDefinition is a static, versioned conversation script.
// Step order is irrelevant to execution; steps are looked up by id.
type FlowDefinition struct {
	ID      string
	Version string
	Start   string
	Steps   []Step
}

// Step is one node of the flow graph.
// The set of implementations is closed: MessageStep, ChoiceStep and ExecuteStep.
type Step interface {
	StepID() string
	Type() StepType
	isStep()
}

// MessageStep shows Text and moves on to Next. An empty Next ends the conversation.
type MessageStep struct {
	ID   string
	Text string
	Next string
}

func (s *MessageStep) StepID() string { return s.ID }
func (s *MessageStep) Type() StepType { return StepTypeMessage }
func (*MessageStep) isStep()          {}

// Option is a single answer offered by a ChoiceStep.
type Option struct {
	Text  string
	Value string
	Next  string
}

// ChoiceStep asks Prompt and waits for one of Options.
type ChoiceStep struct {
	ID      string
	Prompt  string
	Options []Option
}

func (s *ChoiceStep) StepID() string { return s.ID }
func (s *ChoiceStep) Type() StepType { return StepTypeChoice }
func (*ChoiceStep) isStep()          {}

// Option returns the option whose value matches exactly.
func (s *ChoiceStep) Option(value string) (Option, bool) {
	for _, opt := range s.Options {
		if opt.Value == value {
			return opt, true
		}
	}
	return Option{}, false
}

// Values lists the option values in declaration order.
func (s *ChoiceStep) Values() []string {
	values := make([]string, len(s.Options))
	for i, opt := range s.Options {
		values[i] = opt.Value
	}
	return values
}

// ExecuteStep runs the named Action with Params and moves on to Next.
type ExecuteStep struct {
	ID     string
	Action string
	Params map[string]any
	Next   string
}

func (s *ExecuteStep) StepID() string { return s.ID }
func (s *ExecuteStep) Type() StepType { return StepTypeExecute }
func (*ExecuteStep) isStep()          {}

// Step finds a step by id.
func (f *FlowDefinition) Step(id string) (Step, bool) {
	for _, s := range f.Steps {
		if s.StepID() == id {
			return s, true
		}
	}
	return nil, false
}

// Index builds an id lookup table. The first step wins on duplicate ids.
func (f *FlowDefinition) Index() map[string]Step {
	idx := make(map[string]Step, len(f.Steps))
	for _, s := range f.Steps {
		if _, dup := idx[s.StepID()]; !dup {
			idx[s.StepID()] = s
		}
	}
	return idx
}

// Targets returns every step id a step can transition to, skipping terminal (empty) links.
func Targets(s Step) []string {
	switch st := s.(type) {
	case *MessageStep:
		if st.Next != "" {
			return []string{st.Next}
		}
	case *ExecuteStep:
		if st.Next != "" {
			return []string{st.Next}
		}
	case *ChoiceStep:
		out := make([]string, 0, len(st.Options))
		for _, opt := range st.Options {
			if opt.Next != "" {
				out = append(out, opt.Next)
			}
		}
		return out
	}
	return nil
}

package metrics

import (
	"sync/atomic"
	"time"
)

// DecisionMetric counts how an agent reached its decisions.
type DecisionMetric struct {
	PolicyDecisions int
	RuleDecisions   int
	Fallbacks       int // policy had no mass on the legal actions
	InferenceErrors int
	Violations      int // protocol violations by the caller
	InferenceTime   time.Duration
}

// Add accumulates other into m.
func (m *DecisionMetric) Add(other DecisionMetric) {
	m.PolicyDecisions += other.PolicyDecisions
	m.RuleDecisions += other.RuleDecisions
	m.Fallbacks += other.Fallbacks
	m.InferenceErrors += other.InferenceErrors
	m.Violations += other.Violations
	m.InferenceTime += other.InferenceTime
}

type GameMetric struct {
	Match          string // match id
	StartingPlayer int    // seat
	Winner         int    // seat, -1 without a winner
	Scores         [2]int
	Hands          int
	Forfeit        bool
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
}

type Collector interface {
	AddPolicyDecision(inference time.Duration)
	AddRuleDecision()
	AddFallback()
	AddInferenceError()
	AddViolation()
	Complete() DecisionMetric
}

type collector struct {
	policy        atomic.Int32
	rules         atomic.Int32
	fallbacks     atomic.Int32
	inferenceErrs atomic.Int32
	violations    atomic.Int32
	inferenceTime atomic.Int64
}

func NewCollector() Collector {
	return &collector{}
}

func (m *collector) AddPolicyDecision(inference time.Duration) {
	m.policy.Add(1)
	m.inferenceTime.Add(int64(inference))
}

func (m *collector) AddRuleDecision() {
	m.rules.Add(1)
}

func (m *collector) AddFallback() {
	m.fallbacks.Add(1)
}

func (m *collector) AddInferenceError() {
	m.inferenceErrs.Add(1)
}

func (m *collector) AddViolation() {
	m.violations.Add(1)
}

func (m *collector) Complete() DecisionMetric {
	return DecisionMetric{
		PolicyDecisions: int(m.policy.Load()),
		RuleDecisions:   int(m.rules.Load()),
		Fallbacks:       int(m.fallbacks.Load()),
		InferenceErrors: int(m.inferenceErrs.Load()),
		Violations:      int(m.violations.Load()),
		InferenceTime:   time.Duration(m.inferenceTime.Load()),
	}
}

type dummyCollector struct{}

func NewDummyCollector() Collector {
	return &dummyCollector{}
}

func (m *dummyCollector) AddPolicyDecision(time.Duration) {}
func (m *dummyCollector) AddRuleDecision()                {}
func (m *dummyCollector) AddFallback()                    {}
func (m *dummyCollector) AddInferenceError()              {}
func (m *dummyCollector) AddViolation()                   {}
func (m *dummyCollector) Complete() DecisionMetric        { return DecisionMetric{} }

// AgentConfig describes one side of an experiment match-up.
type AgentConfig struct {
	ID            int
	Name          string
	ModelPath     string // empty plays by the rules only
	InputName     string
	OutputName    string
	Probabilities bool // the output holds probabilities rather than logits
	RequireModel  bool
	Seed          uint64
}

type GameRecord struct {
	ID     int
	Agent1 int // AgentConfig.ID in seat 0
	Agent2 int // AgentConfig.ID in seat 1
	GameMetric
}

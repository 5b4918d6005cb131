// Package services contains the application services of the scheduling
// context: the priority engine with its scoring strategies and the
// schedule generator.
package services

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/studyloop/studyloop/internal/scheduling/domain"
)

// Weight component names shared by the strategies and the weights API.
const (
	WeightUrgency      = "urgency"
	WeightDifficulty   = "difficulty"
	WeightForgetting   = "forgetting"
	WeightProductivity = "productivity"
	WeightTaskType     = "task_type"
	WeightPerformance  = "performance"
	WeightTime         = "time"
)

// weightSumTolerance is the allowed deviation from 1.0 for a weight set.
const weightSumTolerance = 0.01

// Weights maps score components to their contribution. A valid set is
// non-negative and sums to 1.0 within tolerance.
type Weights map[string]float64

// Validate checks that the weights are non-negative and sum to 1.0.
func (w Weights) Validate() error {
	sum := 0.0
	for name, v := range w {
		if v < 0 {
			return fmt.Errorf("%w: %s is negative", domain.ErrInvalidWeights, name)
		}
		sum += v
	}
	if math.Abs(sum-1.0) > weightSumTolerance {
		return fmt.Errorf("%w: got %.3f", domain.ErrInvalidWeights, sum)
	}
	return nil
}

// clone returns an independent copy so callers cannot alias internal state.
func (w Weights) clone() Weights {
	out := make(Weights, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// ScoringStrategy computes a priority score for a task given its subject
// history. Implementations need not be goroutine safe; the engine holds its
// lock across every strategy call.
type ScoringStrategy interface {
	Name() string
	Weights() Weights
	SetWeights(w Weights) error
	Score(task domain.Task, stats domain.SubjectStats, now time.Time) (float64, domain.Subscores)
}

// PriorityEngine scores tasks through a configurable strategy and builds the
// annotated scored-task output.
type PriorityEngine struct {
	mu       sync.RWMutex
	strategy ScoringStrategy
}

// NewPriorityEngine creates an engine around the given strategy.
func NewPriorityEngine(strategy ScoringStrategy) *PriorityEngine {
	return &PriorityEngine{strategy: strategy}
}

// StrategyForName returns the strategy registered under the given name,
// defaulting to the curve strategy.
func StrategyForName(name string) ScoringStrategy {
	if name == "tasktype" {
		return NewTaskTypeStrategy()
	}
	return NewCurveStrategy()
}

// StrategyName reports the active strategy's name.
func (e *PriorityEngine) StrategyName() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.strategy.Name()
}

// Weights returns a copy of the active strategy's weights.
func (e *PriorityEngine) Weights() Weights {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.strategy.Weights()
}

// SetWeights validates and applies new weights. Invalid weights leave the
// current configuration untouched.
func (e *PriorityEngine) SetWeights(w Weights) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.strategy.SetWeights(w)
}

// Score computes the scored-task view of a single task.
func (e *PriorityEngine) Score(task domain.Task, stats domain.SubjectStats, now time.Time) domain.ScoredTask {
	e.mu.RLock()
	score, subs := e.strategy.Score(task, stats, now)
	e.mu.RUnlock()

	scored := domain.ScoredTask{
		TaskID:           task.ID,
		TaskName:         task.Title,
		SubjectName:      task.SubjectName,
		EstimatedMinutes: task.EstimatedMinutes,
		PriorityScore:    score,
		Subscores:        subs,
		Deadline:         task.Deadline,
		Reason:           recommendationReason(subs),
	}

	if days, ok := task.DaysUntilDeadline(now); ok {
		scored.DaysUntilDue = &days
	}
	if stats.LastStudied != nil {
		days := int(now.Sub(*stats.LastStudied).Hours() / 24)
		scored.DaysSinceLastStudy = &days
	}

	return scored
}

// recommendationReason explains a score from its dominant components.
func recommendationReason(subs domain.Subscores) string {
	var reasons []string
	if subs.Urgency > 0.7 {
		reasons = append(reasons, "deadline approaching")
	}
	if subs.Difficulty > 0.6 {
		reasons = append(reasons, "challenging subject")
	}
	if subs.Forgetting > 0.7 {
		reasons = append(reasons, "needs review")
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "good time to work on this")
	}
	return "Recommended because: " + strings.Join(reasons, ", ")
}

// CurveStrategy is the default strategy: urgency and forgetting-curve driven,
// with difficulty and time-of-day productivity as secondary signals.
type CurveStrategy struct {
	weights Weights
}

// NewCurveStrategy creates the curve strategy with default weights.
func NewCurveStrategy() *CurveStrategy {
	return &CurveStrategy{
		weights: Weights{
			WeightUrgency:      0.35,
			WeightDifficulty:   0.25,
			WeightForgetting:   0.25,
			WeightProductivity: 0.15,
		},
	}
}

func (s *CurveStrategy) Name() string { return "curve" }

func (s *CurveStrategy) Weights() Weights { return s.weights.clone() }

func (s *CurveStrategy) SetWeights(w Weights) error {
	if err := w.Validate(); err != nil {
		return err
	}
	if err := requireComponents(w, WeightUrgency, WeightDifficulty, WeightForgetting, WeightProductivity); err != nil {
		return err
	}
	s.weights = w.clone()
	return nil
}

func (s *CurveStrategy) Score(task domain.Task, stats domain.SubjectStats, now time.Time) (float64, domain.Subscores) {
	subs := domain.Subscores{
		Urgency:      urgencyFromHours(task, now),
		Difficulty:   difficultyScore(stats),
		Forgetting:   forgettingScore(stats, now),
		Productivity: productivityScore(now.Hour()),
	}

	score := subs.Urgency*s.weights[WeightUrgency] +
		subs.Difficulty*s.weights[WeightDifficulty] +
		subs.Forgetting*s.weights[WeightForgetting] +
		subs.Productivity*s.weights[WeightProductivity]

	return round3(clamp01(score)), subs
}

// urgencyFromHours buckets hours until deadline. Overdue tasks saturate at
// 1.0; tasks without a deadline take the far-future bucket.
func urgencyFromHours(task domain.Task, now time.Time) float64 {
	hours, ok := task.HoursUntilDeadline(now)
	if !ok {
		return 0.1
	}
	switch {
	case hours <= 0:
		return 1.0
	case hours <= 24:
		return 0.9
	case hours <= 72:
		return 0.7
	case hours <= 168:
		return 0.5
	case hours <= 336:
		return 0.3
	default:
		return 0.1
	}
}

// difficultyScore maps the 1-5 rating scale onto [0,1], weighting recent
// sessions over the lifetime average.
func difficultyScore(stats domain.SubjectStats) float64 {
	rating := 0.7*stats.RecentDifficulty + 0.3*stats.AvgDifficulty
	return clamp01((rating - 1) / 4)
}

// forgettingScore approximates the forgetting curve from days since the
// subject was last studied.
func forgettingScore(stats domain.SubjectStats, now time.Time) float64 {
	if stats.LastStudied == nil {
		return 1.0
	}
	days := now.Sub(*stats.LastStudied).Hours() / 24
	switch {
	case days <= 1:
		return 0.1
	case days <= 3:
		return 0.3
	case days <= 7:
		return 0.6
	case days <= 14:
		return 0.8
	default:
		return 1.0
	}
}

var (
	peakHours = map[int]bool{9: true, 10: true, 11: true, 14: true, 15: true, 16: true, 19: true, 20: true}
	goodHours = map[int]bool{8: true, 12: true, 13: true, 17: true, 18: true, 21: true}
)

// productivityScore reflects typical student alertness by hour of day.
func productivityScore(hour int) float64 {
	switch {
	case peakHours[hour]:
		return 1.0
	case goodHours[hour]:
		return 0.6
	default:
		return 0.3
	}
}

// TaskTypeStrategy is the variant strategy: deadline urgency in day buckets
// combined with task-type importance, subject performance, and task length.
type TaskTypeStrategy struct {
	weights Weights
}

// NewTaskTypeStrategy creates the task-type strategy with default weights.
func NewTaskTypeStrategy() *TaskTypeStrategy {
	return &TaskTypeStrategy{
		weights: Weights{
			WeightUrgency:     0.40,
			WeightTaskType:    0.25,
			WeightPerformance: 0.20,
			WeightTime:        0.15,
		},
	}
}

func (s *TaskTypeStrategy) Name() string { return "tasktype" }

func (s *TaskTypeStrategy) Weights() Weights { return s.weights.clone() }

func (s *TaskTypeStrategy) SetWeights(w Weights) error {
	if err := w.Validate(); err != nil {
		return err
	}
	if err := requireComponents(w, WeightUrgency, WeightTaskType, WeightPerformance, WeightTime); err != nil {
		return err
	}
	s.weights = w.clone()
	return nil
}

// Score maps the type, performance, and time-factor components onto the
// difficulty, forgetting, and productivity sub-score slots.
func (s *TaskTypeStrategy) Score(task domain.Task, stats domain.SubjectStats, now time.Time) (float64, domain.Subscores) {
	subs := domain.Subscores{
		Urgency:      urgencyFromDays(task, now),
		Difficulty:   task.Type.Weight(),
		Forgetting:   performanceScore(stats),
		Productivity: timeFactor(task.EstimatedMinutes),
	}

	score := subs.Urgency*s.weights[WeightUrgency] +
		subs.Difficulty*s.weights[WeightTaskType] +
		subs.Forgetting*s.weights[WeightPerformance] +
		subs.Productivity*s.weights[WeightTime]

	return round3(clamp01(score)), subs
}

// urgencyFromDays buckets days until deadline; overdue tasks score 1.0.
func urgencyFromDays(task domain.Task, now time.Time) float64 {
	days, ok := task.DaysUntilDeadline(now)
	if !ok {
		return 0.3
	}
	switch {
	case days <= 1:
		return 1.0
	case days <= 3:
		return 0.9
	case days <= 7:
		return 0.7
	case days <= 14:
		return 0.5
	default:
		return 0.3
	}
}

// performanceScore boosts subjects the student has not mastered. New or
// rarely studied subjects get full weight.
func performanceScore(stats domain.SubjectStats) float64 {
	if stats.SessionCount == 0 || stats.RecentStudyDays < 3 {
		return 1.0
	}
	mastery := (5 - stats.AvgDifficulty) / 4
	score := clamp01(1.2 - mastery)
	if score < 0.3 {
		score = 0.3
	}
	return score
}

// timeFactor favors shorter tasks that fit a study block.
func timeFactor(estimatedMinutes int) float64 {
	switch {
	case estimatedMinutes <= 30:
		return 0.8
	case estimatedMinutes <= 60:
		return 0.6
	case estimatedMinutes <= 120:
		return 0.4
	default:
		return 0.3
	}
}

func requireComponents(w Weights, names ...string) error {
	if len(w) != len(names) {
		return fmt.Errorf("%w: expected components %v", domain.ErrInvalidWeights, names)
	}
	for _, name := range names {
		if _, ok := w[name]; !ok {
			return fmt.Errorf("%w: missing component %s", domain.ErrInvalidWeights, name)
		}
	}
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

package pipeline

import (
	"errors"
	"fmt"
	"time"
)

// Stage is a state of the per-file pipeline.
type Stage int

const (
	StageInit Stage = iota
	StageConversion
	StageVectorization
	StageTopics
	StageArticles
	StageFinalization
	StageCompleted

	stageNone Stage = -1
)

var stageNames = [...]string{
	StageInit:          "init",
	StageConversion:    "conversion",
	StageVectorization: "vectorization",
	StageTopics:        "topics",
	StageArticles:      "articles",
	StageFinalization:  "finalization",
	StageCompleted:     "completed",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// FailurePolicy decides what a stage failure does to the file.
type FailurePolicy int

const (
	// Fatal quarantines the file in failed/ and stops.
	Fatal FailurePolicy = iota
	// Recoverable records the error and moves on to the next stage.
	Recoverable
	// Halt stops without moving the file.
	Halt
)

func (p FailurePolicy) String() string {
	switch p {
	case Fatal:
		return "fatal"
	case Recoverable:
		return "recoverable"
	case Halt:
		return "halt"
	}
	return "unknown"
}

// Timeouts bounds the stages that call out to external tools and services.
// Zero means no deadline.
type Timeouts struct {
	Convert   time.Duration
	Vectorize time.Duration
	Topics    time.Duration
	Articles  time.Duration
}

type transition struct {
	next     Stage
	policy   FailurePolicy
	timeout  time.Duration
	sentinel error
}

func transitions(t Timeouts) map[Stage]transition {
	return map[Stage]transition{
		StageInit:          {next: StageConversion, policy: Halt, sentinel: ErrIndexCheck},
		StageConversion:    {next: StageVectorization, policy: Fatal, timeout: t.Convert, sentinel: ErrConversion},
		StageVectorization: {next: StageTopics, policy: Fatal, timeout: t.Vectorize, sentinel: ErrVectorization},
		StageTopics:        {next: StageArticles, policy: Recoverable, timeout: t.Topics, sentinel: ErrTopicExtraction},
		StageArticles:      {next: StageFinalization, policy: Recoverable, timeout: t.Articles, sentinel: ErrArticleGeneration},
		StageFinalization:  {next: StageCompleted, policy: Halt, sentinel: ErrMove},
	}
}

// stageError prefixes err with the stage name and wraps the stage sentinel.
// Move failures keep their own sentinel.
func stageError(s Stage, sentinel, err error, timedOut bool) error {
	if errors.Is(err, sentinel) || errors.Is(err, ErrMove) {
		return fmt.Errorf("%s: %w", s, err)
	}
	if timedOut {
		return fmt.Errorf("%s: %w: %w: %w", s, sentinel, ErrTimeout, err)
	}
	return fmt.Errorf("%s: %w: %w", s, sentinel, err)
}

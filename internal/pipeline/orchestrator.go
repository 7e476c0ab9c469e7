package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/markdave123-py/inboxpress/internal/core"
	"github.com/markdave123-py/inboxpress/internal/logger"
	"github.com/markdave123-py/inboxpress/internal/models"
)

// Vectorizer indexes a text file under a source name.
type Vectorizer interface {
	Vectorize(ctx context.Context, path, source string) (int, error)
}

// TopicExtractor derives topics from the indexed chunks of a source.
type TopicExtractor interface {
	Extract(ctx context.Context, source string) (int, error)
}

// ArticleGenerator writes articles for unprocessed topics.
type ArticleGenerator interface {
	Generate(ctx context.Context, limit int) (int, error)
}

// SourceIndex answers the already-indexed check.
type SourceIndex interface {
	HasSource(ctx context.Context, source string) (bool, error)
}

// Archiver keeps a copy of completed records outside the inbox.
type Archiver interface {
	Archive(ctx context.Context, rec *models.ProcessingRecord, textPath string) error
}

// Deps wires the stage collaborators into the orchestrator.
type Deps struct {
	Layout     Layout
	Router     core.ConverterRouter
	Index      SourceIndex
	Vectorizer Vectorizer
	Topics     TopicExtractor
	Articles   ArticleGenerator
	Mover      *Mover
	Records    *RecordStore
	Audit      *logger.AuditLog
	Reporter   *Reporter
	Archiver   Archiver // optional
	Log        *zap.Logger

	Timeouts       Timeouts
	ArticlesPerRun int
}

// Outcome is how the processing of one file ended.
type Outcome string

const (
	OutcomeDone        Outcome = "done"
	OutcomeQuarantined Outcome = "failed"
	OutcomeIncomplete  Outcome = "incomplete" // stopped without reaching done or failed
	OutcomeSkipped     Outcome = "skipped"    // source vanished
	OutcomeInterrupted Outcome = "interrupted"
)

type Result struct {
	Outcome Outcome
	Record  *models.ProcessingRecord
	Path    string // final location of the file
}

// Orchestrator runs one file at a time through the stage table.
type Orchestrator struct {
	layout     Layout
	router     core.ConverterRouter
	index      SourceIndex
	vectorizer Vectorizer
	topics     TopicExtractor
	articles   ArticleGenerator
	mover      *Mover
	records    *RecordStore
	audit      *logger.AuditLog
	reporter   *Reporter
	archiver   Archiver
	log        *zap.Logger

	articlesPerRun int
	table          map[Stage]transition
	handlers       map[Stage]stageHandler
	now            func() time.Time
}

// fileState travels through the handlers of one run.
type fileState struct {
	rec      *models.ProcessingRecord
	name     string
	path     string // current location
	textPath string
	claimed  bool
	indexed  bool
}

type stageHandler func(ctx context.Context, st *fileState) (Stage, error)

func NewOrchestrator(d Deps) *Orchestrator {
	o := &Orchestrator{
		layout:         d.Layout,
		router:         d.Router,
		index:          d.Index,
		vectorizer:     d.Vectorizer,
		topics:         d.Topics,
		articles:       d.Articles,
		mover:          d.Mover,
		records:        d.Records,
		audit:          d.Audit,
		reporter:       d.Reporter,
		archiver:       d.Archiver,
		log:            d.Log.With(zap.String("component", "pipeline")),
		articlesPerRun: d.ArticlesPerRun,
		table:          transitions(d.Timeouts),
		now:            time.Now,
	}
	o.handlers = map[Stage]stageHandler{
		StageInit:          o.checkIndexed,
		StageConversion:    o.convert,
		StageVectorization: o.vectorize,
		StageTopics:        o.extractTopics,
		StageArticles:      o.generateArticles,
		StageFinalization:  o.finalize,
	}
	return o
}

// Process runs path through the pipeline. Failures end up in the record,
// the logs and the returned outcome; nothing is returned as an error.
func (o *Orchestrator) Process(ctx context.Context, path string) Result {
	name := filepath.Base(path)
	st := &fileState{
		rec:  newRecord(name, o.now()),
		name: name,
		path: path,
	}
	log := o.log.With(zap.String("file", name), zap.String("file_id", st.rec.FileID))
	o.reporter.Start(name, o.router.Classify(path))

	stage := StageInit
	for stage != StageCompleted {
		t := o.table[stage]
		st.rec.CurrentStep = stage.String()
		o.persist(st.rec, log)
		o.audit.Transition(st.rec.FileID, name, stage.String())
		o.reporter.Stage(name, stage)
		log.Info("stage started", zap.Stringer("stage", stage))

		sctx, cancel := ctx, context.CancelFunc(func() {})
		if t.timeout > 0 {
			sctx, cancel = context.WithTimeout(ctx, t.timeout)
		}
		next, err := o.handlers[stage](sctx, st)
		timedOut := errors.Is(sctx.Err(), context.DeadlineExceeded)
		cancel()

		if err == nil {
			st.rec.StepsCompleted = append(st.rec.StepsCompleted, stage.String())
			if next == stageNone {
				next = t.next
			}
			stage = next
			continue
		}

		if ctx.Err() != nil {
			return o.interrupted(st, stage, log)
		}
		if errors.Is(err, ErrSourceMissing) {
			st.rec.Errors = append(st.rec.Errors, fmt.Sprintf("%s: %v", stage, err))
			o.finish(st, log)
			log.Info("source vanished, skipping", zap.Stringer("stage", stage))
			return Result{Outcome: OutcomeSkipped, Record: st.rec, Path: st.path}
		}

		serr := stageError(stage, t.sentinel, err, timedOut)
		st.rec.Errors = append(st.rec.Errors, serr.Error())
		o.audit.Failure(st.rec.FileID, name, stage.String(), serr)
		o.reporter.StageFailed(name, stage, t.policy, serr)
		log.Error("stage failed", zap.Stringer("stage", stage), zap.Stringer("policy", t.policy), zap.Error(serr))

		switch {
		case t.policy == Recoverable:
			stage = t.next
			continue
		case t.policy == Fatal && st.claimed:
			return o.quarantine(ctx, st, log)
		default:
			o.finish(st, log)
			res := Result{Outcome: OutcomeIncomplete, Record: st.rec, Path: st.path}
			o.reporter.Finished(name, res)
			return res
		}
	}

	st.rec.StepsCompleted = append(st.rec.StepsCompleted, stepCompleted)
	st.rec.CurrentStep = StageCompleted.String()
	st.rec.Success = true
	o.audit.Transition(st.rec.FileID, name, StageCompleted.String())
	o.finish(st, log)

	if o.archiver != nil {
		if err := o.archiver.Archive(ctx, st.rec, st.textPath); err != nil {
			log.Warn("archive failed", zap.Error(err))
		}
	}

	res := Result{Outcome: OutcomeDone, Record: st.rec, Path: st.path}
	o.reporter.Finished(name, res)
	return res
}

func (o *Orchestrator) checkIndexed(ctx context.Context, st *fileState) (Stage, error) {
	found, err := o.index.HasSource(ctx, st.name)
	if err != nil {
		return stageNone, err
	}
	if found {
		st.indexed = true
		o.log.Info("already indexed, moving to done", zap.String("file", st.name))
		return StageFinalization, nil
	}
	return stageNone, nil
}

// convert claims the file into processing/ and produces its text.
func (o *Orchestrator) convert(ctx context.Context, st *fileState) (Stage, error) {
	claimed, err := o.mover.Move(ctx, st.path, o.layout.Processing())
	if err != nil {
		return stageNone, err
	}
	st.path = claimed
	st.claimed = true

	if !o.router.NeedsConversion(claimed) {
		st.textPath = claimed
		return stageNone, nil
	}
	text, err := o.router.Convert(ctx, claimed, o.layout.Converted())
	if err != nil {
		return stageNone, err
	}
	st.textPath = text
	return stageNone, nil
}

func (o *Orchestrator) vectorize(ctx context.Context, st *fileState) (Stage, error) {
	n, err := o.vectorizer.Vectorize(ctx, st.textPath, st.name)
	if err != nil {
		return stageNone, err
	}
	o.log.Info("vectorized", zap.String("file", st.name), zap.Int("chunks", n))
	return stageNone, nil
}

func (o *Orchestrator) extractTopics(ctx context.Context, st *fileState) (Stage, error) {
	n, err := o.topics.Extract(ctx, st.name)
	if err != nil {
		return stageNone, err
	}
	o.log.Info("topics stored", zap.String("file", st.name), zap.Int("topics", n))
	return stageNone, nil
}

func (o *Orchestrator) generateArticles(ctx context.Context, st *fileState) (Stage, error) {
	n, err := o.articles.Generate(ctx, o.articlesPerRun)
	if err != nil {
		return stageNone, err
	}
	o.log.Info("articles created", zap.String("file", st.name), zap.Int("articles", n))
	return stageNone, nil
}

func (o *Orchestrator) finalize(ctx context.Context, st *fileState) (Stage, error) {
	done, err := o.mover.MoveUnique(ctx, st.path, o.layout.Done())
	if err != nil {
		return stageNone, err
	}
	st.path = done
	if st.textPath != "" && filepath.Dir(st.textPath) == o.layout.Processing() {
		st.textPath = done
	}
	return stageNone, nil
}

func (o *Orchestrator) quarantine(ctx context.Context, st *fileState, log *zap.Logger) Result {
	failed, err := o.mover.MoveUnique(ctx, st.path, o.layout.Failed())
	if err != nil {
		st.rec.Errors = append(st.rec.Errors, fmt.Sprintf("quarantine: %v", err))
		log.Error("quarantine failed", zap.Error(err))
		o.finish(st, log)
		res := Result{Outcome: OutcomeIncomplete, Record: st.rec, Path: st.path}
		o.reporter.Finished(st.name, res)
		return res
	}
	st.path = failed
	o.finish(st, log)
	res := Result{Outcome: OutcomeQuarantined, Record: st.rec, Path: failed}
	o.reporter.Finished(st.name, res)
	return res
}

// interrupted leaves the file where it is; the record notes the stage.
func (o *Orchestrator) interrupted(st *fileState, stage Stage, log *zap.Logger) Result {
	st.rec.Errors = append(st.rec.Errors, fmt.Sprintf("%s: %v", stage, ErrInterrupted))
	o.finish(st, log)
	log.Warn("processing interrupted", zap.Stringer("stage", stage))
	return Result{Outcome: OutcomeInterrupted, Record: st.rec, Path: st.path}
}

func (o *Orchestrator) finish(st *fileState, log *zap.Logger) {
	end := o.now()
	st.rec.EndTime = &end
	o.persist(st.rec, log)
}

func (o *Orchestrator) persist(rec *models.ProcessingRecord, log *zap.Logger) {
	if err := o.records.Save(rec); err != nil {
		log.Error("persist record", zap.Error(err))
	}
}

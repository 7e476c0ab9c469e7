package pipeline

import "errors"

// Error taxonomy of the stage pipeline. Stage failures wrap one of these,
// plus ErrTimeout when the stage deadline elapsed.
var (
	ErrSourceMissing     = errors.New("source file missing")
	ErrConversion        = errors.New("conversion failed")
	ErrVectorization     = errors.New("vectorization failed")
	ErrTopicExtraction   = errors.New("topic extraction failed")
	ErrArticleGeneration = errors.New("article generation failed")
	ErrMove              = errors.New("move failed")
	ErrTimeout           = errors.New("stage timed out")
	ErrIndexCheck        = errors.New("index check failed")
	ErrInterrupted       = errors.New("interrupted")

	errDestinationExists = errors.New("destination already exists")
)

package obfuscator

import (
	"errors"
	"fmt"

	"github.com/whit3rabbit/jsmixer/internal/transformer"
)

// Stage names one step of the transformation pipeline.
type Stage string

const (
	StagePreprocess Stage = "preprocess"
	StageParse      Stage = "parse"
	StageNormalize  Stage = "normalize"
	StageInject     Stage = "inject"
	StageEncode     Stage = "encode"
	StageSerialize  Stage = "serialize"
	StageMinify     Stage = "minify"
)

var (
	// ErrEmptyPreprocessResult is returned when the preprocessor turns
	// non-blank input into nothing.
	ErrEmptyPreprocessResult = errors.New("preprocessor returned empty output")

	// ErrInvalidVariableCount is returned for a string variable count below one.
	ErrInvalidVariableCount = transformer.ErrInvalidVariableCount
)

// StageError tags a pipeline failure with the stage it happened in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// runStage runs fn and wraps its error, or a panic raised while walking the
// tree, into a StageError.
func runStage(stage Stage, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &StageError{Stage: stage, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if err := fn(); err != nil {
		var se *StageError
		if errors.As(err, &se) {
			return err
		}
		return &StageError{Stage: stage, Err: err}
	}
	return nil
}

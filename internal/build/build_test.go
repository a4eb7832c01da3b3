package build

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	pipelineerrors "github.com/filecoin-project/forest-snapshot-pipeline/internal/errors"
)

func TestClassify_StructuredErrorKeepsCode(t *testing.T) {
	err := pipelineerrors.New(pipelineerrors.ErrCodeFatal, "boom")
	assert.Equal(t, pipelineerrors.ErrCodeFatal, classify(err))
}

func TestClassify_WrappedStructuredErrorKeepsCode(t *testing.T) {
	err := pipelineerrors.Wrap(pipelineerrors.ErrCodeToolFailure, "run forest-tool", errors.New("exit 1"))
	assert.Equal(t, pipelineerrors.ErrCodeToolFailure, classify(err))
}

func TestClassify_PlainErrorDefaultsToTransient(t *testing.T) {
	assert.Equal(t, pipelineerrors.ErrCodeTransient, classify(errors.New("unexpected")))
}

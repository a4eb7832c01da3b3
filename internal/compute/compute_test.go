package compute

import (
	"testing"

	pipelineerrors "github.com/filecoin-project/forest-snapshot-pipeline/internal/errors"
	"github.com/stretchr/testify/assert"
)

func TestClassify_StructuredErrorReturnsItsCode(t *testing.T) {
	err := pipelineerrors.New(pipelineerrors.ErrCodeReentrant, "locked")
	assert.Equal(t, pipelineerrors.ErrCodeReentrant, classify(err))
}

func TestClassify_PlainErrorDefaultsToTransient(t *testing.T) {
	assert.Equal(t, pipelineerrors.ErrCodeTransient, classify(assertError{}))
}

type assertError struct{}

func (assertError) Error() string { return "boom" }

package objectstore

import (
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
)

func TestIsNotFoundErr(t *testing.T) {
	assert.True(t, isNotFoundErr(&s3.NotFound{}))
	assert.True(t, isNotFoundErr(&s3.NoSuchKey{}))
	assert.False(t, isNotFoundErr(errors.New("some other error")))
}

func TestNewHTTPClient(t *testing.T) {
	c := newHTTPClient()
	assert.NotNil(t, c.Transport)
}

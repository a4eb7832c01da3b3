package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetTotalAndAdvance(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, "upload")

	m.SetTotal(10)
	m.Advance(10)
	m.Advance(10)

	assert.Equal(t, int64(2), m.processed)
}

func TestIncSuccessFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, "build")
	m.IncSuccess()
	m.IncFailure()

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestTrackUpload_PropagatesError(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, "upload")

	wantErr := errors.New("boom")
	err := m.TrackUpload(context.Background(), func(context.Context) error {
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)
}

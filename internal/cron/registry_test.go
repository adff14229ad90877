package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrderAndCopies(t *testing.T) {
	jobA, jobB := &stubJob{name: "a"}, &stubJob{name: "b"}
	registry, err := NewRegistry(jobA, nil, jobB)
	require.NoError(t, err)

	jobs := registry.Jobs()
	require.Equal(t, []Job{jobA, jobB}, jobs)

	jobs[0] = nil
	require.NotNil(t, registry.Jobs()[0])
}

func TestRegistryRejectsBadNames(t *testing.T) {
	_, err := NewRegistry(&stubJob{name: "reoffer"}, &stubJob{name: "reoffer"})
	require.ErrorContains(t, err, "already registered")

	_, err = NewRegistry(&stubJob{name: " "})
	require.ErrorContains(t, err, "no name")
}

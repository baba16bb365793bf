package cron

import (
	"context"
	"testing"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsRegistrationOrder(t *testing.T) {
	jobA := &stubJob{name: "reconcile"}
	jobB := &stubJob{name: "cleanup"}
	registry := NewRegistry(jobA, jobB)
	jobs := registry.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0] != jobA || jobs[1] != jobB {
		t.Fatalf("jobs returned out of order")
	}
	// ensure caller cannot mutate internal slice
	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatalf("internal slice leaked")
	}
}

func TestRegistryIgnoresDuplicateAndInvalidJobs(t *testing.T) {
	first := &stubJob{name: "reconcile"}
	registry := NewRegistry(first)
	registry.Register(&stubJob{name: "reconcile"})
	registry.Register(&stubJob{})
	registry.Register(nil)

	jobs := registry.Jobs()
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job after duplicates, got %d", len(jobs))
	}
	if jobs[0] != first {
		t.Fatalf("duplicate registration replaced the original job")
	}
}

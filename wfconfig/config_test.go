package wfconfig

import "testing"

func TestValidateRequiresRedisAddrForRedisBackend(t *testing.T) {
	cfg := &Config{
		Store:     StoreConfig{Backend: "redis"},
		Execution: ExecutionConfig{MaxParallelSteps: 5},
	}
	if err := validate(cfg); err == nil {
		t.Fatal("expected an error when store.backend is redis without an addr")
	}
}

func TestValidateRequiresPostgresURLForPostgresBackend(t *testing.T) {
	cfg := &Config{
		Store:     StoreConfig{Backend: "postgres"},
		Execution: ExecutionConfig{MaxParallelSteps: 5},
	}
	if err := validate(cfg); err == nil {
		t.Fatal("expected an error when store.backend is postgres without a url")
	}
}

func TestValidateAcceptsMemoryBackend(t *testing.T) {
	cfg := &Config{
		Store:     StoreConfig{Backend: "memory"},
		Execution: ExecutionConfig{MaxParallelSteps: 5},
	}
	if err := validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsNonPositiveMaxParallelSteps(t *testing.T) {
	cfg := &Config{
		Store:     StoreConfig{Backend: "memory"},
		Execution: ExecutionConfig{MaxParallelSteps: 0},
	}
	if err := validate(cfg); err == nil {
		t.Fatal("expected an error when max_parallel_steps is not positive")
	}
}

func TestValidateRequiresAMQPURLWhenEnabled(t *testing.T) {
	cfg := &Config{
		Store:     StoreConfig{Backend: "memory"},
		Execution: ExecutionConfig{MaxParallelSteps: 5},
		Progress:  ProgressConfig{AMQP: AMQPProgressConfig{Enabled: true}},
	}
	if err := validate(cfg); err == nil {
		t.Fatal("expected an error when amqp progress is enabled without a url")
	}
}

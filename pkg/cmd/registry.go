package cmd

import (
	"fmt"
	"log/slog"

	"github.com/venturehq/venture/pkg/jobs/httprequest"
	logjob "github.com/venturehq/venture/pkg/jobs/log"
	"github.com/venturehq/venture/pkg/jobs/sleep"
	"github.com/venturehq/venture/pkg/registry"
)

// NewRegistry builds a registry with the built-in job types registered.
// Embedding applications register their own types on top.
func NewRegistry(logger *slog.Logger) *registry.Registry {
	reg := registry.NewRegistry(logger)

	if err := logjob.Register(reg, logger); err != nil {
		panic(fmt.Errorf("failed to register log job: %w", err))
	}

	if err := httprequest.Register(reg, logger); err != nil {
		panic(fmt.Errorf("failed to register http_request job: %w", err))
	}

	if err := sleep.Register(reg); err != nil {
		panic(fmt.Errorf("failed to register sleep job: %w", err))
	}

	return reg
}

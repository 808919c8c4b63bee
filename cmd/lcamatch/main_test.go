package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rshade/lcamatch/internal/cli"
	"github.com/rshade/lcamatch/internal/lcaerr"
)

func TestRootCommand(t *testing.T) {
	root := cli.NewRootCmd(version)
	assert.Equal(t, "lcamatch", root.Use)
	assert.Equal(t, version, root.Version)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil error returns 0", nil, exitOK},
		{"validation", lcaerr.Validation("bad", "bad input"), exitValidation},
		{"not found", lcaerr.NotFound("project", "p1"), exitNotFound},
		{"wrapped not found", fmt.Errorf("outer: %w", lcaerr.NotFound("material", "m1")), exitNotFound},
		{"upstream", lcaerr.Upstream("kbob", errors.New("timeout")), exitUpstream},
		{"data integrity", lcaerr.DataIntegrity("fraction_sum", "sum %g", 0.5), exitDataIntegrity},
		{"generic error falls through", errors.New("generic error"), exitFailure},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

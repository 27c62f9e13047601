package security_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nimbusai/querycore/pkg/module"
	"github.com/nimbusai/querycore/pkg/security"
)

func TestClassifyCritical(t *testing.T) {
	c := security.New(nil)
	level := c.Classify("code_generation", "please run rm -rf / on the host")
	assert.Equal(t, module.SecurityCritical, level)
	assert.Len(t, c.Events(), 1)
}

func TestClassifyElevated(t *testing.T) {
	c := security.New(nil)
	level := c.Classify("script", "import os and list the directory")
	assert.Equal(t, module.SecurityElevated, level)
	assert.Len(t, c.Events(), 1)
}

func TestClassifyStandardLeavesEventsEmpty(t *testing.T) {
	c := security.New(nil)
	level := c.Classify("chat", "what's the weather like today")
	assert.Equal(t, module.SecurityStandard, level)
	assert.Empty(t, c.Events())
}

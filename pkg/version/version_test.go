package version_test

import (
	"encoding/json"
	"testing"

	// Packages
	version "github.com/mutablelogic/go-intray/pkg/version"
	assert "github.com/stretchr/testify/assert"
	require "github.com/stretchr/testify/require"
)

func Test_Version(t *testing.T) {
	assert.NotEmpty(t, version.Version())

	tag := version.GitTag
	t.Cleanup(func() { version.GitTag = tag })
	version.GitTag = "v1.2.3"
	assert.Equal(t, "v1.2.3", version.Version())
}

func Test_JSON(t *testing.T) {
	var info version.Info
	require.NoError(t, json.Unmarshal(version.JSON("intray"), &info))
	assert.Equal(t, "intray", info.Name)
	assert.Equal(t, version.Version(), info.Version)
	assert.NotEmpty(t, info.Compiler)
}

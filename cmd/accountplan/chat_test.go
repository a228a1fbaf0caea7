package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/accountplan"
	"github.com/hupe1980/accountplan/internal/testutil"
)

func TestChatLoop(t *testing.T) {
	color.NoColor = true
	t.Chdir(t.TempDir())

	reg, _ := testutil.Registry(nil)
	svc, err := accountplan.New(testutil.PipelineModel(), func(o *accountplan.Options) {
		o.Registry = reg
	})
	require.NoError(t, err)

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())

	in := strings.NewReader(strings.Join([]string{
		testutil.Brief,
		"yes",
		"/regen swot lean into healthcare",
		"/regen pricing",
		"/export md",
		"/quit",
	}, "\n"))
	var out bytes.Buffer
	require.NoError(t, chatLoop(cmd, svc, in, &out))

	text := out.String()
	assert.Contains(t, text, "Does this workplan look complete")
	assert.Contains(t, text, "[plan v1")
	assert.Contains(t, text, "🗂️ Account plan ready.")
	assert.Contains(t, text, "Section swot is now at version 2.")
	assert.Contains(t, text, "invalid section")
	assert.Contains(t, text, "Wrote plan-v2.md")

	_, err = os.Stat(filepath.Join(".", "plan-v2.md"))
	assert.NoError(t, err)
}

package weights

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyloop/studyloop/adapter/cli"
	"github.com/studyloop/studyloop/internal/scheduling/application/services"
)

func withTestApp(t *testing.T) *services.PriorityEngine {
	t.Helper()
	engine := services.NewPriorityEngine(services.NewCurveStrategy())
	cli.SetApp(&cli.App{Engine: engine})
	t.Cleanup(func() { cli.SetApp(nil) })
	return engine
}

func TestSetCommand(t *testing.T) {
	t.Run("applies valid weights", func(t *testing.T) {
		engine := withTestApp(t)
		out := &bytes.Buffer{}
		setCmd.SetOut(out)

		err := setCmd.RunE(setCmd, []string{
			"urgency=0.4", "difficulty=0.3", "forgetting=0.2", "productivity=0.1",
		})
		require.NoError(t, err)

		assert.Contains(t, out.String(), "Weights updated.")
		assert.InDelta(t, 0.4, engine.Weights()["urgency"], 0.001)
	})

	t.Run("rejects weights that do not sum to one", func(t *testing.T) {
		engine := withTestApp(t)
		before := engine.Weights()
		setCmd.SetOut(&bytes.Buffer{})

		err := setCmd.RunE(setCmd, []string{
			"urgency=0.5", "difficulty=0.3", "forgetting=0.3", "productivity=0.0",
		})
		require.Error(t, err)
		assert.Equal(t, before, engine.Weights())
	})

	t.Run("rejects malformed arguments", func(t *testing.T) {
		withTestApp(t)
		setCmd.SetOut(&bytes.Buffer{})

		err := setCmd.RunE(setCmd, []string{"urgency"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "component=weight")
	})
}

func TestShowCommand(t *testing.T) {
	withTestApp(t)
	out := &bytes.Buffer{}
	showCmd.SetOut(out)

	err := showCmd.RunE(showCmd, nil)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Strategy: curve")
	assert.Contains(t, out.String(), "urgency")
}

package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReport_MissingDatabaseFlag(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewReportCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"session-1"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
	assert.Contains(t, err.Error(), "db")
}

func TestReport_UnknownSession(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewReportCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--db", filepath.Join(t.TempDir(), "empty.db"), "nope"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "unknown session")
}

func TestReport_InvalidLanguage(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewReportCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--db", filepath.Join(t.TempDir(), "x.db"), "--language", "??", "id"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSessions_Empty(t *testing.T) {
	for _, format := range []string{"text", "json"} {
		t.Run(format, func(t *testing.T) {
			buf := &bytes.Buffer{}
			cmd := NewSessionsCommand(&RootOptions{Format: format})
			cmd.SetOut(buf)
			cmd.SetErr(buf)
			cmd.SetArgs([]string{"--db", filepath.Join(t.TempDir(), "empty.db")})

			require.NoError(t, cmd.Execute())
			if format == "json" {
				assert.Contains(t, buf.String(), `"data": []`)
			} else {
				assert.Equal(t, "No sessions found\n", buf.String())
			}
		})
	}
}

func TestConfig_PrintsEffectiveConfiguration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.cue")
	require.NoError(t, os.WriteFile(path, []byte("samples: 50\nlanguage: \"fr\"\n"), 0644))

	buf := &bytes.Buffer{}
	cmd := NewConfigCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--config", path})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "samples: 50\n")
	assert.Contains(t, buf.String(), "warmup: 10\n")
	assert.Contains(t, buf.String(), "interval: 50ms\n")
	assert.Contains(t, buf.String(), "language: fr\n")
}

func TestConfig_JSON(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewConfigCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), `"samples": 210`)
	assert.Contains(t, buf.String(), `"start_delay": "3s"`)
}

func TestConfig_InvalidProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("smaples: 50\n"), 0644))

	buf := &bytes.Buffer{}
	cmd := NewConfigCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--config", path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

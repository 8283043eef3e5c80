package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"instres/internal/snapshot"
)

const scenarioFile = "../../internal/scenario/testdata/scenarios.toml"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--color", "off", "--trace-level", "off", "--timings=false"}, args...))
	err := rootCmd.Execute()
	require.NoError(t, profileStop())
	profileStop = func() error { return nil }
	traceCleanup()
	traceCleanup = func() {}
	return out.String(), err
}

func TestResolvePretty(t *testing.T) {
	out, err := execute(t, "resolve", "--format", "pretty", "--jobs", "2", scenarioFile)
	require.NoError(t, err)
	require.Contains(t, out, "Array_Operations(Element => Integer, Index => Positive, Array_Type => Int_Array)")
	require.Contains(t, out, "INF2002 (expected)")
	require.Contains(t, out, "shared")
}

func TestResolveJSON(t *testing.T) {
	out, err := execute(t, "resolve", "--format", "json", "--jobs", "1", scenarioFile)
	require.NoError(t, err)
	var got jsonOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Zero(t, got.Failed)
	require.Len(t, got.Results, 7)
	require.Equal(t, []string{"Element", "Index"}, got.Results[0].Inferred)
	require.Equal(t, got.Results[4].Instance, got.Results[5].Instance)
	require.Equal(t, "Proc@3", got.Results[5].Decl)
	require.Equal(t, 2, got.Diagnostics.Count)
}

func TestResolveSarif(t *testing.T) {
	out, err := execute(t, "resolve", "--format", "sarif", "--jobs", "1", scenarioFile)
	require.NoError(t, err)
	var log map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &log))
	require.Equal(t, "2.1.0", log["version"])
	require.Contains(t, out, "REG3001")
}

func TestProfilingFlagsWriteFiles(t *testing.T) {
	dir := t.TempDir()
	cpu := filepath.Join(dir, "cpu.pprof")
	mem := filepath.Join(dir, "mem.pprof")
	_, err := execute(t, "--cpu-profile", cpu, "--mem-profile", mem,
		"resolve", "--format", "json", "--jobs", "1", scenarioFile)
	require.NoError(t, err)
	require.FileExists(t, cpu)
	require.FileExists(t, mem)

	// flags persist on the shared root command
	require.NoError(t, rootCmd.PersistentFlags().Set("cpu-profile", ""))
	require.NoError(t, rootCmd.PersistentFlags().Set("mem-profile", ""))
}

func TestResolveRejectsUnknownFormat(t *testing.T) {
	_, err := execute(t, "resolve", "--format", "xml", scenarioFile)
	require.ErrorContains(t, err, "unsupported format")
}

func TestSnapshotWritesAndShows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.mp")
	out, err := execute(t, "snapshot", "--jobs", "2", "-o", path, scenarioFile)
	require.NoError(t, err)
	require.Contains(t, out, "wrote "+path)

	p, err := snapshot.Read(path)
	require.NoError(t, err)
	require.NotEmpty(t, p.Instances)

	out, err = execute(t, "snapshot", "show", path)
	require.NoError(t, err)
	require.Contains(t, out, "Sort(T => Local)")
}

func TestVersionJSON(t *testing.T) {
	out, err := execute(t, "version", "--format", "json")
	require.NoError(t, err)
	var got versionPayload
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Equal(t, "instres", got.Tool)
}

func TestResolveWithProgress(t *testing.T) {
	t.Cleanup(func() { _ = resolveCmd.Flags().Set("progress", "auto") })
	out, err := execute(t, "resolve", "--progress", "on", "--format", "pretty", "--jobs", "2", scenarioFile)
	require.NoError(t, err)
	require.Contains(t, out, "Sort(T => Local)")
}

func TestResolveRejectsUnknownProgressMode(t *testing.T) {
	t.Cleanup(func() { _ = resolveCmd.Flags().Set("progress", "auto") })
	_, err := execute(t, "resolve", "--format", "pretty", "--progress", "sometimes", scenarioFile)
	require.ErrorContains(t, err, "invalid --progress")
}

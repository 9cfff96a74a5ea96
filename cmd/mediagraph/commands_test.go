package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/thesyncim/mediagraph"
	"github.com/thesyncim/mediagraph/project"
)

func testFactory(t *testing.T) *mediagraph.Factory {
	t.Helper()
	f, err := mediagraph.NewFactory("", mediagraph.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestListProfiles(t *testing.T) {
	var buf bytes.Buffer
	if err := ListProfiles(&buf); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != len(mediagraph.ProfileNames())+1 {
		t.Fatalf("got %d lines for %d profiles", len(lines), len(mediagraph.ProfileNames()))
	}
	if !strings.HasPrefix(lines[0], "NAME") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(buf.String(), "720x576") {
		t.Error("dv_pal size missing")
	}
}

func TestListServices(t *testing.T) {
	repo := testFactory(t).Repository()

	tests := []struct {
		name    string
		args    []string
		want    []string
		notWant []string
		wantErr bool
	}{
		{"all kinds", nil, []string{"producer", "color", "filter", "volume", "transition", "composite", "consumer", "null"}, nil, false},
		{"one kind", []string{"filter"}, []string{"brightness", "gain"}, []string{"composite", "producer"}, false},
		{"descriptor", []string{"filter", "volume"}, []string{"identifier: volume", "default: \"1.0\""}, []string{"KIND"}, false},
		{"unknown kind", []string{"muxer"}, nil, nil, true},
		{"unregistrable kind", []string{"tractor"}, nil, nil, true},
		{"unknown id", []string{"filter", "sharpen"}, nil, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := ListServices(repo, tt.args, &buf)
			if tt.wantErr {
				if err == nil {
					t.Error("ListServices() should fail")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			for _, s := range tt.want {
				if !strings.Contains(buf.String(), s) {
					t.Errorf("output lacks %q:\n%s", s, buf.String())
				}
			}
			for _, s := range tt.notWant {
				if strings.Contains(buf.String(), s) {
					t.Errorf("output contains %q", s)
				}
			}
		})
	}
}

func TestProbe(t *testing.T) {
	f := testFactory(t)
	var buf bytes.Buffer
	if err := Probe(context.Background(), f, "count:3", 5, &buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, s := range []string{"count:3: length 3", "frame 0", "frame 2", "count=2", "image 720x576", "end of stream"} {
		if !strings.Contains(out, s) {
			t.Errorf("output lacks %q:\n%s", s, out)
		}
	}
	if strings.Contains(out, "frame 3") {
		t.Error("probed past the end")
	}

	buf.Reset()
	if err := Probe(context.Background(), f, "color", 1, &buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "length unbounded") {
		t.Errorf("output = %q", buf.String())
	}
	if err := Probe(context.Background(), f, "nope", 1, io.Discard); err == nil {
		t.Error("unknown producer should fail")
	}
}

func TestRunProject(t *testing.T) {
	f := testFactory(t)

	var buf bytes.Buffer
	opts := RunOptions{Set: []string{"consumer.terminate_on_error=1"}}
	if err := RunProject(context.Background(), f, project.DefaultProject(), opts, &buf); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "null: 250 frames") {
		t.Errorf("output = %q", buf.String())
	}

	// An endless producer runs until the timeout.
	endless := project.DefaultProject()
	endless.Producers[0].Out = nil
	buf.Reset()
	start := time.Now()
	err := RunProject(context.Background(), f, endless, RunOptions{Timeout: 100 * time.Millisecond}, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if time.Since(start) < 100*time.Millisecond || !strings.HasPrefix(buf.String(), "null: ") {
		t.Errorf("timeout run output = %q", buf.String())
	}

	dump := filepath.Join(t.TempDir(), "bars.mgd")
	short := project.DefaultProject()
	*short.Producers[0].Out = 2
	if err := RunProject(context.Background(), f, short, RunOptions{Consumer: "dump:" + dump}, io.Discard); err != nil {
		t.Fatal(err)
	}
	if info, err := os.Stat(dump); err != nil || info.Size() == 0 {
		t.Errorf("dump consumer wrote nothing: %v", err)
	}

	tests := []struct {
		name string
		opts RunOptions
	}{
		{"set outside consumer", RunOptions{Set: []string{"producer.length=3"}}},
		{"malformed set", RunOptions{Set: []string{"consumer.realtime"}}},
		{"unknown consumer", RunOptions{Consumer: "screen"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := RunProject(context.Background(), f, project.DefaultProject(), tt.opts, io.Discard); err == nil {
				t.Error("RunProject() should fail")
			}
		})
	}
}

func TestRootCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mediagraph.yaml")
	if err := os.WriteFile(path, []byte("log_level: error\nprofile: qcif_15\n"), 0644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	saved := DefaultOutput
	DefaultOutput = &buf
	t.Cleanup(func() {
		DefaultOutput = saved
		rootCmd.SetArgs(nil)
	})

	rootCmd.SetArgs([]string{"--config", path, "probe", "color:red"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if cfg.Profile != "qcif_15" || cfg.LogLevel != "error" {
		t.Errorf("config = %+v", cfg)
	}
	if !strings.Contains(buf.String(), "image 176x144") {
		t.Errorf("probe did not use the configured profile:\n%s", buf.String())
	}

	rootCmd.SetArgs([]string{"--config", path, "--log-level", "chatty", "profiles"})
	if err := rootCmd.Execute(); err == nil {
		t.Error("invalid --log-level should fail")
	}
}

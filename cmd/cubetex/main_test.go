package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestProbeList(t *testing.T) {
	var probes probeList
	for _, value := range []string{"1,0,0", " -0.5, 2 ,0.25"} {
		if err := probes.Set(value); err != nil {
			t.Fatalf("Set(%q): %v", value, err)
		}
	}
	want := probeList{{1, 0, 0}, {-0.5, 2, 0.25}}
	if len(probes) != len(want) {
		t.Fatalf("probes\nhave %v\nwant %v", probes, want)
	}
	for i := range want {
		if !probes[i].ApproxEqual(want[i]) {
			t.Errorf("probe %d\nhave %v\nwant %v", i, probes[i], want[i])
		}
	}
	if got := probes.String(); got != "1,0,0 -0.5,2,0.25" {
		t.Errorf("String\nhave %q", got)
	}

	for _, bad := range []string{"", "1,2", "1,2,3,4", "x,0,0"} {
		if err := probes.Set(bad); err == nil {
			t.Errorf("Set(%q): expected error", bad)
		}
	}
	if len(probes) != 2 {
		t.Errorf("rejected probes were kept: %v", probes)
	}
}

func TestRunUsage(t *testing.T) {
	for _, x := range [...]struct {
		name string
		args []string
		want string
	}{
		{"missing dir", nil, "-dir is required"},
		{"bad probe", []string{"-dir", "faces", "-probe", "1,2"}, "want x,y,z"},
		{"unknown flag", []string{"-nope"}, "flag provided but not defined"},
	} {
		var stderr bytes.Buffer
		if code := run(x.args, &stderr); code != 2 {
			t.Errorf("%s: exit code\nhave %d\nwant 2", x.name, code)
		}
		if !strings.Contains(stderr.String(), x.want) {
			t.Errorf("%s: output\nhave %q\nwant it to contain %q", x.name, stderr.String(), x.want)
		}
	}
}

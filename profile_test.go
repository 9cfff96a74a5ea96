package mediagraph

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadProfile(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		fps           float64
		progressive   bool
	}{
		{"dv_pal", 720, 576, 25, false},
		{"dv_ntsc", 720, 480, 30000.0 / 1001, false},
		{"atsc_1080p_25", 1920, 1080, 25, true},
		{"hdv_720_50p", 1280, 720, 50, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := LoadProfile(tt.name)
			if err != nil {
				t.Fatalf("LoadProfile() error = %v", err)
			}
			if p.Width() != tt.width || p.Height() != tt.height {
				t.Errorf("size = %dx%d, want %dx%d", p.Width(), p.Height(), tt.width, tt.height)
			}
			if p.FPS() != tt.fps {
				t.Errorf("FPS() = %v, want %v", p.FPS(), tt.fps)
			}
			if p.Progressive() != tt.progressive {
				t.Errorf("Progressive() = %v, want %v", p.Progressive(), tt.progressive)
			}
			if p.Name() != tt.name {
				t.Errorf("Name() = %q, want %q", p.Name(), tt.name)
			}
		})
	}
}

func TestLoadProfile_Default(t *testing.T) {
	t.Setenv(ProfileEnv, "")
	p, err := LoadProfile("")
	if err != nil {
		t.Fatal(err)
	}
	if p.Name() != DefaultProfileName {
		t.Errorf("default profile = %q, want %q", p.Name(), DefaultProfileName)
	}

	t.Setenv(ProfileEnv, "atsc_720p_30")
	p, err = LoadProfile("")
	if err != nil {
		t.Fatal(err)
	}
	if p.Name() != "atsc_720p_30" {
		t.Errorf("env profile = %q, want atsc_720p_30", p.Name())
	}
}

func TestLoadProfile_NotFound(t *testing.T) {
	_, err := LoadProfile("no_such_profile")
	if !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("error = %v, want ErrProfileNotFound", err)
	}
	if KindOf(err) != KindInitialization {
		t.Errorf("KindOf() = %v, want initialization", KindOf(err))
	}
}

func TestNewProfile_Validation(t *testing.T) {
	valid := ProfileConfig{
		FrameRateNum: 25, FrameRateDen: 1, Width: 640, Height: 360,
		SampleAspectNum: 1, SampleAspectDen: 1, DisplayAspectNum: 16, DisplayAspectDen: 9,
	}
	tests := []struct {
		name   string
		mutate func(c *ProfileConfig)
	}{
		{"zero rate den", func(c *ProfileConfig) { c.FrameRateDen = 0 }},
		{"zero rate num", func(c *ProfileConfig) { c.FrameRateNum = 0 }},
		{"zero width", func(c *ProfileConfig) { c.Width = 0 }},
		{"negative height", func(c *ProfileConfig) { c.Height = -1 }},
		{"zero sample aspect den", func(c *ProfileConfig) { c.SampleAspectDen = 0 }},
		{"zero display aspect den", func(c *ProfileConfig) { c.DisplayAspectDen = 0 }},
		{"zero aspect num", func(c *ProfileConfig) { c.DisplayAspectNum = 0 }},
		{"negative rate den", func(c *ProfileConfig) { c.FrameRateDen = -1 }},
		{"sub-nanosecond frames", func(c *ProfileConfig) { c.FrameRateNum, c.FrameRateDen = 2000000000, 1 }},
		{"negative aspect den", func(c *ProfileConfig) { c.SampleAspectDen = -1 }},
	}
	if _, err := NewProfile(valid); err != nil {
		t.Fatalf("NewProfile(valid) error = %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			if _, err := NewProfile(cfg); !errors.Is(err, ErrInvalidProfile) {
				t.Errorf("NewProfile() error = %v, want ErrInvalidProfile", err)
			}
		})
	}
}

func TestProfile_Timing(t *testing.T) {
	p, err := LoadProfile("dv_ntsc")
	if err != nil {
		t.Fatal(err)
	}
	if got, want := p.FrameDuration(), 33366666*time.Nanosecond; got != want {
		t.Errorf("FrameDuration() = %v, want %v", got, want)
	}
	// 30000 frames at 30000/1001 fps is exactly 1001 seconds.
	if got, want := p.Timestamp(30000), int64(1001*time.Second); got != want {
		t.Errorf("Timestamp(30000) = %d, want %d", got, want)
	}
	if got := p.String(); got != "720x480i@30000/1001" {
		t.Errorf("String() = %q", got)
	}
}

func TestProfile_CloneEqual(t *testing.T) {
	p, _ := LoadProfile("dv_pal")
	c := p.Clone()
	if c == p {
		t.Fatal("Clone() returned the same pointer")
	}
	if !p.Equal(c) {
		t.Error("clone should be Equal to the original")
	}
	other, _ := LoadProfile("dv_pal_wide")
	if p.Equal(other) {
		t.Error("different profiles should not be Equal")
	}
	if p.Equal(nil) {
		t.Error("Equal(nil) should be false")
	}
}

func TestLoadProfileFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "square_hd")
	data := "# custom\ndescription=Square HD\nframe_rate_num=30\nframe_rate_den=1\nwidth=1280\nheight=720\nprogressive=1\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadProfileFile(path)
	if err != nil {
		t.Fatalf("LoadProfileFile() error = %v", err)
	}
	if p.Description() != "Square HD" || !p.Progressive() {
		t.Errorf("profile = %+v", p.Config())
	}
	if p.DisplayAspect() != (Rational{1280, 720}) {
		t.Errorf("derived display aspect = %v, want 1280/720", p.DisplayAspect())
	}

	// Paths are accepted by LoadProfile too.
	if _, err := LoadProfile(path); err != nil {
		t.Errorf("LoadProfile(path) error = %v", err)
	}

	bad := filepath.Join(dir, "bad")
	os.WriteFile(bad, []byte("width=0\nheight=0\nframe_rate_num=25\nframe_rate_den=1\n"), 0644)
	if _, err := LoadProfileFile(bad); !errors.Is(err, ErrInvalidProfile) {
		t.Errorf("LoadProfileFile(bad) error = %v, want ErrInvalidProfile", err)
	}
	if _, err := LoadProfileFile(filepath.Join(dir, "missing")); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("LoadProfileFile(missing) error = %v, want ErrProfileNotFound", err)
	}
}

func TestProfileNames(t *testing.T) {
	names := ProfileNames()
	if len(names) != len(builtinProfiles) {
		t.Fatalf("ProfileNames() returned %d names, want %d", len(names), len(builtinProfiles))
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("ProfileNames() not sorted at %d: %q >= %q", i, names[i-1], names[i])
		}
	}
}

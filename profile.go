package mediagraph

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

// Colorspace codes as used in profile files (ITU-R BT numbers).
const (
	Colorspace601  = 601
	Colorspace709  = 709
	Colorspace240  = 240
	Colorspace2020 = 2020
)

// Rational is a num/den pair.
type Rational struct {
	Num int
	Den int
}

// Float returns num/den, or 0 when den is zero.
func (r Rational) Float() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// ProfileConfig holds the fields used to build a Profile.
type ProfileConfig struct {
	Description      string
	FrameRateNum     int
	FrameRateDen     int
	Width            int
	Height           int
	Progressive      bool
	SampleAspectNum  int
	SampleAspectDen  int
	DisplayAspectNum int
	DisplayAspectDen int
	Colorspace       int
}

// Profile describes the output format services are built for. It is
// immutable after construction and safe to share between services.
type Profile struct {
	name string
	cfg  ProfileConfig
}

// NewProfile validates cfg and returns a Profile.
func NewProfile(cfg ProfileConfig) (*Profile, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Profile{cfg: cfg}, nil
}

func (c ProfileConfig) validate() error {
	var problems []string
	if c.FrameRateDen <= 0 {
		problems = append(problems, "frame_rate_den must be positive")
	}
	if c.FrameRateNum <= 0 {
		problems = append(problems, "frame_rate_num must be positive")
	} else if c.FrameRateDen > 0 && int64(time.Second)*int64(c.FrameRateDen)/int64(c.FrameRateNum) < 1 {
		problems = append(problems, fmt.Sprintf("frame rate %d/%d is above one frame per nanosecond", c.FrameRateNum, c.FrameRateDen))
	}
	if c.Width <= 0 || c.Height <= 0 {
		problems = append(problems, fmt.Sprintf("invalid dimensions %dx%d", c.Width, c.Height))
	}
	if c.SampleAspectDen <= 0 {
		problems = append(problems, "sample_aspect_den must be positive")
	}
	if c.DisplayAspectDen <= 0 {
		problems = append(problems, "display_aspect_den must be positive")
	}
	if c.SampleAspectNum <= 0 || c.DisplayAspectNum <= 0 {
		problems = append(problems, "aspect numerators must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidProfile, strings.Join(problems, "; "))
	}
	return nil
}

var builtinProfiles = map[string]ProfileConfig{
	"dv_pal":          {"DV/DVD PAL", 25, 1, 720, 576, false, 16, 15, 4, 3, Colorspace601},
	"dv_pal_wide":     {"DV/DVD Widescreen PAL", 25, 1, 720, 576, false, 64, 45, 16, 9, Colorspace601},
	"dv_ntsc":         {"DV/DVD NTSC", 30000, 1001, 720, 480, false, 8, 9, 4, 3, Colorspace601},
	"dv_ntsc_wide":    {"DV/DVD Widescreen NTSC", 30000, 1001, 720, 480, false, 32, 27, 16, 9, Colorspace601},
	"square_pal":      {"Square PAL", 25, 1, 768, 576, false, 1, 1, 4, 3, Colorspace601},
	"square_ntsc":     {"Square NTSC", 30000, 1001, 640, 480, false, 1, 1, 4, 3, Colorspace601},
	"hdv_720_25p":     {"HD 720p 25 fps", 25, 1, 1280, 720, true, 1, 1, 16, 9, Colorspace709},
	"hdv_720_50p":     {"HD 720p 50 fps", 50, 1, 1280, 720, true, 1, 1, 16, 9, Colorspace709},
	"atsc_720p_25":    {"HD 720p 25 fps", 25, 1, 1280, 720, true, 1, 1, 16, 9, Colorspace709},
	"atsc_720p_2997":  {"HD 720p 29.97 fps", 30000, 1001, 1280, 720, true, 1, 1, 16, 9, Colorspace709},
	"atsc_720p_30":    {"HD 720p 30 fps", 30, 1, 1280, 720, true, 1, 1, 16, 9, Colorspace709},
	"atsc_720p_50":    {"HD 720p 50 fps", 50, 1, 1280, 720, true, 1, 1, 16, 9, Colorspace709},
	"atsc_720p_60":    {"HD 720p 60 fps", 60, 1, 1280, 720, true, 1, 1, 16, 9, Colorspace709},
	"atsc_1080p_24":   {"HD 1080p 24 fps", 24, 1, 1920, 1080, true, 1, 1, 16, 9, Colorspace709},
	"atsc_1080p_25":   {"HD 1080p 25 fps", 25, 1, 1920, 1080, true, 1, 1, 16, 9, Colorspace709},
	"atsc_1080p_2997": {"HD 1080p 29.97 fps", 30000, 1001, 1920, 1080, true, 1, 1, 16, 9, Colorspace709},
	"atsc_1080p_30":   {"HD 1080p 30 fps", 30, 1, 1920, 1080, true, 1, 1, 16, 9, Colorspace709},
	"atsc_1080p_50":   {"HD 1080p 50 fps", 50, 1, 1920, 1080, true, 1, 1, 16, 9, Colorspace709},
	"atsc_1080p_60":   {"HD 1080p 60 fps", 60, 1, 1920, 1080, true, 1, 1, 16, 9, Colorspace709},
	"atsc_1080i_50":   {"HD 1080i 25 fps", 25, 1, 1920, 1080, false, 1, 1, 16, 9, Colorspace709},
	"uhd_2160p_25":    {"UHD 2160p 25 fps", 25, 1, 3840, 2160, true, 1, 1, 16, 9, Colorspace709},
	"uhd_2160p_30":    {"UHD 2160p 30 fps", 30, 1, 3840, 2160, true, 1, 1, 16, 9, Colorspace709},
	"vertical_hd_30":  {"Vertical HD 30 fps", 30, 1, 1080, 1920, true, 1, 1, 9, 16, Colorspace709},
	"cif_15":          {"CIF 15 fps", 15, 1, 352, 288, true, 12, 11, 4, 3, Colorspace601},
	"qcif_15":         {"QCIF 15 fps", 15, 1, 176, 144, true, 12, 11, 4, 3, Colorspace601},
}

// DefaultProfileName is used when LoadProfile is called with an empty name
// and MEDIAGRAPH_PROFILE is unset.
const DefaultProfileName = "dv_pal"

// ProfileEnv names the environment variable consulted for the default profile.
const ProfileEnv = "MEDIAGRAPH_PROFILE"

// LoadProfile returns the built-in profile called name. An empty name
// resolves to $MEDIAGRAPH_PROFILE, then DefaultProfileName. A name that is
// a path to an existing file is loaded with LoadProfileFile.
func LoadProfile(name string) (*Profile, error) {
	if name == "" {
		name = os.Getenv(ProfileEnv)
	}
	if name == "" {
		name = DefaultProfileName
	}
	if cfg, ok := builtinProfiles[name]; ok {
		return &Profile{name: name, cfg: cfg}, nil
	}
	if strings.ContainsRune(name, os.PathSeparator) {
		if _, err := os.Stat(name); err == nil {
			return LoadProfileFile(name)
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrProfileNotFound, name)
}

// ProfileNames lists the built-in profile names in lexical order.
func ProfileNames() []string {
	names := make([]string, 0, len(builtinProfiles))
	for name := range builtinProfiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadProfileFile reads a profile from a text file of name=value lines
// (description, frame_rate_num, frame_rate_den, width, height, progressive,
// sample_aspect_num, sample_aspect_den, display_aspect_num,
// display_aspect_den, colorspace). Blank lines and '#' comments are ignored.
func LoadProfileFile(path string) (*Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProfileNotFound, err)
	}
	defer f.Close()

	props := NewProperties()
	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if err := props.Parse(text); err != nil {
			return nil, fmt.Errorf("%w: %s:%d: %v", ErrInvalidProfile, path, line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProfileNotFound, err)
	}

	cfg := ProfileConfig{
		Description:      props.GetString("description", ""),
		FrameRateNum:     props.GetInt("frame_rate_num"),
		FrameRateDen:     props.GetInt("frame_rate_den"),
		Width:            props.GetInt("width"),
		Height:           props.GetInt("height"),
		Progressive:      props.GetBool("progressive"),
		SampleAspectNum:  props.IntOr("sample_aspect_num", 1),
		SampleAspectDen:  props.IntOr("sample_aspect_den", 1),
		DisplayAspectNum: props.GetInt("display_aspect_num"),
		DisplayAspectDen: props.GetInt("display_aspect_den"),
		Colorspace:       props.IntOr("colorspace", Colorspace601),
	}
	if cfg.DisplayAspectNum == 0 && cfg.DisplayAspectDen == 0 && cfg.Height > 0 {
		cfg.DisplayAspectNum = cfg.Width * cfg.SampleAspectNum
		cfg.DisplayAspectDen = cfg.Height * cfg.SampleAspectDen
	}
	p, err := NewProfile(cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	p.name = path
	return p, nil
}

// Clone returns an independent copy of the profile.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// Name returns the built-in name or file path the profile was loaded from.
func (p *Profile) Name() string { return p.name }

// Config returns a copy of the profile fields.
func (p *Profile) Config() ProfileConfig { return p.cfg }

func (p *Profile) Description() string       { return p.cfg.Description }
func (p *Profile) Width() int                { return p.cfg.Width }
func (p *Profile) Height() int               { return p.cfg.Height }
func (p *Profile) Progressive() bool         { return p.cfg.Progressive }
func (p *Profile) Colorspace() int           { return p.cfg.Colorspace }
func (p *Profile) FrameRate() Rational       { return Rational{p.cfg.FrameRateNum, p.cfg.FrameRateDen} }
func (p *Profile) SampleAspect() Rational    { return Rational{p.cfg.SampleAspectNum, p.cfg.SampleAspectDen} }
func (p *Profile) DisplayAspect() Rational   { return Rational{p.cfg.DisplayAspectNum, p.cfg.DisplayAspectDen} }
func (p *Profile) FPS() float64              { return p.FrameRate().Float() }
func (p *Profile) Equal(other *Profile) bool { return other != nil && p.cfg == other.cfg }

// AspectRatio returns the pixel aspect corrected frame aspect ratio.
func (p *Profile) AspectRatio() float64 {
	return p.SampleAspect().Float() * float64(p.cfg.Width) / float64(p.cfg.Height)
}

// FrameDuration returns the duration of one frame.
func (p *Profile) FrameDuration() time.Duration {
	return time.Duration(int64(time.Second) * int64(p.cfg.FrameRateDen) / int64(p.cfg.FrameRateNum))
}

// Timestamp returns the presentation time of position in nanoseconds.
func (p *Profile) Timestamp(position int) int64 {
	return int64(position) * int64(time.Second) * int64(p.cfg.FrameRateDen) / int64(p.cfg.FrameRateNum)
}

func (p *Profile) String() string {
	scan := "i"
	if p.cfg.Progressive {
		scan = "p"
	}
	return fmt.Sprintf("%dx%d%s@%s", p.cfg.Width, p.cfg.Height, scan, p.FrameRate())
}

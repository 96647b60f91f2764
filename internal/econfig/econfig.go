// Package econfig loads Segmenter and Reassembler flag records from an INI
// file, adapted from the teacher's internal/config package (viper-backed
// Load/loadConfigFile), generalized from the teacher's YAML/capture-agent
// shape to the sectioned INI format used by Segmenter/Reassembler flags.
package econfig

import (
	"os"

	"github.com/spf13/viper"

	"github.com/jlab-hep/e2sar-go/pkg/e2sarerr"
)

// SegmenterFlags mirrors the Segmenter construction flags table: defaults are
// the Go zero-value-safe literals below, applied before LoadINI overlays
// whatever keys are present in the `general`/`control-plane`/`data-plane`
// sections of the INI file.
type SegmenterFlags struct {
	DpV6             bool    `mapstructure:"dpV6"`
	ConnectedSocket  bool    `mapstructure:"connectedSocket"`
	UseCP            bool    `mapstructure:"useCP"`
	WarmUpMs         int     `mapstructure:"warmUpMs"`
	SyncPeriodMs     int     `mapstructure:"syncPeriodMs"`
	SyncPeriods      int     `mapstructure:"syncPeriods"`
	MTU              int     `mapstructure:"mtu"`
	NumSendSockets   int     `mapstructure:"numSendSockets"`
	SndSocketBufSize int     `mapstructure:"sndSocketBufSize"`
	RateGbps         float64 `mapstructure:"rateGbps"`
	MultiPort        bool    `mapstructure:"multiPort"`
	Smooth           bool    `mapstructure:"smooth"`
	Transport        string  `mapstructure:"transport"`
}

// DefaultSegmenterFlags returns the spec.md §4.4 defaults.
func DefaultSegmenterFlags() SegmenterFlags {
	return SegmenterFlags{
		DpV6:             false,
		ConnectedSocket:  true,
		UseCP:            true,
		WarmUpMs:         1000,
		SyncPeriodMs:     1000,
		SyncPeriods:      2,
		MTU:              1500,
		NumSendSockets:   4,
		SndSocketBufSize: 3 * 1024 * 1024,
		RateGbps:         -1,
		MultiPort:        false,
		Smooth:           false,
		Transport:        "plain", // matches pkg/segmenter/transport.PlainName
	}
}

// ReassemblerFlags mirrors the Reassembler construction flags table,
// including the PID gains read from the `pid` INI section.
type ReassemblerFlags struct {
	UseCP            bool    `mapstructure:"useCP"`
	PortRange        int     `mapstructure:"portRange"`
	WithLBHeader     bool    `mapstructure:"withLBHeader"`
	EventTimeoutMs   int     `mapstructure:"eventTimeout_ms"`
	RcvSocketBufSize int     `mapstructure:"rcvSocketBufSize"`
	PeriodMs         int     `mapstructure:"period_ms"`
	EpochMs          int     `mapstructure:"epoch_ms"`
	Kp               float64 `mapstructure:"Kp"`
	Ki               float64 `mapstructure:"Ki"`
	Kd               float64 `mapstructure:"Kd"`
	SetPoint         float64 `mapstructure:"setPoint"`
	Weight           float64 `mapstructure:"weight"`
	MinFactor        float64 `mapstructure:"min_factor"`
	MaxFactor        float64 `mapstructure:"max_factor"`
}

// DefaultReassemblerFlags returns the spec.md §4.5 defaults.
func DefaultReassemblerFlags() ReassemblerFlags {
	return ReassemblerFlags{
		UseCP:            true,
		PortRange:        -1,
		WithLBHeader:     false,
		EventTimeoutMs:   500,
		RcvSocketBufSize: 3 * 1024 * 1024,
		PeriodMs:         100,
		EpochMs:          1000,
		Kp:               0,
		Ki:               0,
		Kd:               0,
		SetPoint:         0,
		Weight:           1,
		MinFactor:        0.5,
		MaxFactor:        2,
	}
}

// section bundles the four INI sections spec.md §6 names, regardless of
// which flags record is being populated; a field absent from all of them
// keeps its Go-side default.
type section struct {
	General      map[string]any
	ControlPlane map[string]any
	DataPlane    map[string]any
	PID          map[string]any
}

func readSections(path string) (section, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("ini")

	if err := v.ReadInConfig(); err != nil {
		return section{}, e2sarerr.Wrapf(e2sarerr.ParseError, "reading ini file %q", err, path)
	}

	get := func(name string) map[string]any {
		sub := v.GetStringMap(name)
		if sub == nil {
			return map[string]any{}
		}
		return sub
	}

	return section{
		General:      get("general"),
		ControlPlane: get("control-plane"),
		DataPlane:    get("data-plane"),
		PID:          get("pid"),
	}, nil
}

func merged(sections ...map[string]any) map[string]any {
	out := map[string]any{}
	for _, s := range sections {
		for k, v := range s {
			out[k] = v
		}
	}
	return out
}

// LoadINI overlays keys found under the `general`, `data-plane` and
// `control-plane` sections of the INI file at path onto f, leaving fields
// with no matching key untouched. Unknown keys are ignored; a missing
// section is treated as empty, not an error.
func (f *SegmenterFlags) LoadINI(path string) error {
	sections, err := readSections(path)
	if err != nil {
		return err
	}
	all := merged(sections.General, sections.DataPlane, sections.ControlPlane)
	return decodeInto(all, f)
}

// LoadINI overlays keys found under `general`, `data-plane`, `control-plane`
// and `pid` onto f.
func (f *ReassemblerFlags) LoadINI(path string) error {
	sections, err := readSections(path)
	if err != nil {
		return err
	}
	all := merged(sections.General, sections.DataPlane, sections.ControlPlane, sections.PID)
	return decodeInto(all, f)
}

func decodeInto(values map[string]any, target any) error {
	v := viper.New()
	for k, val := range values {
		v.Set(k, val)
	}
	if err := v.Unmarshal(target); err != nil {
		return e2sarerr.Wrap(e2sarerr.ParseError, "decoding ini values", err)
	}
	return nil
}

// DefaultURIEnvVar is the environment variable spec.md §6 names for the
// EjfatURI, matching the original's getFromEnv default name.
const DefaultURIEnvVar = "EJFAT_URI"

// URIFromEnv reads envVar (DefaultURIEnvVar if empty) via os.LookupEnv,
// matching the original's getFromEnv(envVar) contract: failure to find the
// variable is a ParameterNotAvailable error, never a panic.
func URIFromEnv(envVar string) (string, error) {
	if envVar == "" {
		envVar = DefaultURIEnvVar
	}
	val, ok := os.LookupEnv(envVar)
	if !ok {
		return "", e2sarerr.Newf(e2sarerr.ParameterNotAvailable, "environment variable %s not set", envVar)
	}
	return val, nil
}

// ConventionalURIFile is the fallback path spec.md §6 documents for
// discovering an EjfatURI when no environment variable is set.
const ConventionalURIFile = "/tmp/ejfat_uri"

// URIFromFile reads and trims whitespace from path (ConventionalURIFile if
// empty).
func URIFromFile(path string) (string, error) {
	if path == "" {
		path = ConventionalURIFile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", e2sarerr.Wrapf(e2sarerr.ParameterNotAvailable, "reading uri file %q", err, path)
	}
	return trimTrailingNewline(string(data)), nil
}

func trimTrailingNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r' || s[len(s)-1] == ' ') {
		s = s[:len(s)-1]
	}
	return s
}

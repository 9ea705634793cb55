// Package config loads the YAML configuration shared by the gnss-drivers
// binaries. Durations are written as float seconds and covariance floors
// as a scalar or a per-axis list, matching the receiver parameter
// conventions the tuning values come from.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ctu-vras/gnss-drivers/fixfilter"
)

// Seconds is a duration written in YAML as a float number of seconds.
type Seconds time.Duration

func (s *Seconds) UnmarshalYAML(value *yaml.Node) error {
	var f float64
	if err := value.Decode(&f); err != nil {
		return err
	}
	if f < 0 {
		return fmt.Errorf("negative duration %g", f)
	}
	*s = Seconds(time.Duration(f * float64(time.Second)))
	return nil
}

// Duration returns the value as a time.Duration.
func (s Seconds) Duration() time.Duration { return time.Duration(s) }

// AxisTriple is a per-axis (east, north, up) value written in YAML as a
// single scalar applying to all three axes or as a three-element list.
type AxisTriple [3]float64

func (a *AxisTriple) UnmarshalYAML(value *yaml.Node) error {
	var scalar float64
	if err := value.Decode(&scalar); err == nil {
		*a = AxisTriple{scalar, scalar, scalar}
		return nil
	}
	var list []float64
	if err := value.Decode(&list); err != nil {
		return err
	}
	if len(list) != 3 {
		return fmt.Errorf("want a scalar or a three-element [east, north, up] list, got %d elements", len(list))
	}
	copy(a[:], list)
	return nil
}

type Config struct {
	MQTT   MQTTConfig   `yaml:"mqtt"`
	Listen ListenConfig `yaml:"listen"`
	Filter FilterConfig `yaml:"filter"`
	Sim    SimConfig    `yaml:"sim"`
	Serial SerialConfig `yaml:"serial"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// TopicPrefix is prepended to every stream topic, e.g. "gnss" gives
	// gnss/fix, gnss/status, gnss/fix_filtered, gnss/quality, gnss/reference.
	TopicPrefix string `yaml:"topic_prefix"`
	// PairingWindow is how long a fix waits for the status record with
	// the same stamp before going down the fallback path.
	PairingWindow Seconds `yaml:"pairing_window"`
}

type ListenConfig struct {
	Metrics string `yaml:"metrics"`
	Web     string `yaml:"web"`
}

// FilterConfig mirrors fixfilter.Config with YAML-friendly field types.
type FilterConfig struct {
	MinFixCov             AxisTriple `yaml:"min_fix_cov"`
	MinFloatCov           AxisTriple `yaml:"min_float_cov"`
	MaxCov                float64    `yaml:"max_cov"`
	MaxVelocity           float64    `yaml:"max_velocity"`
	NonsenseVelocity      float64    `yaml:"nonsense_velocity"`
	AverageCovMultiplier  float64    `yaml:"average_fix_cov_multiplier"`
	DegradedCovMultiplier float64    `yaml:"degraded_fix_cov_multiplier"`
	FixLost               Seconds    `yaml:"fix_lost_duration"`
	Reconvergence         Seconds    `yaml:"fix_reconvergence_duration"`
	MaxCorrectionsAge     Seconds    `yaml:"max_corrections_age"`
	BadSatellites         int        `yaml:"bad_satellites"`
	DegradedSatellites    int        `yaml:"degraded_satellites"`
	AverageSatellites     int        `yaml:"average_satellites"`
	DegradedRatio         float64    `yaml:"degraded_ratio"`
	AverageRatio          float64    `yaml:"average_ratio"`
}

// Tuning converts the YAML form into the filter's own config type.
func (f FilterConfig) Tuning() fixfilter.Config {
	return fixfilter.Config{
		MinFixCov:             [3]float64(f.MinFixCov),
		MinFloatCov:           [3]float64(f.MinFloatCov),
		MaxCov:                f.MaxCov,
		MaxVelocity:           f.MaxVelocity,
		NonsenseVelocity:      f.NonsenseVelocity,
		AverageCovMultiplier:  f.AverageCovMultiplier,
		DegradedCovMultiplier: f.DegradedCovMultiplier,
		FixLost:               f.FixLost.Duration(),
		Reconvergence:         f.Reconvergence.Duration(),
		MaxCorrectionsAge:     f.MaxCorrectionsAge.Duration(),
		BadSatellites:         f.BadSatellites,
		DegradedSatellites:    f.DegradedSatellites,
		AverageSatellites:     f.AverageSatellites,
		DegradedRatio:         f.DegradedRatio,
		AverageRatio:          f.AverageRatio,
	}
}

// SimConfig drives the synthetic producer: a circular walk around a
// centre point with correlated Gaussian noise and optional scripted
// anomalies.
type SimConfig struct {
	CenterLatDeg     float64 `yaml:"center_lat_deg"`
	CenterLonDeg     float64 `yaml:"center_lon_deg"`
	AltM             float64 `yaml:"alt_m"`
	RadiusM          float64 `yaml:"radius_m"`
	SpeedMS          float64 `yaml:"speed_ms"`
	Period           Seconds `yaml:"period"`
	NoiseSigmaM      float64 `yaml:"noise_sigma_m"`
	NoiseCorr        float64 `yaml:"noise_corr"`
	TLEPath          string  `yaml:"tle_path"`
	ElevationMaskDeg float64 `yaml:"elevation_mask_deg"`
	// JumpEvery displaces the track by JumpMetres for JumpFor at that
	// interval; zero disables the anomaly. CorrectionsDropEvery freezes
	// the corrections stamp for CorrectionsDropFor at that interval.
	JumpEvery            Seconds `yaml:"jump_every"`
	JumpFor              Seconds `yaml:"jump_for"`
	JumpMetres           float64 `yaml:"jump_metres"`
	CorrectionsDropEvery Seconds `yaml:"corrections_drop_every"`
	CorrectionsDropFor   Seconds `yaml:"corrections_drop_for"`
}

// SerialConfig points the NMEA bridge at a receiver.
type SerialConfig struct {
	Port string `yaml:"port"`
	Baud uint   `yaml:"baud"`
	// UEREM is the user-equivalent range error in metres used to impute
	// a covariance from HDOP when the receiver sends no GST sentence.
	UEREM float64 `yaml:"uere_m"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	var cfg Config
	applyDefaults(&cfg)
	return cfg
}

// Load reads a YAML config file, fills defaults for everything unset and
// validates the result.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	applyDefaults(&cfg)
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.MQTT.Broker == "" {
		cfg.MQTT.Broker = "tcp://127.0.0.1:1883"
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "gnss"
	}
	if cfg.MQTT.PairingWindow <= 0 {
		cfg.MQTT.PairingWindow = Seconds(250 * time.Millisecond)
	}
	if cfg.Listen.Metrics == "" {
		cfg.Listen.Metrics = ":9090"
	}
	if cfg.Listen.Web == "" {
		cfg.Listen.Web = ":8080"
	}

	def := fixfilter.DefaultConfig()
	f := &cfg.Filter
	if f.MinFixCov == (AxisTriple{}) {
		f.MinFixCov = AxisTriple(def.MinFixCov)
	}
	if f.MinFloatCov == (AxisTriple{}) {
		f.MinFloatCov = AxisTriple(def.MinFloatCov)
	}
	if f.MaxCov == 0 {
		f.MaxCov = def.MaxCov
	}
	if f.MaxVelocity == 0 {
		f.MaxVelocity = def.MaxVelocity
	}
	// NonsenseVelocity keeps its zero: the filter derives it from
	// MaxVelocity when unset.
	if f.AverageCovMultiplier == 0 {
		f.AverageCovMultiplier = def.AverageCovMultiplier
	}
	if f.DegradedCovMultiplier == 0 {
		f.DegradedCovMultiplier = def.DegradedCovMultiplier
	}
	if f.FixLost == 0 {
		f.FixLost = Seconds(def.FixLost)
	}
	if f.Reconvergence == 0 {
		f.Reconvergence = Seconds(def.Reconvergence)
	}
	if f.MaxCorrectionsAge == 0 {
		f.MaxCorrectionsAge = Seconds(def.MaxCorrectionsAge)
	}
	if f.BadSatellites == 0 {
		f.BadSatellites = def.BadSatellites
	}
	if f.DegradedSatellites == 0 {
		f.DegradedSatellites = def.DegradedSatellites
	}
	if f.AverageSatellites == 0 {
		f.AverageSatellites = def.AverageSatellites
	}
	if f.DegradedRatio == 0 {
		f.DegradedRatio = def.DegradedRatio
	}
	if f.AverageRatio == 0 {
		f.AverageRatio = def.AverageRatio
	}

	s := &cfg.Sim
	if s.CenterLatDeg == 0 && s.CenterLonDeg == 0 {
		s.CenterLatDeg, s.CenterLonDeg = 50.0765, 14.4180
	}
	if s.AltM == 0 {
		s.AltM = 290
	}
	if s.RadiusM == 0 {
		s.RadiusM = 50
	}
	if s.SpeedMS == 0 {
		s.SpeedMS = 1.0
	}
	if s.Period <= 0 {
		s.Period = Seconds(time.Second)
	}
	if s.NoiseSigmaM == 0 {
		s.NoiseSigmaM = 0.02
	}
	if s.NoiseCorr == 0 {
		s.NoiseCorr = 0.3
	}
	if s.ElevationMaskDeg == 0 {
		s.ElevationMaskDeg = 10
	}
	if s.JumpMetres == 0 {
		s.JumpMetres = 25
	}
	if s.JumpFor == 0 {
		s.JumpFor = Seconds(5 * time.Second)
	}
	if s.CorrectionsDropFor == 0 {
		s.CorrectionsDropFor = Seconds(15 * time.Second)
	}

	if cfg.Serial.Port == "" {
		cfg.Serial.Port = "/dev/ttyUSB0"
	}
	if cfg.Serial.Baud == 0 {
		cfg.Serial.Baud = 9600
	}
	if cfg.Serial.UEREM == 0 {
		cfg.Serial.UEREM = 5.0
	}
}

func validate(cfg Config) error {
	tuning := cfg.Filter.Tuning()
	if tuning.NonsenseVelocity == 0 {
		tuning.NonsenseVelocity = 3 * tuning.MaxVelocity
	}
	if err := tuning.Validate(); err != nil {
		return fmt.Errorf("filter: %w", err)
	}

	if cfg.Sim.NoiseCorr <= -1 || cfg.Sim.NoiseCorr >= 1 {
		return fmt.Errorf("sim.noise_corr must lie in (-1, 1), got %g", cfg.Sim.NoiseCorr)
	}
	if m := cfg.Sim.ElevationMaskDeg; m < -90 || m > 90 {
		return fmt.Errorf("sim.elevation_mask_deg must lie in [-90, 90], got %g", m)
	}
	if cfg.Sim.RadiusM < 0 {
		return fmt.Errorf("sim.radius_m must not be negative, got %g", cfg.Sim.RadiusM)
	}
	if cfg.Serial.UEREM <= 0 {
		return fmt.Errorf("serial.uere_m must be positive, got %g", cfg.Serial.UEREM)
	}
	return nil
}

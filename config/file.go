package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/nanoncore/nano-ctlplane/logging"
	"github.com/nanoncore/nano-ctlplane/types"
)

// Setting keys understood by the control plane
const (
	KeyRouterTimeout       = "router.timeout"
	KeyRouterProtocol      = "router.protocol"
	KeyRouterTLSSkipVerify = "router.tls_skip_verify"
	KeySNMPTimeout         = "snmp.timeout"
	KeySNMPRetries         = "snmp.retries"
	KeySNMPCommunity       = "snmp.community"
	KeySNMPVersion         = "snmp.version"
	KeyCoATimeout          = "coa.timeout"
	KeyCoAPort             = "coa.port"
	KeyCoASecret           = "coa.secret"
	KeyRadiusSecret        = "radius.secret"
)

// File is the on-disk deployment configuration
type File struct {
	Log      logging.Config    `toml:"log"`
	Settings map[string]string `toml:"settings"`
	Routers  []RouterEntry     `toml:"routers"`
	Olts     []OltEntry        `toml:"olts"`
	Radius   RadiusEntry       `toml:"radius"`
}

// RouterEntry is one [[routers]] table
type RouterEntry struct {
	ID            string `toml:"id"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Username      string `toml:"username"`
	Password      string `toml:"password"`
	Protocol      string `toml:"protocol"`
	TLSSkipVerify bool   `toml:"tls_skip_verify"`
	Timeout       string `toml:"timeout"`
	Default       bool   `toml:"default"`
}

// OltEntry is one [[olts]] table
type OltEntry struct {
	ID        string `toml:"id"`
	Host      string `toml:"host"`
	Community string `toml:"community"`
	Version   string `toml:"version"`
	Port      int    `toml:"port"`
	Vendor    string `toml:"vendor"`
	Timeout   string `toml:"timeout"`
	Retries   *int   `toml:"retries"`
}

// RadiusEntry holds CoA defaults
type RadiusEntry struct {
	CoAPort int    `toml:"coa_port"`
	Secret  string `toml:"secret"`
	Timeout string `toml:"timeout"`
}

// Load reads and decodes a TOML configuration file
func Load(path string) (*File, error) {
	var f File
	meta, err := toml.DecodeFile(path, &f)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	f.applyDefaults(meta)
	return &f, nil
}

// Parse decodes TOML configuration from a string
func Parse(data string) (*File, error) {
	var f File
	meta, err := toml.Decode(data, &f)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	f.applyDefaults(meta)
	return &f, nil
}

func (f *File) applyDefaults(meta toml.MetaData) {
	if f.Settings == nil {
		f.Settings = map[string]string{}
	}
	if !meta.IsDefined("radius", "coa_port") || f.Radius.CoAPort == 0 {
		f.Radius.CoAPort = GetInt(f.SettingsProvider(), KeyCoAPort, types.DefaultCoAPort)
	}
	if f.Radius.Secret == "" {
		f.Radius.Secret = First(f.SettingsProvider(), "", KeyCoASecret, KeyRadiusSecret)
	}
	if !meta.IsDefined("log", "level") {
		f.Log.Level = logging.DefaultConfig().Level
	}
}

// SettingsProvider exposes the [settings] table
func (f *File) SettingsProvider() Settings {
	return MapSettings(f.Settings)
}

// RouterProfiles converts [[routers]] entries, filling gaps from settings
func (f *File) RouterProfiles() ([]types.RouterProfile, error) {
	s := f.SettingsProvider()
	defTimeout := GetDuration(s, KeyRouterTimeout, 10*time.Second)
	defProtocol := s.Get(KeyRouterProtocol, string(types.ProtocolAPI))
	defSkipVerify := GetBool(s, KeyRouterTLSSkipVerify, false)

	profiles := make([]types.RouterProfile, 0, len(f.Routers))
	for i, r := range f.Routers {
		id := strings.TrimSpace(r.ID)
		if id == "" {
			return nil, fmt.Errorf("routers[%d]: id is required", i)
		}
		timeout, err := parseDuration(r.Timeout, defTimeout)
		if err != nil {
			return nil, fmt.Errorf("routers[%d] %s: parse timeout: %w", i, id, err)
		}
		protocol := r.Protocol
		if protocol == "" {
			protocol = defProtocol
		}
		profiles = append(profiles, types.RouterProfile{
			ID:            id,
			Host:          strings.TrimSpace(r.Host),
			Port:          r.Port,
			Username:      r.Username,
			Password:      r.Password,
			Protocol:      types.Protocol(strings.ToLower(protocol)),
			TLSSkipVerify: r.TLSSkipVerify || defSkipVerify,
			Timeout:       timeout,
			Default:       r.Default,
		})
	}
	return profiles, nil
}

// OltProfiles converts [[olts]] entries, filling gaps from settings
func (f *File) OltProfiles() ([]types.OltProfile, error) {
	s := f.SettingsProvider()
	defTimeout := GetDuration(s, KeySNMPTimeout, 5*time.Second)
	defRetries := GetInt(s, KeySNMPRetries, 1)
	defCommunity := s.Get(KeySNMPCommunity, "public")
	defVersion := s.Get(KeySNMPVersion, string(types.SNMPv2c))

	profiles := make([]types.OltProfile, 0, len(f.Olts))
	for i, o := range f.Olts {
		id := strings.TrimSpace(o.ID)
		if id == "" {
			return nil, fmt.Errorf("olts[%d]: id is required", i)
		}
		timeout, err := parseDuration(o.Timeout, defTimeout)
		if err != nil {
			return nil, fmt.Errorf("olts[%d] %s: parse timeout: %w", i, id, err)
		}
		retries := defRetries
		if o.Retries != nil {
			retries = *o.Retries
		}
		p := types.OltProfile{
			ID:        id,
			Host:      strings.TrimSpace(o.Host),
			Community: o.Community,
			Version:   types.SNMPVersion(o.Version),
			Port:      o.Port,
			Vendor:    types.Vendor(strings.ToLower(strings.TrimSpace(o.Vendor))),
			Timeout:   timeout,
			Retries:   retries,
		}
		if p.Community == "" {
			p.Community = defCommunity
		}
		if p.Version == "" {
			p.Version = types.SNMPVersion(defVersion)
		}
		if p.Port == 0 {
			p.Port = 161
		}
		if p.Vendor == "" {
			p.Vendor = types.VendorGeneric
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// CoATimeout returns the configured disconnect deadline
func (f *File) CoATimeout() time.Duration {
	d, err := parseDuration(f.Radius.Timeout, GetDuration(f.SettingsProvider(), KeyCoATimeout, 5*time.Second))
	if err != nil {
		return 5 * time.Second
	}
	return d
}

func parseDuration(raw string, def time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	return time.ParseDuration(raw)
}

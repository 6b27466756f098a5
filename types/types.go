package types

import (
	"fmt"
	"time"
)

// Protocol represents the management transport used to reach a router
type Protocol string

const (
	ProtocolAPI    Protocol = "api"     // RouterOS API, plain TCP
	ProtocolAPISSL Protocol = "api-ssl" // RouterOS API over TLS
	ProtocolSSH    Protocol = "ssh"     // RouterOS CLI over SSH
	ProtocolMock   Protocol = "mock"    // In-memory simulated router
)

// Vendor is the OLT vendor tag selecting an OID schema
type Vendor string

const (
	VendorGeneric   Vendor = "generic"
	VendorZTE       Vendor = "zte"
	VendorHuawei    Vendor = "huawei"
	VendorFiberHome Vendor = "fiberhome"
	VendorVSOL      Vendor = "vsol"
	VendorCData     Vendor = "cdata" // C-Data EPON OLTs (FD1104S, FD1208S series)
)

// SNMPVersion is the SNMP protocol version spoken to an OLT
type SNMPVersion string

const (
	SNMPv1  SNMPVersion = "1"
	SNMPv2c SNMPVersion = "2c"
)

// RouterProfile describes how to reach one access router.
// Profiles are immutable once loaded into the registry.
type RouterProfile struct {
	// ID is the unique identifier for this router
	ID string

	// Host is the management IP/hostname
	Host string

	// Port is the management port (0 selects the protocol default)
	Port int

	// Username for authentication
	Username string

	// Password for authentication
	Password string

	// Protocol is the management transport
	Protocol Protocol

	// TLSSkipVerify skips certificate verification for api-ssl
	TLSSkipVerify bool

	// Timeout bounds dialing and each exchange
	Timeout time.Duration

	// Default marks the profile selected when no router id is given
	Default bool
}

// Address returns host:port for the profile
func (p RouterProfile) Address(defaultPort int) string {
	port := p.Port
	if port == 0 {
		port = defaultPort
	}
	return fmt.Sprintf("%s:%d", p.Host, port)
}

// Validate checks the fields required before any I/O
func (p RouterProfile) Validate() error {
	if p.Host == "" {
		return &ValidationError{Field: "host"}
	}
	if p.Username == "" {
		return &ValidationError{Field: "username"}
	}
	return nil
}

// OltProfile describes how to reach one OLT over SNMP
type OltProfile struct {
	// ID is the unique identifier for this OLT
	ID string

	// Host is the management IP/hostname
	Host string

	// Community is the SNMP community string
	Community string

	// Version is the SNMP version (1 or 2c)
	Version SNMPVersion

	// Port is the SNMP agent port (default 161)
	Port int

	// Vendor selects the OID schema used for terminal discovery
	Vendor Vendor

	// Timeout per SNMP exchange
	Timeout time.Duration

	// Retries per SNMP exchange
	Retries int
}

// OnuStatus is the normalized ONU operational state
type OnuStatus string

const (
	OnuOnline  OnuStatus = "online"
	OnuOffline OnuStatus = "offline"
	OnuLOS     OnuStatus = "los" // loss of signal
)

// OnuRecord is one subscriber terminal discovered on an OLT
type OnuRecord struct {
	// Index is the ONU id on its PON port
	Index int `json:"index"`

	// PortIndex is the owning PON port index from the SNMP table index
	PortIndex int `json:"port_index"`

	// Status is the decoded operational state
	Status OnuStatus `json:"status"`

	// RawStatus is the vendor status code as read
	RawStatus int `json:"raw_status"`

	// RxPowerDBm is the receive power, nil when unreadable
	RxPowerDBm *float64 `json:"rx_power_dbm,omitempty"`

	// DistanceM is the fiber distance in meters, nil when unreadable
	DistanceM *int `json:"distance_m,omitempty"`

	// Vendor is the display label of the OLT vendor
	Vendor string `json:"vendor"`
}

// PortInfo is a PON line port discovered from IF-MIB
type PortInfo struct {
	Index  int    `json:"index"`
	Name   string `json:"name"`
	Status string `json:"status"` // "up" or "down"
}

// Uptime is a sysUpTime value broken into display units
type Uptime struct {
	Ticks   uint32 `json:"ticks"`
	Days    int    `json:"days"`
	Hours   int    `json:"hours"`
	Minutes int    `json:"minutes"`
}

// String renders the uptime as "Xd Yh Zm"
func (u Uptime) String() string {
	return fmt.Sprintf("%dd %dh %dm", u.Days, u.Hours, u.Minutes)
}

// DeviceInfo is the system identity of an OLT.
// Missing values are filled with placeholder strings, never left empty.
type DeviceInfo struct {
	Description string `json:"description"`
	Name        string `json:"name"`
	Location    string `json:"location"`
	Uptime      string `json:"uptime"`
	UptimeParts Uptime `json:"uptime_parts"`
}

// PortTraffic holds the octet counters for one port
type PortTraffic struct {
	Port      PortInfo `json:"port"`
	InOctets  uint64   `json:"in_octets"`
	OutOctets uint64   `json:"out_octets"`
	// HighCapacity is true when the 64-bit counters were used
	HighCapacity bool   `json:"high_capacity"`
	Error        string `json:"error,omitempty"`
}

// OltStats aggregates identity, ports and per-port traffic for one OLT
type OltStats struct {
	Device    DeviceInfo    `json:"device"`
	Ports     []PortTraffic `json:"ports"`
	PortsUp   int           `json:"ports_up"`
	PortsDown int           `json:"ports_down"`
	PolledAt  time.Time     `json:"polled_at"`
}

// Result is the structured outcome of an inventory operation.
// Inventory calls never return transport errors; they report them here.
type Result[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Message string `json:"message,omitempty"`
}

// OK builds a successful result
func OK[T any](data T) Result[T] {
	return Result[T]{Success: true, Data: data}
}

// Fail builds a failed result carrying a message
func Fail[T any](format string, args ...interface{}) Result[T] {
	return Result[T]{Success: false, Message: fmt.Sprintf(format, args...)}
}

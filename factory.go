package ctlplane

import (
	"fmt"

	"github.com/nanoncore/nano-ctlplane/drivers/cli"
	"github.com/nanoncore/nano-ctlplane/drivers/mock"
	"github.com/nanoncore/nano-ctlplane/drivers/routeros"
)

// TransportMatrix defines how each router protocol tag is reached
var TransportMatrix = map[Protocol]TransportCapabilities{
	ProtocolAPI: {
		DefaultPort: routeros.DefaultAPIPort,
		TLS:         false,
		Interactive: false,
	},
	ProtocolAPISSL: {
		DefaultPort: routeros.DefaultAPISSLPort,
		TLS:         true,
		Interactive: false,
	},
	ProtocolSSH: {
		DefaultPort: cli.DefaultPort,
		TLS:         false,
		Interactive: true,
	},
	ProtocolMock: {
		DefaultPort: 0,
	},
}

// TransportCapabilities describes one router transport
type TransportCapabilities struct {
	DefaultPort int
	TLS         bool
	// Interactive transports drive a console and parse its output
	Interactive bool
}

// NewRouterTransport returns the dialer for a router profile's protocol.
// An empty protocol selects the plain API.
func NewRouterTransport(profile RouterProfile) (routeros.Dialer, error) {
	protocol := profile.Protocol
	if protocol == "" {
		protocol = ProtocolAPI
	}
	caps, ok := TransportMatrix[protocol]
	if !ok {
		return nil, fmt.Errorf("router %s: unsupported protocol: %s", profile.ID, protocol)
	}

	switch protocol {
	case ProtocolAPI, ProtocolAPISSL:
		return routeros.NewAPIDialer(caps.TLS), nil
	case ProtocolSSH:
		return cli.Dial, nil
	case ProtocolMock:
		// one simulated router per profile, kept for the worker's lifetime
		return mock.NewRouter(profile.ID).Dial, nil
	default:
		return nil, fmt.Errorf("router %s: transport not implemented: %s", profile.ID, protocol)
	}
}

// GetSupportedProtocols returns every router protocol tag
func GetSupportedProtocols() []Protocol {
	protocols := make([]Protocol, 0, len(TransportMatrix))
	for p := range TransportMatrix {
		protocols = append(protocols, p)
	}
	return protocols
}

// GetTransportCapabilities returns the capabilities of a protocol tag
func GetTransportCapabilities(protocol Protocol) (TransportCapabilities, bool) {
	caps, ok := TransportMatrix[protocol]
	return caps, ok
}

// Package snmp provides request-scoped SNMP v1/v2c sessions for OLT polling.
// Sessions are never cached: open one per logical request and close it on
// every return path.
package snmp

import (
	"context"
	"fmt"
	"time"

	"github.com/gosnmp/gosnmp"
	"github.com/nanoncore/nano-ctlplane/types"
	"github.com/nanoncore/nano-ctlplane/vendors/common"
)

const (
	DefaultPort    = 161
	DefaultTimeout = 5 * time.Second
	DefaultRetries = 1
)

// Session is one open SNMP session
type Session interface {
	Get(oids []string) (*gosnmp.SnmpPacket, error)
	Walk(root string, fn gosnmp.WalkFunc) error
	Close() error
}

// Dialer opens a session to an OLT
type Dialer func(ctx context.Context, profile types.OltProfile) (Session, error)

type session struct {
	snmp *gosnmp.GoSNMP
}

// Dial connects a gosnmp client for the profile.
// v2c subtrees are walked with GETBULK, v1 with GETNEXT.
func Dial(ctx context.Context, profile types.OltProfile) (Session, error) {
	if profile.Host == "" {
		return nil, &types.ValidationError{Field: "host"}
	}

	version := gosnmp.Version2c
	switch profile.Version {
	case types.SNMPv1:
		version = gosnmp.Version1
	case types.SNMPv2c, "":
	default:
		return nil, fmt.Errorf("unsupported SNMP version %q", profile.Version)
	}

	port := profile.Port
	if port <= 0 || port > 65535 {
		port = DefaultPort
	}
	timeout := profile.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	retries := profile.Retries
	if retries < 0 {
		retries = DefaultRetries
	}
	community := profile.Community
	if community == "" {
		community = "public"
	}

	client := &gosnmp.GoSNMP{
		Context:        ctx,
		Target:         profile.Host,
		Port:           uint16(port), //nolint:gosec // validated above
		Community:      community,
		Version:        version,
		Timeout:        timeout,
		Retries:        retries,
		MaxRepetitions: 50,
		MaxOids:        gosnmp.MaxOids,
	}

	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("%w: snmp connect %s: %v", types.ErrConnection, profile.Host, err)
	}

	return &session{snmp: client}, nil
}

func (s *session) Get(oids []string) (*gosnmp.SnmpPacket, error) {
	return s.snmp.Get(oids)
}

func (s *session) Walk(root string, fn gosnmp.WalkFunc) error {
	if s.snmp.Version == gosnmp.Version1 {
		return s.snmp.Walk(root, fn)
	}
	return s.snmp.BulkWalk(root, fn)
}

func (s *session) Close() error {
	if s.snmp.Conn == nil {
		return nil
	}
	return s.snmp.Conn.Close()
}

// Varbind is one decoded (oid, value) pair
type Varbind struct {
	// OID without the leading dot
	OID string

	// Index is the OID suffix after the walked root
	Index string

	Type gosnmp.Asn1BER

	// Value is the decoded value: string, int64 or uint64
	Value interface{}

	// Text is the payload rendered as text for display fields
	Text string
}

// skippable reports the per-entry exception types a walk tolerates
func skippable(t gosnmp.Asn1BER) bool {
	switch t {
	case gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.EndOfMibView, gosnmp.Null:
		return true
	}
	return false
}

// GetScalars fetches oids in one batch, keyed by OID without the leading dot.
// Binary payloads are decoded by width; exception varbinds are omitted.
func GetScalars(sess Session, oids []string) (map[string]Varbind, error) {
	pkt, err := sess.Get(oids)
	if err != nil {
		return nil, fmt.Errorf("snmp get: %w", err)
	}
	if pkt == nil {
		return map[string]Varbind{}, nil
	}
	if pkt.Error != gosnmp.NoError {
		return nil, fmt.Errorf("snmp get: agent error %s", pkt.Error)
	}

	out := make(map[string]Varbind, len(pkt.Variables))
	for _, pdu := range pkt.Variables {
		if skippable(pdu.Type) {
			continue
		}
		oid := common.TrimOIDDot(pdu.Name)
		out[oid] = Varbind{
			OID:   oid,
			Type:  pdu.Type,
			Value: DecodeValue(pdu, false),
			Text:  textOf(pdu),
		}
	}
	return out, nil
}

// WalkSubtree collects the varbinds under root. Entries carrying an SNMP
// exception are counted in skipped and do not stop the traversal.
// On a transport error the entries read so far are returned with the error.
func WalkSubtree(sess Session, root string) ([]Varbind, int, error) {
	var (
		out     []Varbind
		skipped int
	)
	err := sess.Walk(root, func(pdu gosnmp.SnmpPDU) error {
		if skippable(pdu.Type) {
			skipped++
			return nil
		}
		index, ok := common.OIDSuffix(pdu.Name, root)
		if !ok {
			skipped++
			return nil
		}
		out = append(out, Varbind{
			OID:   common.TrimOIDDot(pdu.Name),
			Index: index,
			Type:  pdu.Type,
			Value: DecodeValue(pdu, true),
			Text:  textOf(pdu),
		})
		return nil
	})
	if err != nil {
		return out, skipped, fmt.Errorf("snmp walk %s: %w", root, err)
	}
	return out, skipped, nil
}

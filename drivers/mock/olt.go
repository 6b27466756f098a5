package mock

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/gosnmp/gosnmp"

	"github.com/nanoncore/nano-ctlplane/drivers/snmp"
	"github.com/nanoncore/nano-ctlplane/types"
)

// OLT simulates an SNMP agent with a fixed MIB view
type OLT struct {
	mu       sync.Mutex
	pdus     map[string]gosnmp.SnmpPDU
	dialErr  error
	getErr   error
	walkErrs map[string]error
	opened   int
	closed   int
	gets     [][]string
}

// NewOLT creates an empty simulated agent
func NewOLT() *OLT {
	return &OLT{
		pdus:     make(map[string]gosnmp.SnmpPDU),
		walkErrs: make(map[string]error),
	}
}

// Set stores a varbind. The returned OLT allows chaining.
func (o *OLT) Set(oid string, typ gosnmp.Asn1BER, value interface{}) *OLT {
	o.mu.Lock()
	defer o.mu.Unlock()
	oid = strings.TrimPrefix(oid, ".")
	o.pdus[oid] = gosnmp.SnmpPDU{Name: "." + oid, Type: typ, Value: value}
	return o
}

// FailDial makes every dial fail with err
func (o *OLT) FailDial(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dialErr = err
}

// FailGet makes every GET fail with err
func (o *OLT) FailGet(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.getErr = err
}

// FailWalk makes walks of root fail with err after returning its entries
func (o *OLT) FailWalk(root string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.walkErrs[strings.TrimPrefix(root, ".")] = err
}

// Sessions returns how many sessions were opened and closed
func (o *OLT) Sessions() (opened, closed int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opened, o.closed
}

// Gets returns the OID batches requested with GET, in order
func (o *OLT) Gets() [][]string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([][]string, len(o.gets))
	copy(out, o.gets)
	return out
}

// Dial implements snmp.Dialer
func (o *OLT) Dial(ctx context.Context, p types.OltProfile) (snmp.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.dialErr != nil {
		return nil, o.dialErr
	}
	o.opened++
	return &oltSession{olt: o}, nil
}

type oltSession struct {
	olt    *OLT
	closed bool
}

func (s *oltSession) Get(oids []string) (*gosnmp.SnmpPacket, error) {
	o := s.olt
	o.mu.Lock()
	defer o.mu.Unlock()

	o.gets = append(o.gets, append([]string(nil), oids...))
	if o.getErr != nil {
		return nil, o.getErr
	}
	pkt := &gosnmp.SnmpPacket{}
	for _, oid := range oids {
		oid = strings.TrimPrefix(oid, ".")
		pdu, ok := o.pdus[oid]
		if !ok {
			pdu = gosnmp.SnmpPDU{Name: "." + oid, Type: gosnmp.NoSuchObject}
		}
		pkt.Variables = append(pkt.Variables, pdu)
	}
	return pkt, nil
}

func (s *oltSession) Walk(root string, fn gosnmp.WalkFunc) error {
	o := s.olt
	root = strings.TrimPrefix(root, ".")

	o.mu.Lock()
	var pdus []gosnmp.SnmpPDU
	for oid, pdu := range o.pdus {
		if strings.HasPrefix(oid, root+".") {
			pdus = append(pdus, pdu)
		}
	}
	walkErr := o.walkErrs[root]
	o.mu.Unlock()

	sort.Slice(pdus, func(i, j int) bool { return oidLess(pdus[i].Name, pdus[j].Name) })
	for _, pdu := range pdus {
		if err := fn(pdu); err != nil {
			return err
		}
	}
	return walkErr
}

func (s *oltSession) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.olt.mu.Lock()
	s.olt.closed++
	s.olt.mu.Unlock()
	return nil
}

// oidLess orders OIDs arc by arc numerically
func oidLess(a, b string) bool {
	pa := strings.Split(strings.TrimPrefix(a, "."), ".")
	pb := strings.Split(strings.TrimPrefix(b, "."), ".")
	for i := 0; i < len(pa) && i < len(pb); i++ {
		na, _ := strconv.Atoi(pa[i])
		nb, _ := strconv.Atoi(pb[i])
		if na != nb {
			return na < nb
		}
	}
	return len(pa) < len(pb)
}

// Ensure oltSession implements snmp.Session
var _ snmp.Session = (*oltSession)(nil)

package snmp

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"

	"github.com/gosnmp/gosnmp"
	"github.com/nanoncore/nano-ctlplane/vendors/common"
)

// DecodeMethod names the pipeline step that produced a value
type DecodeMethod string

const (
	MethodU64 DecodeMethod = "u64"
	MethodU32 DecodeMethod = "u32"
	MethodHex DecodeMethod = "hex"
)

// Decoded is the result of the binary decode pipeline
type Decoded struct {
	Value  uint64
	Method DecodeMethod

	// Overflow is set when the payload had more than 8 significant bytes
	// and Value saturated at math.MaxUint64.
	Overflow bool
}

// DecodeBinary decodes an opaque payload by width:
// 8 bytes big-endian uint64, 4 bytes big-endian uint32, else the hex
// representation parsed as an integer. It never fails.
func DecodeBinary(b []byte) Decoded {
	switch len(b) {
	case 8:
		return Decoded{Value: binary.BigEndian.Uint64(b), Method: MethodU64}
	case 4:
		return Decoded{Value: uint64(binary.BigEndian.Uint32(b)), Method: MethodU32}
	}
	return decodeHex(b)
}

func decodeHex(b []byte) Decoded {
	significant := bytes.TrimLeft(b, "\x00")
	if len(significant) == 0 {
		return Decoded{Method: MethodHex}
	}
	if len(significant) > 8 {
		return Decoded{Value: math.MaxUint64, Method: MethodHex, Overflow: true}
	}
	v, err := strconv.ParseUint(hex.EncodeToString(significant), 16, 64)
	if err != nil {
		return Decoded{Value: math.MaxUint64, Method: MethodHex, Overflow: true}
	}
	return Decoded{Value: v, Method: MethodHex}
}

// printable returns the payload as text when every byte is printable ASCII.
// Trailing NUL padding is ignored.
func printable(b []byte) (string, bool) {
	b = bytes.TrimRight(b, "\x00")
	if len(b) == 0 {
		return "", false
	}
	for _, c := range b {
		if c == '\t' || c == '\r' || c == '\n' {
			continue
		}
		if c < 0x20 || c > 0x7e {
			return "", false
		}
	}
	return string(b), true
}

// DecodeValue converts a PDU into a string, int64 or uint64. With preferText
// an octet string made of printable ASCII is returned as text; otherwise
// octet strings go through DecodeBinary. It never fails: unknown shapes are
// coerced on a best-effort basis and end at 0.
func DecodeValue(pdu gosnmp.SnmpPDU, preferText bool) interface{} {
	switch pdu.Type {
	case gosnmp.OctetString, gosnmp.Opaque, gosnmp.BitString:
		b, ok := pdu.Value.([]byte)
		if !ok {
			return coerce(pdu.Value)
		}
		if preferText {
			if s, ok := printable(b); ok {
				return s
			}
		}
		return DecodeBinary(b).Value
	case gosnmp.Integer:
		if v, ok := common.ParseIntSNMPValue(pdu.Value); ok {
			return v
		}
	case gosnmp.Counter32, gosnmp.Gauge32, gosnmp.Counter64, gosnmp.TimeTicks, gosnmp.Uinteger32:
		if v, ok := common.ParseUint64SNMPValue(pdu.Value); ok {
			return v
		}
	case gosnmp.IPAddress, gosnmp.ObjectIdentifier:
		if s, ok := pdu.Value.(string); ok {
			return s
		}
	}
	return coerce(pdu.Value)
}

func coerce(v interface{}) interface{} {
	if u, ok := common.ParseUint64SNMPValue(v); ok {
		return u
	}
	if i, ok := common.ParseIntSNMPValue(v); ok {
		return i
	}
	if b, ok := v.([]byte); ok {
		return DecodeBinary(b).Value
	}
	return uint64(0)
}

// textOf renders a PDU for display: octet strings as their raw text,
// everything else formatted from the decoded value.
func textOf(pdu gosnmp.SnmpPDU) string {
	if b, ok := pdu.Value.([]byte); ok {
		return string(bytes.TrimRight(b, "\x00"))
	}
	if s, ok := pdu.Value.(string); ok {
		return s
	}
	if pdu.Value == nil {
		return ""
	}
	return fmt.Sprint(DecodeValue(pdu, true))
}

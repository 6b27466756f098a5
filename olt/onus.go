package olt

import (
	"context"
	"sort"

	"github.com/nanoncore/nano-ctlplane/drivers/snmp"
	"github.com/nanoncore/nano-ctlplane/types"
	"github.com/nanoncore/nano-ctlplane/vendors"
	"github.com/nanoncore/nano-ctlplane/vendors/common"
)

// Onus discovers subscriber terminals through the vendor OID schema.
// When port is non-nil only terminals on that port index are returned.
// Vendors without a terminal schema yield an empty list, not a failure.
func (s *Service) Onus(ctx context.Context, p types.OltProfile, port *int) types.Result[[]types.OnuRecord] {
	const op = "onus"

	schema, ok := vendors.Lookup(p.Vendor)
	if !ok {
		s.unsupported(p)
		return types.OK([]types.OnuRecord{})
	}

	sess, err := s.dial(ctx, p)
	if err != nil {
		s.failed(op, p, err)
		return types.Fail[[]types.OnuRecord]("%s: %v", p.Host, err)
	}
	defer sess.Close()

	onus, err := s.onus(sess, p, schema)
	if err != nil {
		s.failed(op, p, err)
		return types.Fail[[]types.OnuRecord]("%s: %v", p.Host, err)
	}

	if port != nil {
		filtered := onus[:0]
		for _, o := range onus {
			if o.PortIndex == *port {
				filtered = append(filtered, o)
			}
		}
		onus = filtered
	}

	s.metrics.SNMPRequest(op, true)
	return types.OK(onus)
}

func (s *Service) unsupported(p types.OltProfile) {
	supported := make([]string, 0, 5)
	for _, v := range vendors.Supported() {
		supported = append(supported, string(v))
	}
	s.log.Warn().
		Str("olt", p.ID).
		Str("vendor", string(p.Vendor)).
		Strs("supported", supported).
		Msg("terminal discovery not supported for vendor")
}

func (s *Service) onus(sess snmp.Session, p types.OltProfile, schema vendors.Schema) ([]types.OnuRecord, error) {
	status, skipped, err := snmp.WalkSubtree(sess, schema.OIDs.OnuStatus)
	if err != nil {
		return nil, err
	}
	s.logSkipped(p, schema.OIDs.OnuStatus, skipped)

	// optical attributes are best effort: a failed walk leaves them nil
	rx := make(map[string]float64)
	for _, vb := range s.optionalWalk(sess, p, schema.OIDs.OnuRxPower) {
		if dbm, ok := schema.RxPower.Convert(vb.Value); ok {
			rx[vb.Index] = dbm
		}
	}
	dist := make(map[string]int)
	for _, vb := range s.optionalWalk(sess, p, schema.OIDs.OnuDistance) {
		if m, ok := common.ParseIntSNMPValue(vb.Value); ok && m >= 0 {
			dist[vb.Index] = int(m)
		}
	}

	onus := make([]types.OnuRecord, 0, len(status))
	for _, vb := range status {
		portIdx, onuID, ok := schema.SplitIndex(vb.Index)
		if !ok {
			s.log.Debug().Str("olt", p.ID).Str("oid", vb.OID).Msg("unparseable ONU index")
			continue
		}
		code, ok := common.ParseIntSNMPValue(vb.Value)
		if !ok {
			s.log.Debug().Str("olt", p.ID).Str("oid", vb.OID).Msg("non-numeric ONU status")
			continue
		}

		rec := types.OnuRecord{
			Index:     onuID,
			PortIndex: portIdx,
			RawStatus: int(code),
			Status:    schema.Status.Decode(int(code)),
			Vendor:    schema.Label,
		}
		if v, ok := rx[vb.Index]; ok {
			rec.RxPowerDBm = &v
		}
		if v, ok := dist[vb.Index]; ok {
			rec.DistanceM = &v
		}
		onus = append(onus, rec)
	}

	sort.Slice(onus, func(i, j int) bool {
		if onus[i].PortIndex != onus[j].PortIndex {
			return onus[i].PortIndex < onus[j].PortIndex
		}
		return onus[i].Index < onus[j].Index
	})
	return onus, nil
}

func (s *Service) optionalWalk(sess snmp.Session, p types.OltProfile, root string) []snmp.Varbind {
	if root == "" {
		return nil
	}
	vbs, skipped, err := snmp.WalkSubtree(sess, root)
	if err != nil {
		s.log.Warn().Err(err).Str("olt", p.ID).Str("oid", root).Msg("optional walk failed")
		return nil
	}
	s.logSkipped(p, root, skipped)
	return vbs
}

// OnuCounts returns registered terminals per port index. Vendors with a
// count table are read directly; the rest are counted from the status table.
func (s *Service) OnuCounts(ctx context.Context, p types.OltProfile) types.Result[map[int]int] {
	const op = "onu_counts"

	schema, ok := vendors.Lookup(p.Vendor)
	if !ok {
		s.unsupported(p)
		return types.OK(map[int]int{})
	}

	sess, err := s.dial(ctx, p)
	if err != nil {
		s.failed(op, p, err)
		return types.Fail[map[int]int]("%s: %v", p.Host, err)
	}
	defer sess.Close()

	if counts, ok := s.countTable(sess, p, schema); ok {
		s.metrics.SNMPRequest(op, true)
		return types.OK(counts)
	}

	status, skipped, err := snmp.WalkSubtree(sess, schema.OIDs.OnuStatus)
	if err != nil {
		s.failed(op, p, err)
		return types.Fail[map[int]int]("%s: %v", p.Host, err)
	}
	s.logSkipped(p, schema.OIDs.OnuStatus, skipped)

	counts := make(map[int]int)
	for _, vb := range status {
		if portIdx, _, ok := schema.SplitIndex(vb.Index); ok {
			counts[portIdx]++
		}
	}

	s.metrics.SNMPRequest(op, true)
	return types.OK(counts)
}

func (s *Service) countTable(sess snmp.Session, p types.OltProfile, schema vendors.Schema) (map[int]int, bool) {
	vbs := s.optionalWalk(sess, p, schema.OIDs.OnuCount)
	if len(vbs) == 0 {
		return nil, false
	}
	counts := make(map[int]int, len(vbs))
	for _, vb := range vbs {
		arcs, ok := common.LastArcs(vb.Index, 1)
		if !ok {
			continue
		}
		if n, ok := common.ParseIntSNMPValue(vb.Value); ok {
			counts[arcs[0]] = int(n)
		}
	}
	return counts, len(counts) > 0
}

package schedule

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/jsonW0/bean-tacos"
)

// transmission is one parsed "chunk:send:receive" entry from an edge row.
type transmission struct {
	chunk   tacos.ChunkId
	send    tacos.Time
	receive tacos.Time
}

type parsedSchedule struct {
	numNodes       int
	numEdges       int
	numChunks      int
	chunkSize      float64
	collectiveTime float64
	edgeAttrs      map[tacos.LinkId][2]float64
	edgeEvents     map[tacos.LinkId][]transmission
}

// Verify independently re-checks that the schedule read from r actually
// realizes coll over top: every header value matches, every transmission's
// duration matches the link's delay formula, no link carries two chunks at
// once, no node sends a chunk before it possesses it, and every
// postcondition entry is covered by the time the schedule claims to finish.
// It returns tacos.ErrVerificationFailed (wrapped with the specific
// violation) on any mismatch.
func Verify(r io.Reader, top *tacos.Topology, coll *tacos.Collective, relTol float64) error {
	parsed, err := parseSchedule(r)
	if err != nil {
		return err
	}

	if err := verifyHeader(parsed, top, coll, relTol); err != nil {
		return err
	}
	if err := verifyEdgeSet(parsed, top, relTol); err != nil {
		return err
	}
	if err := verifyDurations(parsed, relTol); err != nil {
		return err
	}
	if err := verifyNoOverlap(parsed, relTol); err != nil {
		return err
	}
	if err := verifyCausality(parsed, coll); err != nil {
		return err
	}
	if err := verifyPostcondition(parsed, coll); err != nil {
		return err
	}
	return nil
}

// VerifyFile opens path and verifies it.
func VerifyFile(path string, top *tacos.Topology, coll *tacos.Collective, relTol float64) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open schedule %q: %w", path, err)
	}
	defer f.Close()
	return Verify(bufio.NewReader(f), top, coll, relTol)
}

func parseSchedule(r io.Reader) (*parsedSchedule, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	p := &parsedSchedule{
		edgeAttrs:  make(map[tacos.LinkId][2]float64),
		edgeEvents: make(map[tacos.LinkId][]transmission),
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read schedule: %w", err)
	}
	if len(rows) < 7 {
		return nil, fmt.Errorf("%w: schedule has fewer than 7 header rows", tacos.ErrVerificationFailed)
	}

	p.numNodes, err = expectLabeledInt(rows[0], "NPUs Count")
	if err != nil {
		return nil, err
	}
	p.numEdges, err = expectLabeledInt(rows[1], "Links Count")
	if err != nil {
		return nil, err
	}
	p.numChunks, err = expectLabeledInt(rows[2], "Chunks Count")
	if err != nil {
		return nil, err
	}
	p.chunkSize, err = expectLabeledFloat(rows[3], "Chunk Size")
	if err != nil {
		return nil, err
	}
	p.collectiveTime, err = expectLabeledUnitFloat(rows[4], "Collective Time", "ns")
	if err != nil {
		return nil, err
	}
	if _, err := expectLabeledUnitFloat(rows[5], "Synthesis Time", "s"); err != nil {
		return nil, err
	}
	if !equalStrings(rows[6], header) {
		return nil, fmt.Errorf("%w: expected header %v, got %v", tacos.ErrVerificationFailed, header, rows[6])
	}

	for _, row := range rows[7:] {
		if len(row) < 4 {
			return nil, fmt.Errorf("%w: edge row has fewer than 4 columns: %v", tacos.ErrVerificationFailed, row)
		}
		src, err := strconv.Atoi(row[0])
		if err != nil {
			return nil, fmt.Errorf("%w: bad SrcID %q", tacos.ErrVerificationFailed, row[0])
		}
		dst, err := strconv.Atoi(row[1])
		if err != nil {
			return nil, fmt.Errorf("%w: bad DestID %q", tacos.ErrVerificationFailed, row[1])
		}
		alpha, err := strconv.ParseFloat(row[2], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad Latency %q", tacos.ErrVerificationFailed, row[2])
		}
		beta, err := strconv.ParseFloat(row[3], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad Bandwidth %q", tacos.ErrVerificationFailed, row[3])
		}
		link := tacos.LinkId{Src: tacos.NodeId(src), Dst: tacos.NodeId(dst)}
		p.edgeAttrs[link] = [2]float64{alpha, beta}

		var evs []transmission
		for _, cell := range row[4:] {
			if strings.TrimSpace(cell) == "" {
				continue
			}
			parts := strings.Split(cell, ":")
			if len(parts) != 3 {
				return nil, fmt.Errorf("%w: bad transmission cell %q", tacos.ErrVerificationFailed, cell)
			}
			chunk, err := strconv.Atoi(parts[0])
			if err != nil {
				return nil, fmt.Errorf("%w: bad chunk id %q", tacos.ErrVerificationFailed, parts[0])
			}
			send, err := strconv.ParseFloat(parts[1], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: bad send time %q", tacos.ErrVerificationFailed, parts[1])
			}
			receive, err := strconv.ParseFloat(parts[2], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: bad receive time %q", tacos.ErrVerificationFailed, parts[2])
			}
			evs = append(evs, transmission{chunk: tacos.ChunkId(chunk), send: tacos.Time(send), receive: tacos.Time(receive)})
		}
		p.edgeEvents[link] = evs
	}
	return p, nil
}

func verifyHeader(p *parsedSchedule, top *tacos.Topology, coll *tacos.Collective, relTol float64) error {
	if p.numNodes != top.NumNodes() {
		return fmt.Errorf("%w: expected %d nodes, file says %d", tacos.ErrVerificationFailed, top.NumNodes(), p.numNodes)
	}
	if p.numEdges != top.NumEdges() {
		return fmt.Errorf("%w: expected %d edges, file says %d", tacos.ErrVerificationFailed, top.NumEdges(), p.numEdges)
	}
	if p.numChunks != coll.NumChunks() {
		return fmt.Errorf("%w: expected %d chunks, file says %d", tacos.ErrVerificationFailed, coll.NumChunks(), p.numChunks)
	}
	if !isClose(p.chunkSize, float64(coll.ChunkSize()), relTol) {
		return fmt.Errorf("%w: expected chunk size %v, file says %v", tacos.ErrVerificationFailed, coll.ChunkSize(), p.chunkSize)
	}

	maxReceive := math.Inf(-1)
	for _, evs := range p.edgeEvents {
		for _, e := range evs {
			if float64(e.receive) > maxReceive {
				maxReceive = float64(e.receive)
			}
		}
	}
	if math.IsInf(maxReceive, -1) {
		// No transmissions at all: the empty-postcondition boundary. The
		// only sensible collective time is 0, since nothing was scheduled.
		if p.collectiveTime != 0 {
			return fmt.Errorf("%w: schedule has zero transmissions but lists collective time %v, want 0", tacos.ErrVerificationFailed, p.collectiveTime)
		}
		return nil
	}
	if !isClose(p.collectiveTime, maxReceive, relTol) {
		return fmt.Errorf("%w: listed collective time %v does not match max receive time %v", tacos.ErrVerificationFailed, p.collectiveTime, maxReceive)
	}
	return nil
}

func verifyEdgeSet(p *parsedSchedule, top *tacos.Topology, relTol float64) error {
	for _, edge := range top.Edges() {
		attrs, ok := p.edgeAttrs[edge.Link]
		if !ok {
			return fmt.Errorf("%w: schedule is missing edge %s", tacos.ErrVerificationFailed, edge.Link)
		}
		if !isClose(attrs[0], edge.Alpha, relTol) || !isClose(attrs[1], edge.Beta, relTol) {
			return fmt.Errorf("%w: edge %s attributes (%v,%v) do not match topology (%v,%v)", tacos.ErrVerificationFailed, edge.Link, attrs[0], attrs[1], edge.Alpha, edge.Beta)
		}
	}
	if len(p.edgeAttrs) != top.NumEdges() {
		return fmt.Errorf("%w: schedule lists edges not present in topology", tacos.ErrVerificationFailed)
	}
	return nil
}

func verifyDurations(p *parsedSchedule, relTol float64) error {
	for link, evs := range p.edgeEvents {
		attrs := p.edgeAttrs[link]
		delay := attrs[0] + (p.chunkSize/float64(int64(1)<<30))*(1e9/attrs[1])
		for _, e := range evs {
			if !isClose(float64(e.send)+delay, float64(e.receive), relTol) {
				return fmt.Errorf("%w: edge %s chunk %d should take %v but send=%v receive=%v", tacos.ErrVerificationFailed, link, e.chunk, delay, e.send, e.receive)
			}
		}
	}
	return nil
}

func verifyNoOverlap(p *parsedSchedule, relTol float64) error {
	for link, evs := range p.edgeEvents {
		for i := 0; i < len(evs); i++ {
			for j := i + 1; j < len(evs); j++ {
				a, b := evs[i], evs[j]
				if a.chunk == b.chunk {
					return fmt.Errorf("%w: link %s sent chunk %d more than once", tacos.ErrVerificationFailed, link, a.chunk)
				}
				if leq(a.send, b.send, relTol) && lt(b.send, a.receive, relTol) {
					return fmt.Errorf("%w: link %s sent chunk %d during chunk %d's transmission", tacos.ErrVerificationFailed, link, b.chunk, a.chunk)
				}
				if leq(b.send, a.send, relTol) && lt(a.send, b.receive, relTol) {
					return fmt.Errorf("%w: link %s sent chunk %d during chunk %d's transmission", tacos.ErrVerificationFailed, link, a.chunk, b.chunk)
				}
			}
		}
	}
	return nil
}

func verifyCausality(p *parsedSchedule, coll *tacos.Collective) error {
	for link, evs := range p.edgeEvents {
		for _, e := range evs {
			if coll.HasPrecondition(link.Src, e.chunk) {
				continue
			}
			possesses := false
			for otherLink, otherEvs := range p.edgeEvents {
				if otherLink.Dst != link.Src {
					continue
				}
				for _, other := range otherEvs {
					if other.chunk == e.chunk && other.receive <= e.send {
						possesses = true
					}
				}
			}
			if !possesses {
				return fmt.Errorf("%w: link %s sent chunk %d before %d possessed it", tacos.ErrVerificationFailed, link, e.chunk, link.Src)
			}
		}
	}
	return nil
}

func verifyPostcondition(p *parsedSchedule, coll *tacos.Collective) error {
	remaining := make(map[tacos.NodeId]map[tacos.ChunkId]bool)
	for node := 0; node < p.numNodes; node++ {
		need := make(map[tacos.ChunkId]bool)
		for chunk := range coll.Postcondition(tacos.NodeId(node)) {
			if !coll.HasPrecondition(tacos.NodeId(node), chunk) {
				need[chunk] = true
			}
		}
		remaining[tacos.NodeId(node)] = need
	}
	for link, evs := range p.edgeEvents {
		for _, e := range evs {
			delete(remaining[link.Dst], e.chunk)
		}
	}
	for node, need := range remaining {
		if len(need) > 0 {
			return fmt.Errorf("%w: node %d never received chunks %v", tacos.ErrVerificationFailed, node, keys(need))
		}
	}
	return nil
}

func keys(m map[tacos.ChunkId]bool) []tacos.ChunkId {
	out := make([]tacos.ChunkId, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func isClose(a, b, relTol float64) bool {
	return math.Abs(a-b) <= relTol*math.Max(math.Abs(a), math.Abs(b))
}

func lt(a, b tacos.Time, relTol float64) bool {
	return a < b && !isClose(float64(a), float64(b), relTol)
}

func leq(a, b tacos.Time, relTol float64) bool {
	return a < b || isClose(float64(a), float64(b), relTol)
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// expectLabeledInt parses a "Label,value" metadata row. Zero is a valid
// count (e.g. a Chunks Count of 0 for a collective whose postcondition is
// already satisfied by its precondition); only negative values are rejected.
func expectLabeledInt(row []string, label string) (int, error) {
	if len(row) < 2 || row[0] != label {
		return 0, fmt.Errorf("%w: expected %q row, got %v", tacos.ErrVerificationFailed, label, row)
	}
	v, err := strconv.Atoi(row[1])
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %q value %q is not a non-negative int", tacos.ErrVerificationFailed, label, row[1])
	}
	return v, nil
}

func expectLabeledFloat(row []string, label string) (float64, error) {
	if len(row) < 2 || row[0] != label {
		return 0, fmt.Errorf("%w: expected %q row, got %v", tacos.ErrVerificationFailed, label, row)
	}
	v, err := strconv.ParseFloat(row[1], 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%w: %q value %q is not a positive float", tacos.ErrVerificationFailed, label, row[1])
	}
	return v, nil
}

// expectLabeledUnitFloat parses a "Label,value,unit" metadata row. Zero is
// valid here too: Collective Time is 0 for the empty-postcondition boundary
// (nothing to transmit), and Synthesis Time can legitimately round to 0 for
// a trivial instance.
func expectLabeledUnitFloat(row []string, label, unit string) (float64, error) {
	if len(row) < 3 || row[0] != label || row[2] != unit {
		return 0, fmt.Errorf("%w: expected %q row with unit %q, got %v", tacos.ErrVerificationFailed, label, unit, row)
	}
	v, err := strconv.ParseFloat(row[1], 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %q value %q is not a non-negative float", tacos.ErrVerificationFailed, label, row[1])
	}
	return v, nil
}

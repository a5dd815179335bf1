package tacos

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
)

// ErrUnknownEdge is returned when an operation references a link that is not
// part of the topology.
var ErrUnknownEdge = errors.New("tacos: unknown edge")

// Edge carries the per-link physical parameters: latency alpha (ns) and
// bandwidth beta (GB/s). Field names are part of the external contract — the
// verifier inspects a schedule CSV's Latency/Bandwidth columns against these.
type Edge struct {
	Link  LinkId
	Alpha float64 // ns
	Beta  float64 // GB/s
}

// Topology is a directed graph of NPUs connected by heterogeneous links.
// Nodes are dense integers over [0, NumNodes); edges are unique directed
// pairs, each carrying Alpha/Beta. Self-loops are not created by any
// constructor here — the runtime TEN state machine has no use for them.
type Topology struct {
	numNodes int
	edges    []Edge
	index    map[LinkId]int
	out      map[NodeId][]LinkId
	in       map[NodeId][]LinkId
}

// NewTopology creates an edgeless topology over numNodes nodes.
func NewTopology(numNodes int) *Topology {
	if numNodes < 0 {
		numNodes = 0
	}
	return &Topology{
		numNodes: numNodes,
		index:    make(map[LinkId]int),
		out:      make(map[NodeId][]LinkId),
		in:       make(map[NodeId][]LinkId),
	}
}

// Connect creates a directed link (src -> dst) with the given alpha (ns) and
// beta (GB/s). Returns an error if the link already exists, the endpoints are
// equal (self-loops are not used in the runtime state machine), or either
// endpoint is outside [0, NumNodes), or alpha/beta are invalid.
func (t *Topology) Connect(src, dst NodeId, alpha, beta float64) error {
	if src == dst {
		return fmt.Errorf("tacos: self-loop %d->%d not supported", src, dst)
	}
	if int(src) < 0 || int(src) >= t.numNodes || int(dst) < 0 || int(dst) >= t.numNodes {
		return fmt.Errorf("tacos: edge %d->%d references node outside [0,%d)", src, dst, t.numNodes)
	}
	if math.IsNaN(alpha) || math.IsInf(alpha, 0) || math.IsNaN(beta) || math.IsInf(beta, 0) {
		return fmt.Errorf("%w: edge %d->%d alpha %g beta %g", ErrNonFinite, src, dst, alpha, beta)
	}
	if alpha < 0 {
		return fmt.Errorf("tacos: edge %d->%d has negative alpha %g", src, dst, alpha)
	}
	if beta <= 0 {
		return fmt.Errorf("tacos: edge %d->%d has non-positive beta %g", src, dst, beta)
	}

	link := LinkId{Src: src, Dst: dst}
	if _, exists := t.index[link]; exists {
		return fmt.Errorf("tacos: duplicate directed edge %s", link)
	}

	t.index[link] = len(t.edges)
	t.edges = append(t.edges, Edge{Link: link, Alpha: alpha, Beta: beta})
	t.out[src] = append(t.out[src], link)
	t.in[dst] = append(t.in[dst], link)
	return nil
}

// NumNodes returns the number of NPUs in the topology.
func (t *Topology) NumNodes() int { return t.numNodes }

// NumEdges returns the number of directed links.
func (t *Topology) NumEdges() int { return len(t.edges) }

// Nodes returns node ids 0..NumNodes-1.
func (t *Topology) Nodes() []NodeId {
	nodes := make([]NodeId, t.numNodes)
	for i := range nodes {
		nodes[i] = NodeId(i)
	}
	return nodes
}

// Edges returns all edges, in the order they were added — the order used by
// the CSV schedule writer (§4.7) for row emission.
func (t *Topology) Edges() []Edge {
	out := make([]Edge, len(t.edges))
	copy(out, t.edges)
	return out
}

// Edge looks up the Edge for a link.
func (t *Topology) Edge(link LinkId) (Edge, bool) {
	idx, ok := t.index[link]
	if !ok {
		return Edge{}, false
	}
	return t.edges[idx], true
}

// OutEdges returns the links leaving v, in insertion order.
func (t *Topology) OutEdges(v NodeId) []LinkId {
	links := t.out[v]
	out := make([]LinkId, len(links))
	copy(out, links)
	return out
}

// InEdges returns the links entering v, in insertion order.
func (t *Topology) InEdges(v NodeId) []LinkId {
	links := t.in[v]
	out := make([]LinkId, len(links))
	copy(out, links)
	return out
}

// Delay computes the transmission time for a chunk of the given size over a
// link: alpha + (size / 2^30) * (1e9 / beta) nanoseconds.
func (t *Topology) Delay(link LinkId, chunkSize ChunkSize) (Time, error) {
	edge, ok := t.Edge(link)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownEdge, link)
	}
	return delay(edge.Alpha, edge.Beta, chunkSize), nil
}

func delay(alpha, beta float64, chunkSize ChunkSize) Time {
	return Time(alpha + (float64(chunkSize)/float64(1<<30))*(1e9/beta))
}

// csvHeader is the header row of the topology CSV input format (§6).
var csvHeader = []string{"Src", "Dest", "Latency (ns)", "Bandwidth (GB/s)"}

// LoadTopologyCSV reads a topology from the canonical CSV layout: line 1 is
// the node count, line 2 is the column header, and each following row is one
// directed edge. Duplicate directed edges are an error.
func LoadTopologyCSV(path string) (*Topology, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load topology %q: %w", path, err)
	}
	defer f.Close()
	return ReadTopologyCSV(f)
}

// ReadTopologyCSV parses the canonical CSV layout from r.
func ReadTopologyCSV(r io.Reader) (*Topology, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	countRow, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read topology node-count line: %w", err)
	}
	if len(countRow) != 1 {
		return nil, fmt.Errorf("tacos: expected single-column node count, got %v", countRow)
	}
	numNodes, err := strconv.Atoi(countRow[0])
	if err != nil || numNodes <= 0 {
		return nil, fmt.Errorf("tacos: invalid node count %q", countRow[0])
	}

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read topology header: %w", err)
	}
	if !equalHeader(header, csvHeader) {
		return nil, fmt.Errorf("tacos: expected header %v, got %v", csvHeader, header)
	}

	top := NewTopology(numNodes)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read topology row: %w", err)
		}
		if len(row) != 4 {
			return nil, fmt.Errorf("tacos: expected 4 columns, got %v", row)
		}
		src, err := strconv.Atoi(row[0])
		if err != nil {
			return nil, fmt.Errorf("tacos: invalid Src %q: %w", row[0], err)
		}
		dst, err := strconv.Atoi(row[1])
		if err != nil {
			return nil, fmt.Errorf("tacos: invalid Dest %q: %w", row[1], err)
		}
		alpha, err := strconv.ParseFloat(row[2], 64)
		if err != nil {
			return nil, fmt.Errorf("tacos: invalid Latency %q: %w", row[2], err)
		}
		beta, err := strconv.ParseFloat(row[3], 64)
		if err != nil {
			return nil, fmt.Errorf("tacos: invalid Bandwidth %q: %w", row[3], err)
		}
		if err := top.Connect(NodeId(src), NodeId(dst), alpha, beta); err != nil {
			return nil, err
		}
	}
	return top, nil
}

// SaveCSV writes the topology back out in the canonical input layout, the
// inverse of LoadTopologyCSV — used by the round-trip property in §8.
func (t *Topology) SaveCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save topology %q: %w", path, err)
	}
	defer f.Close()
	return t.WriteCSV(f)
}

// WriteCSV writes the topology to w in the canonical input layout.
func (t *Topology) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{strconv.Itoa(t.numNodes)}); err != nil {
		return err
	}
	if err := writer.Write(csvHeader); err != nil {
		return err
	}
	for _, e := range t.edges {
		row := []string{
			strconv.Itoa(int(e.Link.Src)),
			strconv.Itoa(int(e.Link.Dst)),
			strconv.FormatFloat(e.Alpha, 'g', -1, 64),
			strconv.FormatFloat(e.Beta, 'g', -1, 64),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	return writer.Error()
}

// Equal reports whether two topologies have the same node set and the same
// edge set with matching alpha/beta up to an absolute tolerance — the
// round-trip property of §8.
func (t *Topology) Equal(other *Topology, tol float64) bool {
	if other == nil || t.numNodes != other.numNodes || len(t.edges) != len(other.edges) {
		return false
	}
	for _, e := range t.edges {
		oe, ok := other.Edge(e.Link)
		if !ok {
			return false
		}
		if math.Abs(e.Alpha-oe.Alpha) > tol || math.Abs(e.Beta-oe.Beta) > tol {
			return false
		}
	}
	return true
}

func equalHeader(a, b []string) bool {
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

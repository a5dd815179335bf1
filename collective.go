package tacos

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
)

// Collective describes a communication pattern as a pair of conditions over
// chunks: precondition says which node already holds which chunk before
// synthesis starts, postcondition says which node must hold which chunk once
// the schedule completes. A synthesizer's job is to find the set of timed
// transmissions that turns precondition into postcondition.
type Collective struct {
	numNodes      int
	chunkSize     ChunkSize
	precondition  map[NodeId]map[ChunkId]bool
	postcondition map[NodeId]map[ChunkId]bool
	numChunks     int
}

// NewCollective creates an empty collective (no pre/postcondition entries)
// over numNodes nodes with the given per-chunk size.
func NewCollective(numNodes int, chunkSize ChunkSize) *Collective {
	return &Collective{
		numNodes:      numNodes,
		chunkSize:     chunkSize,
		precondition:  make(map[NodeId]map[ChunkId]bool),
		postcondition: make(map[NodeId]map[ChunkId]bool),
	}
}

// NumNodes returns the number of NPUs the collective is defined over.
func (c *Collective) NumNodes() int { return c.numNodes }

// ChunkSize returns the size of each chunk.
func (c *Collective) ChunkSize() ChunkSize { return c.chunkSize }

// NumChunks returns the number of distinct chunk ids referenced by either
// condition. Chunk ids are assumed dense over [0, NumChunks) by convention,
// though nothing here enforces that.
func (c *Collective) NumChunks() int { return c.numChunks }

func (c *Collective) observe(chunk ChunkId) {
	if int(chunk)+1 > c.numChunks {
		c.numChunks = int(chunk) + 1
	}
}

// AddPrecondition records that node already holds chunk before synthesis.
func (c *Collective) AddPrecondition(node NodeId, chunk ChunkId) {
	if c.precondition[node] == nil {
		c.precondition[node] = make(map[ChunkId]bool)
	}
	c.precondition[node][chunk] = true
	c.observe(chunk)
}

// AddPostcondition records that node must hold chunk once synthesis completes.
func (c *Collective) AddPostcondition(node NodeId, chunk ChunkId) {
	if c.postcondition[node] == nil {
		c.postcondition[node] = make(map[ChunkId]bool)
	}
	c.postcondition[node][chunk] = true
	c.observe(chunk)
}

// HasPrecondition reports whether node starts out holding chunk.
func (c *Collective) HasPrecondition(node NodeId, chunk ChunkId) bool {
	return c.precondition[node][chunk]
}

// Precondition returns the set of chunks node starts out holding.
func (c *Collective) Precondition(node NodeId) map[ChunkId]bool {
	return c.precondition[node]
}

// Postcondition returns the set of chunks node must end up holding.
func (c *Collective) Postcondition(node NodeId) map[ChunkId]bool {
	return c.postcondition[node]
}

// Pending reports whether node still needs chunk, i.e. chunk is in node's
// postcondition but not already satisfied by its precondition.
func (c *Collective) Pending(node NodeId, chunk ChunkId) bool {
	return c.postcondition[node][chunk] && !c.precondition[node][chunk]
}

// NewAllGather builds a pattern where every node starts with one chunk and
// every node must end up with every chunk. collectivesCount independent
// rounds are stacked with disjoint chunk ids, matching a steady-state
// pipeline of back-to-back All-Gathers over the same topology.
func NewAllGather(numNodes int, chunkSize ChunkSize, collectivesCount int) *Collective {
	c := NewCollective(numNodes, chunkSize)
	next := ChunkId(0)
	for round := 0; round < collectivesCount; round++ {
		base := next
		for i := 0; i < numNodes; i++ {
			chunk := base + ChunkId(i)
			c.AddPrecondition(NodeId(i), chunk)
			for j := 0; j < numNodes; j++ {
				c.AddPostcondition(NodeId(j), chunk)
			}
		}
		next = base + ChunkId(numNodes)
	}
	return c
}

// NewAllToAll builds a pattern where every ordered pair (i, j) with i != j
// gets a dedicated chunk: i starts with it, j must end up with it.
func NewAllToAll(numNodes int, chunkSize ChunkSize, collectivesCount int) *Collective {
	c := NewCollective(numNodes, chunkSize)
	next := ChunkId(0)
	for round := 0; round < collectivesCount; round++ {
		for i := 0; i < numNodes; i++ {
			for j := 0; j < numNodes; j++ {
				if i == j {
					continue
				}
				chunk := next
				next++
				c.AddPrecondition(NodeId(i), chunk)
				c.AddPostcondition(NodeId(j), chunk)
			}
		}
	}
	return c
}

// NewScatter builds a pattern where root starts with one chunk per
// destination node and every other node must receive its own chunk.
func NewScatter(root NodeId, numNodes int, chunkSize ChunkSize, collectivesCount int) *Collective {
	c := NewCollective(numNodes, chunkSize)
	next := ChunkId(0)
	for round := 0; round < collectivesCount; round++ {
		for j := 0; j < numNodes; j++ {
			if NodeId(j) == root {
				continue
			}
			chunk := next
			next++
			c.AddPrecondition(root, chunk)
			c.AddPostcondition(NodeId(j), chunk)
		}
	}
	return c
}

// NewGather builds a pattern where every non-root node starts with its own
// chunk and root must end up with all of them.
func NewGather(root NodeId, numNodes int, chunkSize ChunkSize, collectivesCount int) *Collective {
	c := NewCollective(numNodes, chunkSize)
	next := ChunkId(0)
	for round := 0; round < collectivesCount; round++ {
		for i := 0; i < numNodes; i++ {
			if NodeId(i) == root {
				continue
			}
			chunk := next
			next++
			c.AddPrecondition(NodeId(i), chunk)
			c.AddPostcondition(root, chunk)
		}
	}
	return c
}

// NewBroadcast builds a pattern where root starts with one chunk per round
// and every other node must end up with it.
func NewBroadcast(root NodeId, numNodes int, chunkSize ChunkSize, collectivesCount int) *Collective {
	c := NewCollective(numNodes, chunkSize)
	next := ChunkId(0)
	for round := 0; round < collectivesCount; round++ {
		chunk := next
		next++
		c.AddPrecondition(root, chunk)
		for j := 0; j < numNodes; j++ {
			if NodeId(j) == root {
				continue
			}
			c.AddPostcondition(NodeId(j), chunk)
		}
	}
	return c
}

// collectiveFile is the on-disk JSON shape for a collective exchange — node
// keys are stringified since JSON object keys must be strings. There is no
// explicit node count: it is derived from the highest node key referenced by
// either condition, plus one.
type collectiveFile struct {
	ChunkSize      float64          `json:"chunk_size"`
	Chunks         []int            `json:"chunks"`
	Preconditions  map[string][]int `json:"preconditions"`
	Postconditions map[string][]int `json:"postconditions"`
}

// LoadCollectiveJSON reads a collective from the canonical JSON exchange
// format (§6): chunk_size, chunks, and node-keyed preconditions/
// postconditions chunk-id lists.
func LoadCollectiveJSON(path string) (*Collective, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load collective %q: %w", path, err)
	}
	defer f.Close()
	return ReadCollectiveJSON(f)
}

// ReadCollectiveJSON parses the canonical JSON exchange format from r.
func ReadCollectiveJSON(r io.Reader) (*Collective, error) {
	var file collectiveFile
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("decode collective: %w", err)
	}

	numNodes := 0
	for nodeStr := range file.Preconditions {
		node, err := parseNodeKey(nodeStr)
		if err != nil {
			return nil, err
		}
		if int(node)+1 > numNodes {
			numNodes = int(node) + 1
		}
	}
	for nodeStr := range file.Postconditions {
		node, err := parseNodeKey(nodeStr)
		if err != nil {
			return nil, err
		}
		if int(node)+1 > numNodes {
			numNodes = int(node) + 1
		}
	}

	c := NewCollective(numNodes, ChunkSize(file.ChunkSize))
	for _, chunk := range file.Chunks {
		c.observe(ChunkId(chunk))
	}
	for nodeStr, chunks := range file.Preconditions {
		node, err := parseNodeKey(nodeStr)
		if err != nil {
			return nil, err
		}
		for _, chunk := range chunks {
			c.AddPrecondition(node, ChunkId(chunk))
		}
	}
	for nodeStr, chunks := range file.Postconditions {
		node, err := parseNodeKey(nodeStr)
		if err != nil {
			return nil, err
		}
		for _, chunk := range chunks {
			c.AddPostcondition(node, ChunkId(chunk))
		}
	}
	return c, nil
}

func parseNodeKey(s string) (NodeId, error) {
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0, fmt.Errorf("tacos: invalid node key %q: %w", s, err)
	}
	return NodeId(n), nil
}

// SaveJSON writes the collective to the canonical JSON exchange format.
func (c *Collective) SaveJSON(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save collective %q: %w", path, err)
	}
	defer f.Close()
	return c.WriteJSON(f)
}

// WriteJSON writes the collective to w in the canonical JSON exchange format.
func (c *Collective) WriteJSON(w io.Writer) error {
	chunks := make([]int, c.numChunks)
	for i := range chunks {
		chunks[i] = i
	}
	file := collectiveFile{
		ChunkSize:      float64(c.chunkSize),
		Chunks:         chunks,
		Preconditions:  conditionToFile(c.precondition),
		Postconditions: conditionToFile(c.postcondition),
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(file)
}

func conditionToFile(cond map[NodeId]map[ChunkId]bool) map[string][]int {
	out := make(map[string][]int, len(cond))
	for node, chunks := range cond {
		list := make([]int, 0, len(chunks))
		for chunk := range chunks {
			list = append(list, int(chunk))
		}
		sort.Ints(list)
		out[fmt.Sprintf("%d", node)] = list
	}
	return out
}

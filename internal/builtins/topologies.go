// Package builtins is a factory of named, parameterized topologies: fully
// connected, ring, grid, torus, tree, wheel, and star, each built bidirected
// (every undirected edge becomes two directed links). Every generator
// accepts homogeneous alpha/beta, and optionally a "proportion" two-bucket
// heterogeneous split (a fraction of edges, sampled without replacement,
// receive a second alpha2/beta2 instead). Get also accepts the generic
// "nx_NAME__k=v__k=v" form used by the exchange format, restricted to the
// generator names implemented here.
package builtins

import (
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"

	"github.com/jsonW0/bean-tacos"
)

var specifierPattern = regexp.MustCompile(`^([a-zA-Z]+)_(.+)$`)

// Get builds the topology named by specifier, e.g.
// "fc_n=4_alpha=10_beta=100" or "grid_w=3_h=3_alpha=10_beta=100". The generic
// form "nx_NAME__k=v__k=v" is equivalent to "NAME_k=v_k=v" and exists so
// callers can round-trip specifiers produced by networkx-flavored tooling
// without this package depending on networkx itself.
func Get(specifier string) (*tacos.Topology, error) {
	specifier = strings.TrimSpace(specifier)
	if strings.HasPrefix(specifier, "nx_") {
		rest := strings.TrimPrefix(specifier, "nx_")
		parts := strings.SplitN(rest, "__", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("tacos: malformed nx specifier %q", specifier)
		}
		specifier = parts[0] + "_" + strings.ReplaceAll(parts[1], "__", "_")
	}

	match := specifierPattern.FindStringSubmatch(specifier)
	if match == nil {
		return nil, fmt.Errorf("tacos: cannot parse topology specifier %q", specifier)
	}
	name, rest := match[1], match[2]

	params, err := parseParams(rest)
	if err != nil {
		return nil, fmt.Errorf("tacos: bad parameters in %q: %w", specifier, err)
	}

	switch name {
	case "fc":
		return fullyConnected(params)
	case "ring", "cycle":
		return ringTopology(params)
	case "grid":
		return gridTopology(params, false)
	case "torus":
		return gridTopology(params, true)
	case "tree":
		return treeTopology(params)
	case "wheel":
		return wheelTopology(params)
	case "star":
		return starTopology(params)
	default:
		return nil, fmt.Errorf("tacos: unrecognized topology generator %q", name)
	}
}

func parseParams(s string) (map[string]string, error) {
	out := make(map[string]string)
	// Keys may themselves contain underscores (slow_alpha): a token without
	// "=" is carried over as a prefix of the next key.
	prefix := ""
	for _, kv := range strings.Split(s, "_") {
		if kv == "" {
			continue
		}
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			prefix += kv + "_"
			continue
		}
		out[prefix+parts[0]] = parts[1]
		prefix = ""
	}
	if prefix != "" {
		return nil, fmt.Errorf("expected key=value, got %q", strings.TrimSuffix(prefix, "_"))
	}
	return out, nil
}

func intParam(params map[string]string, key string) (int, error) {
	v, ok := params[key]
	if !ok {
		return 0, fmt.Errorf("missing required parameter %q", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parameter %q must be an int, got %q", key, v)
	}
	return n, nil
}

func intParamDefault(params map[string]string, key string, def int) (int, error) {
	v, ok := params[key]
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parameter %q must be an int, got %q", key, v)
	}
	return n, nil
}

func floatParam(params map[string]string, key string, def float64) (float64, error) {
	v, ok := params[key]
	if !ok {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parameter %q must be a float, got %q", key, v)
	}
	return f, nil
}

func alphaBeta(params map[string]string) (float64, float64, error) {
	alpha, err := floatParam(params, "alpha", 1)
	if err != nil {
		return 0, 0, err
	}
	beta, err := floatParam(params, "beta", 1)
	if err != nil {
		return 0, 0, err
	}
	return alpha, beta, nil
}

// heterogeneity is the optional two-bucket edge-attribute split shared by
// every generator: proportion of the edges, sampled without replacement
// using a seeded RNG for reproducibility, carry (alpha2, beta2) instead of
// the homogeneous (alpha, beta). A nil heterogeneity means every edge is
// homogeneous.
type heterogeneity struct {
	proportion    float64
	alpha2, beta2 float64
	rng           *rand.Rand
}

// parseHeterogeneity reads proportion/alpha2/beta2/seed from params. A
// missing or non-positive proportion disables the split entirely (nil, nil).
func parseHeterogeneity(params map[string]string, alpha, beta float64) (*heterogeneity, error) {
	proportion, err := floatParam(params, "proportion", 0)
	if err != nil {
		return nil, err
	}
	if proportion <= 0 {
		return nil, nil
	}
	if proportion > 1 {
		return nil, fmt.Errorf("parameter %q must be in [0, 1], got %v", "proportion", proportion)
	}
	alpha2, err := floatParam(params, "alpha2", alpha)
	if err != nil {
		return nil, err
	}
	beta2, err := floatParam(params, "beta2", beta)
	if err != nil {
		return nil, err
	}
	seed, err := intParamDefault(params, "seed", 0)
	if err != nil {
		return nil, err
	}
	return &heterogeneity{
		proportion: proportion,
		alpha2:     alpha2,
		beta2:      beta2,
		rng:        rand.New(rand.NewSource(int64(seed))),
	}, nil
}

// undirectedPair is one undirected edge a generator wants connected
// bidirected, before (alpha, beta) assignment.
type undirectedPair struct {
	u, v tacos.NodeId
}

// connectPairs bidirects every pair in pairs, drawing floor(proportion *
// len(pairs)) of them without replacement into the (alpha2, beta2) bucket
// when het is non-nil.
func connectPairs(top *tacos.Topology, pairs []undirectedPair, alpha, beta float64, het *heterogeneity) error {
	slow := make(map[int]bool)
	if het != nil {
		k := int(het.proportion * float64(len(pairs)))
		for _, idx := range het.rng.Perm(len(pairs))[:k] {
			slow[idx] = true
		}
	}
	for i, p := range pairs {
		a, b := alpha, beta
		if slow[i] {
			a, b = het.alpha2, het.beta2
		}
		if err := connectBoth(top, p.u, p.v, a, b); err != nil {
			return err
		}
	}
	return nil
}

// connectBoth adds directed links in both directions between u and v.
func connectBoth(top *tacos.Topology, u, v tacos.NodeId, alpha, beta float64) error {
	if err := top.Connect(u, v, alpha, beta); err != nil {
		return err
	}
	return top.Connect(v, u, alpha, beta)
}

func fullyConnected(params map[string]string) (*tacos.Topology, error) {
	n, err := intParam(params, "n")
	if err != nil {
		return nil, err
	}
	alpha, beta, err := alphaBeta(params)
	if err != nil {
		return nil, err
	}
	het, err := parseHeterogeneity(params, alpha, beta)
	if err != nil {
		return nil, err
	}

	var pairs []undirectedPair
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			pairs = append(pairs, undirectedPair{tacos.NodeId(i), tacos.NodeId(j)})
		}
	}
	top := tacos.NewTopology(n)
	if err := connectPairs(top, pairs, alpha, beta, het); err != nil {
		return nil, err
	}
	return top, nil
}

// ringTopology builds an n-cycle, bidirected. The wrap-around edge between
// node n-1 and node 0 is the ring's documented "slow edge": it defaults to
// 10x the latency and a tenth of the bandwidth of every other edge, and can
// be overridden with explicit slow_alpha/slow_beta parameters. This models
// the common case of a ring built from otherwise-uniform links plus one
// cross-rack or cross-chassis hop. A generic proportion/alpha2/beta2 split,
// if given, is applied on top of the remaining (non-wrap) edges.
func ringTopology(params map[string]string) (*tacos.Topology, error) {
	n, err := intParam(params, "n")
	if err != nil {
		return nil, err
	}
	alpha, beta, err := alphaBeta(params)
	if err != nil {
		return nil, err
	}
	slowAlpha, err := floatParam(params, "slow_alpha", alpha*10)
	if err != nil {
		return nil, err
	}
	slowBeta, err := floatParam(params, "slow_beta", beta/10)
	if err != nil {
		return nil, err
	}
	het, err := parseHeterogeneity(params, alpha, beta)
	if err != nil {
		return nil, err
	}

	top := tacos.NewTopology(n)
	if n == 1 {
		return top, nil
	}

	var pairs []undirectedPair
	for i := 0; i < n; i++ {
		next := (i + 1) % n
		if next == 0 {
			continue // the wrap edge is connected separately below
		}
		pairs = append(pairs, undirectedPair{tacos.NodeId(i), tacos.NodeId(next)})
	}
	if err := connectPairs(top, pairs, alpha, beta, het); err != nil {
		return nil, err
	}
	if n > 2 {
		if err := connectBoth(top, tacos.NodeId(n-1), 0, slowAlpha, slowBeta); err != nil {
			return nil, err
		}
	}
	return top, nil
}

func gridTopology(params map[string]string, wrap bool) (*tacos.Topology, error) {
	w, err := intParam(params, "w")
	if err != nil {
		return nil, err
	}
	h, err := intParam(params, "h")
	if err != nil {
		return nil, err
	}
	alpha, beta, err := alphaBeta(params)
	if err != nil {
		return nil, err
	}
	het, err := parseHeterogeneity(params, alpha, beta)
	if err != nil {
		return nil, err
	}

	id := func(x, y int) tacos.NodeId { return tacos.NodeId(y*w + x) }
	var pairs []undirectedPair
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x+1 < w {
				pairs = append(pairs, undirectedPair{id(x, y), id(x+1, y)})
			} else if wrap && w > 2 {
				pairs = append(pairs, undirectedPair{id(x, y), id(0, y)})
			}
			if y+1 < h {
				pairs = append(pairs, undirectedPair{id(x, y), id(x, y+1)})
			} else if wrap && h > 2 {
				pairs = append(pairs, undirectedPair{id(x, y), id(x, 0)})
			}
		}
	}
	top := tacos.NewTopology(w * h)
	if err := connectPairs(top, pairs, alpha, beta, het); err != nil {
		return nil, err
	}
	return top, nil
}

// treeTopology builds a complete k-ary tree: node i's children are
// i*branching+1 .. i*branching+branching.
func treeTopology(params map[string]string) (*tacos.Topology, error) {
	n, err := intParam(params, "n")
	if err != nil {
		return nil, err
	}
	branching, err := intParamDefault(params, "branching", 2)
	if err != nil {
		return nil, err
	}
	alpha, beta, err := alphaBeta(params)
	if err != nil {
		return nil, err
	}
	het, err := parseHeterogeneity(params, alpha, beta)
	if err != nil {
		return nil, err
	}

	var pairs []undirectedPair
	for i := 0; i < n; i++ {
		for c := 1; c <= branching; c++ {
			child := i*branching + c
			if child >= n {
				break
			}
			pairs = append(pairs, undirectedPair{tacos.NodeId(i), tacos.NodeId(child)})
		}
	}
	top := tacos.NewTopology(n)
	if err := connectPairs(top, pairs, alpha, beta, het); err != nil {
		return nil, err
	}
	return top, nil
}

// wheelTopology builds a cycle over nodes 1..n-1 plus a hub at node 0
// connected to every rim node.
func wheelTopology(params map[string]string) (*tacos.Topology, error) {
	n, err := intParam(params, "n")
	if err != nil {
		return nil, err
	}
	alpha, beta, err := alphaBeta(params)
	if err != nil {
		return nil, err
	}
	het, err := parseHeterogeneity(params, alpha, beta)
	if err != nil {
		return nil, err
	}

	var pairs []undirectedPair
	for i := 1; i < n; i++ {
		pairs = append(pairs, undirectedPair{0, tacos.NodeId(i)})
	}
	rimSize := n - 1
	for r := 0; r < rimSize; r++ {
		if rimSize == 2 && r == 1 {
			break // the single rim edge was already added at r=0
		}
		next := (r + 1) % rimSize
		if next == r {
			continue
		}
		pairs = append(pairs, undirectedPair{tacos.NodeId(r + 1), tacos.NodeId(next + 1)})
	}
	top := tacos.NewTopology(n)
	if err := connectPairs(top, pairs, alpha, beta, het); err != nil {
		return nil, err
	}
	return top, nil
}

// starTopology builds a hub at node 0 connected to every other node, with no
// rim-to-rim links.
func starTopology(params map[string]string) (*tacos.Topology, error) {
	n, err := intParam(params, "n")
	if err != nil {
		return nil, err
	}
	alpha, beta, err := alphaBeta(params)
	if err != nil {
		return nil, err
	}
	het, err := parseHeterogeneity(params, alpha, beta)
	if err != nil {
		return nil, err
	}

	var pairs []undirectedPair
	for i := 1; i < n; i++ {
		pairs = append(pairs, undirectedPair{0, tacos.NodeId(i)})
	}
	top := tacos.NewTopology(n)
	if err := connectPairs(top, pairs, alpha, beta, het); err != nil {
		return nil, err
	}
	return top, nil
}

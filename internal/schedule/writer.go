// Package schedule writes synthesized schedules out in the canonical CSV
// format and independently re-verifies that a written schedule actually
// satisfies the topology and collective it claims to.
package schedule

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/jsonW0/bean-tacos"
)

// header is the fixed column header of the per-edge section of the CSV.
var header = []string{"SrcID", "DestID", "Latency (ns)", "Bandwidth (GB/s)", "Chunks (ID:ns:ns)"}

// Write renders a schedule to w in the canonical CSV format: six metadata
// rows, a header row, then one row per topology edge listing every chunk it
// carried as "id:send:receive".
func Write(w io.Writer, top *tacos.Topology, coll *tacos.Collective, events []tacos.Event, collectiveTime tacos.Time, synthesisTime time.Duration) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	rows := [][]string{
		{"NPUs Count", strconv.Itoa(top.NumNodes())},
		{"Links Count", strconv.Itoa(top.NumEdges())},
		{"Chunks Count", strconv.Itoa(coll.NumChunks())},
		{"Chunk Size", formatFloat(float64(coll.ChunkSize()))},
		{"Collective Time", formatFloat(float64(collectiveTime)), "ns"},
		{"Synthesis Time", formatFloat(synthesisTime.Seconds()), "s"},
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write schedule metadata: %w", err)
		}
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write schedule header: %w", err)
	}

	edgeEvents := make(map[tacos.LinkId][]tacos.Event)
	for _, e := range events {
		edgeEvents[e.Link] = append(edgeEvents[e.Link], e)
	}
	for link, evs := range edgeEvents {
		sort.Slice(evs, func(i, j int) bool { return evs[i].Send < evs[j].Send })
		edgeEvents[link] = evs
	}

	for _, edge := range top.Edges() {
		row := []string{
			strconv.Itoa(int(edge.Link.Src)),
			strconv.Itoa(int(edge.Link.Dst)),
			formatFloat(edge.Alpha),
			formatFloat(edge.Beta),
		}
		for _, e := range edgeEvents[edge.Link] {
			row = append(row, fmt.Sprintf("%d:%s:%s", e.Chunk, formatFloat(float64(e.Send)), formatFloat(float64(e.Receive))))
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write schedule edge row: %w", err)
		}
	}
	return writer.Error()
}

// WriteFile creates path and writes the schedule to it.
func WriteFile(path string, top *tacos.Topology, coll *tacos.Collective, events []tacos.Event, collectiveTime tacos.Time, synthesisTime time.Duration) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create schedule file %q: %w", path, err)
	}
	defer f.Close()
	return Write(f, top, coll, events, collectiveTime, synthesisTime)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

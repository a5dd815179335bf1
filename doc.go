// Package tacos synthesizes execution schedules for collective communication
// patterns (All-Gather, All-to-All, Scatter, Gather, Broadcast) over an
// arbitrary directed network of compute nodes with heterogeneous per-link
// latency and bandwidth.
//
// The package holds the shared data model — Topology, Collective, Event —
// consumed by the scheduling state machine in internal/ten, the randomized
// synthesizers in internal/synth, the exact ILP encoder in internal/ilp, and
// the schedule writer/verifier in internal/schedule.
package tacos

// Package portdiff implements persistent, composable local rewriting of
// port graphs. A Store holds a directed acyclic graph of Diffs, each
// describing a local substitution of a connected subgraph by a replacement
// subgraph, expressed relative to one or more parent diffs. Given a
// mutually compatible set of diffs (a GraphView), the store can extract the
// resulting materialized port graph.
package portdiff

package main

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/3s-rg-codes/faasruntime/pkg/functionRuntimeInterface"
	"gonum.org/v1/gonum/graph/simple"
)

const attachedEdges = 10

type InputData struct {
	Size int
	Seed *int // Optional
}

type OutputData struct {
	Result      []int64
	Measurement struct {
		GraphGeneratingTimeMicroseconds int64
		ComputeTimeMicroseconds         int64
	}
}

func main() {
	functionRuntimeInterface.Start("handler", functionRuntimeInterface.Typed(handler))
}

// inspired by https://github.com/spcl/serverless-benchmarks/blob/master/benchmarks/500.scientific/503.graph-bfs/python/function.py

func handler(ctx context.Context, input InputData, md *functionRuntimeInterface.Metadata) (OutputData, error) {
	if input.Size < 0 {
		return OutputData{}, errors.New("size must not be negative")
	}

	seed := time.Now().UnixNano()
	if input.Seed != nil {
		seed = int64(*input.Seed)
	}
	rng := rand.New(rand.NewSource(seed))

	startGraph := time.Now()
	graph := generateBarabasiAlbert(rng, input.Size, attachedEdges)
	graphDuration := time.Since(startGraph).Microseconds()

	startBFS := time.Now()
	result := bfs(graph, 0)
	bfsDuration := time.Since(startBFS).Microseconds()

	output := OutputData{
		Result: result,
	}
	output.Measurement.GraphGeneratingTimeMicroseconds = graphDuration
	output.Measurement.ComputeTimeMicroseconds = bfsDuration

	return output, nil
}

// generateBarabasiAlbert creates a scale-free graph using a simple preferential attachment model
func generateBarabasiAlbert(rng *rand.Rand, n, m int) *simple.UndirectedGraph {
	g := simple.NewUndirectedGraph()

	if n <= 0 || m <= 0 {
		return g
	}
	if m > n {
		m = n
	}

	// Initial fully-connected core of m nodes
	for i := 0; i < m; i++ {
		g.AddNode(simple.Node(i))
		for j := 0; j < i; j++ {
			g.SetEdge(g.NewEdge(simple.Node(i), simple.Node(j)))
		}
	}

	// Preferential attachment
	for i := m; i < n; i++ {
		targets := preferentialTargets(rng, g, int64(i), m)

		newNode := simple.Node(i)
		g.AddNode(newNode)
		for _, t := range targets {
			g.SetEdge(g.NewEdge(newNode, simple.Node(t)))
		}
	}

	return g
}

// preferentialTargets picks m distinct nodes among the first n, weighted by degree.
// Nodes are visited in id order so a seeded rng yields the same graph.
func preferentialTargets(rng *rand.Rand, g *simple.UndirectedGraph, n int64, m int) []int64 {
	var targets []int64
	seen := make(map[int64]bool)

	var pool []int64
	distinct := 0
	for id := int64(0); id < n; id++ {
		degree := g.From(id).Len()
		if degree > 0 {
			distinct++
		}
		for i := 0; i < degree; i++ {
			pool = append(pool, id)
		}
	}
	if m > distinct {
		m = distinct
	}

	for len(targets) < m {
		candidate := pool[rng.Intn(len(pool))]
		if !seen[candidate] {
			seen[candidate] = true
			targets = append(targets, candidate)
		}
	}

	return targets
}

func bfs(g *simple.UndirectedGraph, start int64) []int64 {
	if g.Node(start) == nil {
		return []int64{}
	}

	visited := make(map[int64]bool)
	var result []int64
	var queue []int64

	queue = append(queue, start)
	visited[start] = true

	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		result = append(result, curr)

		neighbors := g.From(curr)
		for neighbors.Next() {
			n := neighbors.Node().ID()
			if !visited[n] {
				visited[n] = true
				queue = append(queue, n)
			}
		}
	}

	return result
}

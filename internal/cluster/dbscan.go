package cluster

import "math"

// Noise is the label of points that belong to no cluster.
const Noise = -1

// DBSCAN labels points by density-based clustering with Euclidean distance.
// A point is a core point when at least minSamples points (itself included)
// lie within eps. Clusters are numbered from 0 in the order their first core
// point appears in the input, so the same input always yields the same labels.
func DBSCAN(points [][]float32, eps float64, minSamples int) []int {
	const unvisited = -2

	labels := make([]int, len(points))
	for i := range labels {
		labels[i] = unvisited
	}

	neighbors := func(i int) []int {
		var out []int
		for j := range points {
			if euclidean(points[i], points[j]) <= eps {
				out = append(out, j)
			}
		}
		return out
	}

	next := 0
	for i := range points {
		if labels[i] != unvisited {
			continue
		}
		seeds := neighbors(i)
		if len(seeds) < minSamples {
			labels[i] = Noise
			continue
		}

		cluster := next
		next++
		labels[i] = cluster

		queue := append([]int(nil), seeds...)
		for k := 0; k < len(queue); k++ {
			j := queue[k]
			if labels[j] == Noise {
				// Border point reached from a core point.
				labels[j] = cluster
				continue
			}
			if labels[j] != unvisited {
				continue
			}
			labels[j] = cluster
			if more := neighbors(j); len(more) >= minSamples {
				queue = append(queue, more...)
			}
		}
	}
	return labels
}

// euclidean returns the L2 distance, or +Inf for vectors of different length.
func euclidean(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Centroid returns the mean of the vectors.
func Centroid(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}
	out := make([]float32, len(vectors[0]))
	for _, v := range vectors {
		for i := range out {
			if i < len(v) {
				out[i] += v[i]
			}
		}
	}
	n := float32(len(vectors))
	for i := range out {
		out[i] /= n
	}
	return out
}

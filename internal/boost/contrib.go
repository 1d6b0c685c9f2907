package boost

// Contributions decomposes one prediction into additive per-feature
// terms in margin space. The returned slice has NumFeatures entries;
// bias (the base margin plus each tree's expected value) is returned
// separately. Feature terms plus bias sum to PredictMargin.
func (m *Model) Contributions(x []float64) (contribs []float64, bias float64) {
	contribs = make([]float64, m.NumFeatures)
	bias = m.BaseMargin

	for t := range m.Trees {
		nodes := m.Trees[t].Nodes
		bias += nodes[0].Value

		i := 0
		for !nodes[i].Leaf {
			n := &nodes[i]
			var next int
			if x[n.Feature] < n.Threshold {
				next = n.Left
			} else {
				next = n.Right
			}
			contribs[n.Feature] += nodes[next].Value - n.Value
			i = next
		}
	}
	return contribs, bias
}

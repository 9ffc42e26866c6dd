package scheduler

// Rect is an item or viewport rectangle in scroll-surface pixels.
type Rect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Empty reports whether r has no area.
func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

// Expand grows r by margin on the vertical scroll axis only.
func (r Rect) Expand(margin int) Rect {
	if margin <= 0 {
		return r
	}
	return Rect{X: r.X, Y: r.Y - margin, W: r.W, H: r.H + 2*margin}
}

// Intersects reports whether r and o share any area.
func (r Rect) Intersects(o Rect) bool {
	if r.Empty() || o.Empty() {
		return false
	}
	return r.X < o.X+o.W && o.X < r.X+r.W &&
		r.Y < o.Y+o.H && o.Y < r.Y+r.H
}

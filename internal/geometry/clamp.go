package geometry

// ClampToWorkArea moves a w x h rectangle at (x, y) so it sits inside the
// work area with the given margin on every side. Position wins over fit: a
// rectangle larger than the work area is pinned to the top-left margin
// rather than resized.
func ClampToWorkArea(x, y, w, h int, work Rect, margin int) (int, int) {
	minX := work.X + margin
	minY := work.Y + margin

	maxX := work.X + work.Width - w - margin
	if maxX < minX {
		maxX = minX
	}
	maxY := work.Y + work.Height - h - margin
	if maxY < minY {
		maxY = minY
	}

	if x > maxX {
		x = maxX
	}
	if x < minX {
		x = minX
	}
	if y > maxY {
		y = maxY
	}
	if y < minY {
		y = minY
	}
	return x, y
}

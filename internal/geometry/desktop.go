package geometry

// Monitor describes one physical display as reported by a display backend.
// Bounds and WorkArea are in physical pixels in the OS's global coordinate
// space, which may place secondary monitors at negative origins.
type Monitor struct {
	Bounds      Rect    `json:"bounds"`
	WorkArea    Rect    `json:"work_area"`
	Scale       float64 `json:"scale_factor"`
	RefreshRate int     `json:"refresh_rate"`
	Primary     bool    `json:"primary"`
}

// Region is one monitor's placement inside a VirtualDesktop, in logical
// pixels relative to the desktop origin. All coordinates are >= 0.
type Region struct {
	Index       int     `json:"index"`
	X           int     `json:"x"`
	Y           int     `json:"y"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	WorkX       int     `json:"work_x"`
	WorkY       int     `json:"work_y"`
	WorkWidth   int     `json:"work_width"`
	WorkHeight  int     `json:"work_height"`
	Scale       float64 `json:"scale_factor"`
	RefreshRate int     `json:"refresh_rate"`
}

// VirtualDesktop is the bounding box of all monitors. Every field is in
// logical pixels derived with the primary monitor's scale factor; the origin
// is signed and goes negative when a monitor sits left of or above the
// primary.
type VirtualDesktop struct {
	OriginX      int      `json:"origin_x"`
	OriginY      int      `json:"origin_y"`
	Width        int      `json:"width"`
	Height       int      `json:"height"`
	Monitors     []Region `json:"monitors"`
	PrimaryIndex int      `json:"primary_index"`
	PrimaryScale float64  `json:"primary_scale_factor"`
}

// PrimaryIndex returns the index of the primary monitor: the one flagged by
// the backend, else the one containing physical (0, 0), else 0.
func PrimaryIndex(monitors []Monitor) int {
	for i, m := range monitors {
		if m.Primary {
			return i
		}
	}
	for i, m := range monitors {
		if m.Bounds.ContainsPoint(0, 0) {
			return i
		}
	}
	return 0
}

// ComputeVirtualDesktop builds the desktop descriptor for a non-empty
// monitor set. Every logical value is converted with the primary monitor's
// scale factor; mixed-DPI regions are therefore approximations on the
// non-primary monitors, which is the documented tradeoff of a single
// spanning surface.
func ComputeVirtualDesktop(monitors []Monitor) VirtualDesktop {
	primary := PrimaryIndex(monitors)
	scale := SafeScale(monitors[primary].Scale)

	xMin, yMin := monitors[0].Bounds.X, monitors[0].Bounds.Y
	xMax := monitors[0].Bounds.X + monitors[0].Bounds.Width
	yMax := monitors[0].Bounds.Y + monitors[0].Bounds.Height
	for _, m := range monitors[1:] {
		if m.Bounds.X < xMin {
			xMin = m.Bounds.X
		}
		if m.Bounds.Y < yMin {
			yMin = m.Bounds.Y
		}
		if r := m.Bounds.X + m.Bounds.Width; r > xMax {
			xMax = r
		}
		if b := m.Bounds.Y + m.Bounds.Height; b > yMax {
			yMax = b
		}
	}

	logicalXMin := ToLogical(xMin, scale)
	logicalYMin := ToLogical(yMin, scale)

	regions := make([]Region, len(monitors))
	for i, m := range monitors {
		work := m.WorkArea
		if work.Empty() {
			work = FallbackWorkArea(m.Bounds)
		}
		regions[i] = Region{
			Index:       i,
			X:           ToLogical(m.Bounds.X, scale) - logicalXMin,
			Y:           ToLogical(m.Bounds.Y, scale) - logicalYMin,
			Width:       ToLogical(m.Bounds.Width, scale),
			Height:      ToLogical(m.Bounds.Height, scale),
			WorkX:       ToLogical(work.X, scale) - logicalXMin,
			WorkY:       ToLogical(work.Y, scale) - logicalYMin,
			WorkWidth:   ToLogical(work.Width, scale),
			WorkHeight:  ToLogical(work.Height, scale),
			Scale:       SafeScale(m.Scale),
			RefreshRate: m.RefreshRate,
		}
	}

	return VirtualDesktop{
		OriginX:      logicalXMin,
		OriginY:      logicalYMin,
		Width:        ToLogical(xMax, scale) - logicalXMin,
		Height:       ToLogical(yMax, scale) - logicalYMin,
		Monitors:     regions,
		PrimaryIndex: primary,
		PrimaryScale: scale,
	}
}

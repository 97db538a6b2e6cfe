//go:build windows

package display

import (
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/cloudburst-desktop/cloudburst/internal/geometry"
)

var (
	user32 = windows.NewLazySystemDLL("user32.dll")
	shcore = windows.NewLazySystemDLL("shcore.dll")

	procEnumDisplayMonitors  = user32.NewProc("EnumDisplayMonitors")
	procGetMonitorInfoW      = user32.NewProc("GetMonitorInfoW")
	procEnumDisplaySettingsW = user32.NewProc("EnumDisplaySettingsW")
	procGetDpiForMonitor     = shcore.NewProc("GetDpiForMonitor")
)

const (
	monitorinfofPrimary = 0x1
	enumCurrentSettings = 0xFFFFFFFF
	mdtEffectiveDPI     = 0
	baseDPI             = 96.0
)

type winRect struct {
	Left, Top, Right, Bottom int32
}

type monitorInfoExW struct {
	Size    uint32
	Monitor winRect
	Work    winRect
	Flags   uint32
	Device  [32]uint16
}

type devModeW struct {
	DeviceName         [32]uint16
	SpecVersion        uint16
	DriverVersion      uint16
	Size               uint16
	DriverExtra        uint16
	Fields             uint32
	Position           struct{ X, Y int32 }
	DisplayOrientation uint32
	DisplayFixedOutput uint32
	Color              int16
	Duplex             int16
	YResolution        int16
	TTOption           int16
	Collate            int16
	FormName           [32]uint16
	LogPixels          uint16
	BitsPerPel         uint32
	PelsWidth          uint32
	PelsHeight         uint32
	DisplayFlags       uint32
	DisplayFrequency   uint32
	ICMMethod          uint32
	ICMIntent          uint32
	MediaType          uint32
	DitherType         uint32
	Reserved1          uint32
	Reserved2          uint32
	PanningWidth       uint32
	PanningHeight      uint32
}

// enumState collects handles during EnumDisplayMonitors. Win32 enumeration
// callbacks cannot carry a Go closure, so the callback is created once and
// appends to this mutex-guarded slice.
var enumState struct {
	sync.Mutex
	handles []windows.Handle
}

var enumMonitorsCallback = syscall.NewCallback(func(hMonitor, hdc, lprc, lparam uintptr) uintptr {
	enumState.handles = append(enumState.handles, windows.Handle(hMonitor))
	return 1
})

// Win32Backend enumerates monitors through the Win32 display API with
// per-monitor DPI from shcore.
type Win32Backend struct{}

var _ Backend = (*Win32Backend)(nil)

// NewBackend returns the Win32 display backend. It holds no connection
// state; every Enumerate call walks the live monitor list.
func NewBackend() (Backend, error) {
	return &Win32Backend{}, nil
}

func (b *Win32Backend) Close() {}

func (b *Win32Backend) Enumerate() ([]geometry.Monitor, error) {
	enumState.Lock()
	defer enumState.Unlock()

	enumState.handles = enumState.handles[:0]
	ret, _, err := procEnumDisplayMonitors.Call(0, 0, enumMonitorsCallback, 0)
	if ret == 0 {
		return nil, err
	}

	monitors := make([]geometry.Monitor, 0, len(enumState.handles))
	for _, h := range enumState.handles {
		var info monitorInfoExW
		info.Size = uint32(unsafe.Sizeof(info))
		ret, _, _ := procGetMonitorInfoW.Call(uintptr(h), uintptr(unsafe.Pointer(&info)))
		if ret == 0 {
			continue
		}

		bounds := rectFromWin(info.Monitor)
		work := rectFromWin(info.Work)
		if work.Empty() {
			work = geometry.FallbackWorkArea(bounds)
		}

		monitors = append(monitors, geometry.Monitor{
			Bounds:      bounds,
			WorkArea:    work,
			Scale:       scaleForMonitor(h),
			RefreshRate: refreshRateForDevice(&info.Device[0]),
			Primary:     info.Flags&monitorinfofPrimary != 0,
		})
	}

	return monitors, nil
}

func rectFromWin(r winRect) geometry.Rect {
	return geometry.Rect{
		X:      int(r.Left),
		Y:      int(r.Top),
		Width:  int(r.Right - r.Left),
		Height: int(r.Bottom - r.Top),
	}
}

func scaleForMonitor(h windows.Handle) float64 {
	var dpiX, dpiY uint32
	ret, _, _ := procGetDpiForMonitor.Call(
		uintptr(h),
		mdtEffectiveDPI,
		uintptr(unsafe.Pointer(&dpiX)),
		uintptr(unsafe.Pointer(&dpiY)),
	)
	if ret != 0 || dpiX == 0 {
		return 1.0
	}
	return float64(dpiX) / baseDPI
}

func refreshRateForDevice(device *uint16) int {
	var dm devModeW
	dm.Size = uint16(unsafe.Sizeof(dm))
	ret, _, _ := procEnumDisplaySettingsW.Call(
		uintptr(unsafe.Pointer(device)),
		enumCurrentSettings,
		uintptr(unsafe.Pointer(&dm)),
	)
	if ret == 0 || dm.DisplayFrequency == 0 || dm.DisplayFrequency == 1 {
		return 60
	}
	return int(dm.DisplayFrequency)
}

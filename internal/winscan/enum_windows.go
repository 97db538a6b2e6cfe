//go:build windows

package winscan

import (
	"errors"
	"sync"
	"syscall"
	"unsafe"

	"github.com/go-ole/go-ole"
	"golang.org/x/sys/windows"

	"github.com/cloudburst-desktop/cloudburst/internal/geometry"
)

var (
	user32 = windows.NewLazySystemDLL("user32.dll")
	dwmapi = windows.NewLazySystemDLL("dwmapi.dll")

	procEnumWindows           = user32.NewProc("EnumWindows")
	procIsWindowVisible       = user32.NewProc("IsWindowVisible")
	procIsIconic              = user32.NewProc("IsIconic")
	procIsZoomed              = user32.NewProc("IsZoomed")
	procGetWindowPlacement    = user32.NewProc("GetWindowPlacement")
	procGetWindowRect         = user32.NewProc("GetWindowRect")
	procGetClassNameW         = user32.NewProc("GetClassNameW")
	procGetWindowTextW        = user32.NewProc("GetWindowTextW")
	procDwmGetWindowAttribute = dwmapi.NewProc("DwmGetWindowAttribute")
)

const (
	dwmwaCloaked             = 14
	dwmwaExtendedFrameBounds = 9
	swShowMinimized          = 2
)

type winRect struct {
	Left, Top, Right, Bottom int32
}

type winPoint struct {
	X, Y int32
}

type windowPlacement struct {
	Length         uint32
	Flags          uint32
	ShowCmd        uint32
	MinPosition    winPoint
	MaxPosition    winPoint
	NormalPosition winRect
}

// IVirtualDesktopManager, the one shell COM interface with a stable,
// documented contract for virtual-desktop membership.
var (
	clsidVirtualDesktopManager = ole.NewGUID("{AA509086-5CA9-4C25-8F95-589D3C07B48A}")
	iidIVirtualDesktopManager  = ole.NewGUID("{A5CD92FF-29BE-454C-8D04-D82879FB3F1B}")
)

type iVirtualDesktopManager struct {
	ole.IUnknown
}

type iVirtualDesktopManagerVtbl struct {
	ole.IUnknownVtbl
	IsWindowOnCurrentVirtualDesktop uintptr
	GetWindowDesktopId              uintptr
	MoveWindowToDesktop             uintptr
}

func (v *iVirtualDesktopManager) vtable() *iVirtualDesktopManagerVtbl {
	return (*iVirtualDesktopManagerVtbl)(unsafe.Pointer(v.RawVTable))
}

func (v *iVirtualDesktopManager) isWindowOnCurrentVirtualDesktop(hwnd uintptr) (bool, error) {
	var onDesktop int32
	hr, _, _ := syscall.SyscallN(
		v.vtable().IsWindowOnCurrentVirtualDesktop,
		uintptr(unsafe.Pointer(v)),
		hwnd,
		uintptr(unsafe.Pointer(&onDesktop)),
	)
	if hr != 0 {
		return false, ole.NewError(hr)
	}
	return onDesktop != 0, nil
}

// hwndCollector gathers handles during EnumWindows. The callback cannot
// carry a closure, so it appends to this mutex-guarded slice.
var hwndCollector struct {
	sync.Mutex
	hwnds []uintptr
}

var enumWindowsCallback = syscall.NewCallback(func(hwnd, lparam uintptr) uintptr {
	hwndCollector.hwnds = append(hwndCollector.hwnds, hwnd)
	return 1
})

// Win32Enumerator walks all top-level windows. The virtual-desktop manager
// is created once and reused; if the shell refuses to provide it, desktop
// membership is reported as unknown and the classifier keeps the window.
type Win32Enumerator struct {
	initOnce       sync.Once
	desktopManager *iVirtualDesktopManager
	comInitialized bool
}

var _ Enumerator = (*Win32Enumerator)(nil)

// NewEnumerator creates the Win32 window enumerator. COM setup is deferred
// to the first Windows call so the apartment belongs to the scanning
// goroutine, not whichever goroutine built the enumerator.
func NewEnumerator() (Enumerator, error) {
	return &Win32Enumerator{}, nil
}

// ensureCOM joins the multithreaded apartment from the calling thread and
// creates the virtual-desktop manager. MTA membership is process-wide, so
// later calls remain valid even if the goroutine migrates OS threads.
// Failure is not fatal; only the desktop-membership check degrades.
func (e *Win32Enumerator) ensureCOM() {
	e.initOnce.Do(func() {
		if err := ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED); err == nil {
			e.comInitialized = true
		}
		if unknown, err := ole.CreateInstance(clsidVirtualDesktopManager, iidIVirtualDesktopManager); err == nil {
			e.desktopManager = (*iVirtualDesktopManager)(unsafe.Pointer(unknown))
		}
	})
}

func (e *Win32Enumerator) Close() {
	if e.desktopManager != nil {
		e.desktopManager.Release()
		e.desktopManager = nil
	}
	if e.comInitialized {
		ole.CoUninitialize()
		e.comInitialized = false
	}
}

func (e *Win32Enumerator) Windows() ([]Probe, error) {
	e.ensureCOM()

	hwndCollector.Lock()
	defer hwndCollector.Unlock()

	hwndCollector.hwnds = hwndCollector.hwnds[:0]
	ret, _, err := procEnumWindows.Call(enumWindowsCallback, 0)
	if ret == 0 {
		return nil, err
	}

	probes := make([]Probe, len(hwndCollector.hwnds))
	for i, hwnd := range hwndCollector.hwnds {
		probes[i] = &winProbe{hwnd: hwnd, enum: e}
	}
	return probes, nil
}

type winProbe struct {
	hwnd uintptr
	enum *Win32Enumerator
}

func (p *winProbe) Visible() bool {
	ret, _, _ := procIsWindowVisible.Call(p.hwnd)
	return ret != 0
}

// Minimized checks both IsIconic and the placement show command. Some
// windows answer only one of the two truthfully mid-animation.
func (p *winProbe) Minimized() bool {
	if ret, _, _ := procIsIconic.Call(p.hwnd); ret != 0 {
		return true
	}
	var placement windowPlacement
	placement.Length = uint32(unsafe.Sizeof(placement))
	if ret, _, _ := procGetWindowPlacement.Call(p.hwnd, uintptr(unsafe.Pointer(&placement))); ret != 0 {
		return placement.ShowCmd == swShowMinimized
	}
	return false
}

func (p *winProbe) Cloaked() bool {
	var cloaked uint32
	hr, _, _ := procDwmGetWindowAttribute.Call(
		p.hwnd,
		dwmwaCloaked,
		uintptr(unsafe.Pointer(&cloaked)),
		unsafe.Sizeof(cloaked),
	)
	return hr == 0 && cloaked != 0
}

func (p *winProbe) OnCurrentDesktop() (bool, error) {
	if p.enum.desktopManager == nil {
		return false, errors.New("virtual desktop manager unavailable")
	}
	return p.enum.desktopManager.isWindowOnCurrentVirtualDesktop(p.hwnd)
}

// Bounds prefers the DWM extended frame, which excludes the invisible
// resize borders Win32 adds to GetWindowRect.
func (p *winProbe) Bounds() (geometry.Rect, bool) {
	var r winRect
	hr, _, _ := procDwmGetWindowAttribute.Call(
		p.hwnd,
		dwmwaExtendedFrameBounds,
		uintptr(unsafe.Pointer(&r)),
		unsafe.Sizeof(r),
	)
	if hr != 0 {
		if ret, _, _ := procGetWindowRect.Call(p.hwnd, uintptr(unsafe.Pointer(&r))); ret == 0 {
			return geometry.Rect{}, false
		}
	}
	return geometry.Rect{
		X:      int(r.Left),
		Y:      int(r.Top),
		Width:  int(r.Right - r.Left),
		Height: int(r.Bottom - r.Top),
	}, true
}

func (p *winProbe) Class() string {
	var buf [256]uint16
	n, _, _ := procGetClassNameW.Call(p.hwnd, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	return windows.UTF16ToString(buf[:n])
}

func (p *winProbe) Title() string {
	var buf [512]uint16
	n, _, _ := procGetWindowTextW.Call(p.hwnd, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	return windows.UTF16ToString(buf[:n])
}

func (p *winProbe) Maximized() bool {
	ret, _, _ := procIsZoomed.Call(p.hwnd)
	return ret != 0
}

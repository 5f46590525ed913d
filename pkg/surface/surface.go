// Package surface models the platform drawable that frames are rendered into.
//
// A platform supplies a Window through a Provider. The bridge wraps every
// Window in a reference-counted Handle so the render goroutine can keep using
// it outside the State lock while the control thread revokes it; the window
// goes back to the platform only when the last reference is dropped.
package surface

import (
	"errors"
	"image"
)

// Format is a pixel format code, numbered like the Android window formats.
type Format int

const (
	// FormatDefault keeps the window's current format.
	FormatDefault Format = 0
	// FormatRGBA8888 is 32-bit RGBA, one byte per channel in memory order.
	FormatRGBA8888 Format = 1
	// FormatRGBX8888 is 32-bit RGB with an ignored fourth byte.
	FormatRGBX8888 Format = 2
	// FormatRGB565 is 16-bit RGB.
	FormatRGB565 Format = 4
)

func (f Format) String() string {
	switch f {
	case FormatDefault:
		return "default"
	case FormatRGBA8888:
		return "RGBA_8888"
	case FormatRGBX8888:
		return "RGBX_8888"
	case FormatRGB565:
		return "RGB_565"
	default:
		return "unknown"
	}
}

var (
	// ErrNoSurface is returned when a provider cannot produce a window.
	ErrNoSurface = errors.New("surface: no usable surface")
	// ErrReleased is returned when a released window or handle is used.
	ErrReleased = errors.New("surface: window released")
	// ErrAlreadyLocked is returned when Lock is called on a locked window.
	ErrAlreadyLocked = errors.New("surface: buffer already locked")
	// ErrNotLocked is returned when UnlockAndPost is called without a Lock.
	ErrNotLocked = errors.New("surface: buffer not locked")
	// ErrUnsupportedFormat is returned for pixel formats a window cannot hold.
	ErrUnsupportedFormat = errors.New("surface: unsupported pixel format")
)

// Buffer is a locked pixel buffer. Pix holds RGBA_8888 pixels; Stride is
// the distance between rows in bytes and may exceed 4*Width.
type Buffer struct {
	Width  int
	Height int
	Stride int
	Format Format
	Pix    []byte
}

// Set writes one pixel. Coordinates must lie inside the buffer.
func (b *Buffer) Set(x, y int, r, g, bl, a uint8) {
	i := y*b.Stride + x*4
	p := b.Pix[i : i+4 : i+4]
	p[0] = r
	p[1] = g
	p[2] = bl
	p[3] = a
}

// At returns the pixel at (x, y).
func (b *Buffer) At(x, y int) (r, g, bl, a uint8) {
	i := y*b.Stride + x*4
	p := b.Pix[i : i+4 : i+4]
	return p[0], p[1], p[2], p[3]
}

// In reports whether (x, y) lies inside the buffer.
func (b *Buffer) In(x, y int) bool {
	return x >= 0 && x < b.Width && y >= 0 && y < b.Height
}

// RGBA returns an image view sharing the buffer's pixels.
func (b *Buffer) RGBA() *image.RGBA {
	return &image.RGBA{
		Pix:    b.Pix,
		Stride: b.Stride,
		Rect:   image.Rect(0, 0, b.Width, b.Height),
	}
}

// Window is a platform drawable with a lockable pixel buffer.
//
// Lock and UnlockAndPost are called from the render goroutine; Release is
// called exactly once, by whichever goroutine drops the last Handle reference.
type Window interface {
	// SetBuffersGeometry sets the buffer size and format. Zero width and
	// height keep the window's native size.
	SetBuffersGeometry(width, height int, format Format) error

	// Lock locks the next pixel buffer for writing.
	Lock() (*Buffer, error)

	// UnlockAndPost unlocks the buffer and submits it for display.
	UnlockAndPost() error

	// Release returns the window to the platform.
	Release()
}

// Provider turns a native surface object into a Window.
type Provider interface {
	FromSurface(native any) (Window, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(native any) (Window, error)

// FromSurface calls f(native).
func (f ProviderFunc) FromSurface(native any) (Window, error) {
	return f(native)
}

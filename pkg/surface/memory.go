package surface

import (
	"fmt"
	"image"
	"sync"
)

// MemoryWindow is a Window backed by an in-process pixel buffer. It backs
// the headless and standalone runners and doubles as a test surface.
type MemoryWindow struct {
	mu       sync.Mutex
	width    int
	height   int
	format   Format
	pix      []byte
	last     []byte
	locked   bool
	released bool
	posts    int
	lockErr  error

	// OnPost, if set, is called after each successful UnlockAndPost with a
	// view of the posted buffer. The view is only valid during the call.
	OnPost func(buf *Buffer)
}

// NewMemoryWindow returns a width×height RGBA_8888 window.
func NewMemoryWindow(width, height int) *MemoryWindow {
	return &MemoryWindow{
		width:  width,
		height: height,
		format: FormatRGBA8888,
		pix:    make([]byte, 4*width*height),
	}
}

// SetBuffersGeometry resizes the buffer; zero dimensions keep the current
// size. Only RGBA_8888 (or the default format) is supported.
func (w *MemoryWindow) SetBuffersGeometry(width, height int, format Format) error {
	if format != FormatDefault && format != FormatRGBA8888 {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if width < 0 || height < 0 {
		return fmt.Errorf("surface: invalid geometry %dx%d", width, height)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.released {
		return ErrReleased
	}
	if format != FormatDefault {
		w.format = format
	}
	if width > 0 && height > 0 {
		w.resizeLocked(width, height)
	}
	return nil
}

// Resize changes the window size, as a platform does on rotation.
func (w *MemoryWindow) Resize(width, height int) error {
	return w.SetBuffersGeometry(width, height, FormatDefault)
}

func (w *MemoryWindow) resizeLocked(width, height int) {
	if width == w.width && height == w.height {
		return
	}
	w.width, w.height = width, height
	w.pix = make([]byte, 4*width*height)
	w.last = nil
}

// FailLocks makes every subsequent Lock fail with err; nil restores normal
// behavior.
func (w *MemoryWindow) FailLocks(err error) {
	w.mu.Lock()
	w.lockErr = err
	w.mu.Unlock()
}

// Lock returns the window's pixel buffer.
func (w *MemoryWindow) Lock() (*Buffer, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch {
	case w.released:
		return nil, ErrReleased
	case w.locked:
		return nil, ErrAlreadyLocked
	case w.lockErr != nil:
		return nil, w.lockErr
	}
	w.locked = true
	return w.bufferLocked(), nil
}

// UnlockAndPost records the buffer as the latest posted frame.
func (w *MemoryWindow) UnlockAndPost() error {
	w.mu.Lock()
	if !w.locked {
		w.mu.Unlock()
		return ErrNotLocked
	}
	w.locked = false
	w.posts++
	if len(w.last) != len(w.pix) {
		w.last = make([]byte, len(w.pix))
	}
	copy(w.last, w.pix)
	onPost := w.OnPost
	buf := w.bufferLocked()
	w.mu.Unlock()

	if onPost != nil {
		onPost(buf)
	}
	return nil
}

func (w *MemoryWindow) bufferLocked() *Buffer {
	return &Buffer{
		Width:  w.width,
		Height: w.height,
		Stride: 4 * w.width,
		Format: w.format,
		Pix:    w.pix,
	}
}

// Release marks the window as returned to the platform.
func (w *MemoryWindow) Release() {
	w.mu.Lock()
	w.released = true
	w.mu.Unlock()
}

// Released reports whether Release has been called.
func (w *MemoryWindow) Released() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.released
}

// Posts returns the number of frames posted so far.
func (w *MemoryWindow) Posts() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.posts
}

// Size returns the window dimensions.
func (w *MemoryWindow) Size() (width, height int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.width, w.height
}

// LastFrame returns a copy of the most recently posted frame, or nil if
// nothing has been posted since the last resize.
func (w *MemoryWindow) LastFrame() *image.RGBA {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.last == nil {
		return nil
	}
	img := image.NewRGBA(image.Rect(0, 0, w.width, w.height))
	copy(img.Pix, w.last)
	return img
}

// MemoryProvider accepts *MemoryWindow values as native surfaces.
type MemoryProvider struct{}

// FromSurface returns native if it is a live *MemoryWindow.
func (MemoryProvider) FromSurface(native any) (Window, error) {
	w, ok := native.(*MemoryWindow)
	if !ok || w == nil {
		return nil, fmt.Errorf("%w: got %T", ErrNoSurface, native)
	}
	if w.Released() {
		return nil, fmt.Errorf("%w: window already released", ErrNoSurface)
	}
	return w, nil
}

package flash

import (
	"fmt"
	"os"
	"sync"
)

// File is a partition backed by a regular file, used to run the store on a
// host with the same write/erase discipline as the device.
type File struct {
	mu  sync.Mutex
	geo Geometry
	f   *os.File
}

// OpenFile opens or creates the partition image at path. A new or short file
// is extended with erased sectors.
func OpenFile(path string, g Geometry) (*File, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	g = g.normalized()
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("flash: open %s: %w", path, err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if st.Size() > int64(g.Size()) {
		_ = f.Close()
		return nil, fmt.Errorf("flash: image %s is %d bytes, geometry allows %d", path, st.Size(), g.Size())
	}
	if pad := int64(g.Size()) - st.Size(); pad > 0 {
		buf := make([]byte, pad)
		fillErased(buf)
		if _, err := f.WriteAt(buf, st.Size()); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("flash: extend %s: %w", path, err)
		}
	}
	return &File{geo: g, f: f}, nil
}

func (p *File) Read(off int, buf []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.f == nil {
		return ErrClosed
	}
	if err := checkRead(p.geo, off, len(buf)); err != nil {
		return err
	}
	_, err := p.f.ReadAt(buf, int64(off))
	return err
}

func (p *File) Write(off int, buf []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.f == nil {
		return ErrClosed
	}
	if err := checkWrite(p.geo, off, len(buf)); err != nil {
		return err
	}
	cur := make([]byte, len(buf))
	if _, err := p.f.ReadAt(cur, int64(off)); err != nil {
		return err
	}
	program(cur, buf)
	_, err := p.f.WriteAt(cur, int64(off))
	return err
}

func (p *File) Erase(off, n int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.f == nil {
		return ErrClosed
	}
	if err := checkErase(p.geo, off, n); err != nil {
		return err
	}
	buf := make([]byte, n)
	fillErased(buf)
	_, err := p.f.WriteAt(buf, int64(off))
	return err
}

func (p *File) PageInfo() Geometry { return p.geo }

// Sync flushes the image to stable storage.
func (p *File) Sync() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.f == nil {
		return ErrClosed
	}
	return p.f.Sync()
}

func (p *File) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.f == nil {
		return nil
	}
	err := p.f.Close()
	p.f = nil
	return err
}

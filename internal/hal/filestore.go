package hal

import (
	"fmt"
	"os"
	"sync"
)

// FilePersistence backs the persistence capability with a fixed-size
// file, standing in for the EEPROM region on hardware targets. The file
// is created zero-filled on first open, like a factory-fresh part.
type FilePersistence struct {
	mu   sync.Mutex
	f    *os.File
	size int
}

// OpenFilePersistence opens or creates the region file at path.
func OpenFilePersistence(path string, size int) (*FilePersistence, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("hal: open persistence file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("hal: stat persistence file: %w", err)
	}
	if info.Size() < int64(size) {
		if err := f.Truncate(int64(size)); err != nil {
			f.Close()
			return nil, fmt.Errorf("hal: size persistence file: %w", err)
		}
	}

	return &FilePersistence{f: f, size: size}, nil
}

func (p *FilePersistence) Read(offset, length int) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if offset < 0 || offset+length > p.size {
		return nil, fmt.Errorf("hal: read [%d,%d) outside region of %d bytes", offset, offset+length, p.size)
	}
	out := make([]byte, length)
	if _, err := p.f.ReadAt(out, int64(offset)); err != nil {
		return nil, fmt.Errorf("hal: read persistence region: %w", err)
	}
	return out, nil
}

func (p *FilePersistence) Write(offset int, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if offset < 0 || offset+len(data) > p.size {
		return fmt.Errorf("hal: write [%d,%d) outside region of %d bytes", offset, offset+len(data), p.size)
	}
	if _, err := p.f.WriteAt(data, int64(offset)); err != nil {
		return fmt.Errorf("hal: write persistence region: %w", err)
	}
	return nil
}

// Flush forces written data to stable storage. Save paths must not
// report success before this returns.
func (p *FilePersistence) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.f.Sync(); err != nil {
		return fmt.Errorf("hal: flush persistence region: %w", err)
	}
	return nil
}

// Close closes the backing file.
func (p *FilePersistence) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.f.Close()
}

package store

import "github.com/badu/formbody/ferr"

// Memory is a byte buffer resident in memory, stored as a composite of
// appended segments so AddContent never copies incoming bytes (spec.md
// §4.B). GetChunk returns a retained view slice where possible and only
// copies across a segment boundary.
type Memory struct {
	limits
	segments  [][]byte
	readSeg   int // index of segment GetChunk will resume from
	readOff   int // offset within that segment
}

// NewMemory returns an empty Memory store with the given MaxSize (-1 for
// unlimited) and DefinedSize (0 if unknown).
func NewMemory(maxSize, definedSize int64) *Memory {
	return &Memory{limits: limits{maxSize: maxSize, definedSize: definedSize}}
}

func (m *Memory) SetContent(p []byte) error {
	if err := m.limits.checkWrite("SetContent", int64(len(p))-m.size); err != nil {
		return err
	}
	if err := m.limits.checkCompletion("SetContent", int64(len(p))); err != nil {
		return err
	}
	m.segments = nil
	if len(p) > 0 {
		m.segments = [][]byte{p}
	}
	m.size = int64(len(p))
	m.readSeg, m.readOff = 0, 0
	m.completed = true
	return nil
}

func (m *Memory) AddContent(p []byte, last bool) error {
	if err := m.limits.checkWrite("AddContent", int64(len(p))); err != nil {
		return err
	}
	if last {
		if err := m.limits.checkCompletion("AddContent", m.size+int64(len(p))); err != nil {
			return err
		}
	}
	if len(p) > 0 {
		m.segments = append(m.segments, p)
		m.size += int64(len(p))
	}
	if last {
		m.completed = true
	}
	return nil
}

func (m *Memory) GetChunk(n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}

	// Fast path: the request is fully satisfied by the remainder of the
	// current segment — return a retained view with no copy at all.
	if m.readSeg < len(m.segments) {
		seg := m.segments[m.readSeg]
		avail := seg[m.readOff:]
		if len(avail) > 0 && n <= len(avail) {
			out := avail[:n:n] // re-slice with cap==len so a later
			// append by the caller can never alias into our backing array.
			m.readOff += n
			if m.readOff >= len(seg) {
				m.readSeg++
				m.readOff = 0
			}
			return out, nil
		}
	}

	// Slow path: the request spans a segment boundary (or the current
	// segment is exhausted); build a fresh copy.
	var out []byte
	for n > 0 && m.readSeg < len(m.segments) {
		seg := m.segments[m.readSeg]
		avail := seg[m.readOff:]
		if len(avail) == 0 {
			m.readSeg++
			m.readOff = 0
			continue
		}
		take := n
		if take > len(avail) {
			take = len(avail)
		}
		out = append(out, avail[:take]...)
		m.readOff += take
		n -= take
		if m.readOff >= len(seg) {
			m.readSeg++
			m.readOff = 0
		}
	}
	if len(out) == 0 {
		m.readSeg, m.readOff = 0, 0 // drained: reset for any subsequent read-out pass
	}
	return out, nil
}

func (m *Memory) GetBytes() ([]byte, error) {
	out := make([]byte, 0, m.size)
	for _, seg := range m.segments {
		out = append(out, seg...)
	}
	return out, nil
}

func (m *Memory) GetString(charset string) (string, error) {
	raw, err := m.GetBytes()
	if err != nil {
		return "", err
	}
	return decodeWith(raw, charset)
}

func (m *Memory) RenameTo(target string) error {
	raw, err := m.GetBytes()
	if err != nil {
		return err
	}
	if err := writeWholeFile(target, raw); err != nil {
		return ferr.New(ferr.IOError, "RenameTo", err)
	}
	return nil
}

func (m *Memory) Close() error {
	m.segments = nil
	return nil
}

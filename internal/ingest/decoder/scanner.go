package decoder

import "fmt"

// FindObject locates the first complete JSON object in text at or after from.
// It returns the inclusive bounds of the object, or -1, -1 when text holds no
// complete object. Braces inside string literals are ignored.
func FindObject(text []byte, from int) (start, end int) {
	s := ObjectScanner{start: -1}
	s.buf = text
	s.pos = from
	if !s.scan() {
		return -1, -1
	}
	return s.start, s.pos - 1
}

// ObjectScanner finds JSON object boundaries in a stream that arrives in
// arbitrary chunks. Scan state survives between chunks so no byte is examined
// twice.
type ObjectScanner struct {
	buf        []byte
	pos        int
	start      int
	depth      int
	inString   bool
	escaped    bool
	maxPending int
}

func NewObjectScanner(maxPending int) *ObjectScanner {
	return &ObjectScanner{start: -1, maxPending: maxPending}
}

func (s *ObjectScanner) Write(p []byte) (int, error) {
	s.buf = append(s.buf, p...)
	return len(p), nil
}

// Next returns the next complete object, or nil when more input is needed.
func (s *ObjectScanner) Next() ([]byte, error) {
	if s.scan() {
		object := make([]byte, s.pos-s.start)
		copy(object, s.buf[s.start:s.pos])
		s.reset()
		s.compact(s.pos)
		return object, nil
	}

	if s.start < 0 {
		s.compact(len(s.buf))
	} else {
		s.compact(s.start)
	}
	if s.maxPending > 0 && len(s.buf) > s.maxPending {
		return nil, fmt.Errorf("%w: %d bytes without a complete object", ErrDesynchronized, len(s.buf))
	}
	return nil, nil
}

// Pending reports how many bytes are buffered but not yet returned.
func (s *ObjectScanner) Pending() int {
	return len(s.buf)
}

// InObject reports whether an object has been opened but not closed.
func (s *ObjectScanner) InObject() bool {
	return s.start >= 0
}

// scan advances pos until an object closes. On success pos is one past the
// closing brace.
func (s *ObjectScanner) scan() bool {
	for s.pos < len(s.buf) {
		c := s.buf[s.pos]
		s.pos++
		if s.start < 0 {
			if c == '{' {
				s.start = s.pos - 1
				s.depth = 1
			}
			continue
		}
		if s.escaped {
			s.escaped = false
			continue
		}
		switch c {
		case '\\':
			s.escaped = true
		case '"':
			s.inString = !s.inString
		case '{':
			if !s.inString {
				s.depth++
			}
		case '}':
			if !s.inString {
				s.depth--
				if s.depth == 0 {
					return true
				}
			}
		}
	}
	return false
}

func (s *ObjectScanner) reset() {
	s.start = -1
	s.depth = 0
	s.inString = false
	s.escaped = false
}

// compact drops everything before offset.
func (s *ObjectScanner) compact(offset int) {
	n := copy(s.buf, s.buf[offset:])
	s.buf = s.buf[:n]
	s.pos -= offset
	if s.start >= 0 {
		s.start -= offset
	}
}

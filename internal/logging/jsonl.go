package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// tailChunk is how many bytes Tail reads per step backwards from EOF.
const tailChunk = 64 * 1024

// #region jsonl-sink
// JSONLSink appends one JSON record per line to a file.
type JSONLSink struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// OpenJSONL opens (or creates) the log in append mode.
func OpenJSONL(path string) (*JSONLSink, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log %s: %w", path, err)
	}
	return &JSONLSink{path: path, file: f}, nil
}

// Path returns the log file location.
func (s *JSONLSink) Path() string { return s.path }

// Append writes the record as a single line.
func (s *JSONLSink) Append(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return fmt.Errorf("append %s: %w", s.path, fs.ErrClosed)
	}
	if _, err := s.file.Write(data); err != nil {
		return fmt.Errorf("append %s: %w", s.path, err)
	}
	return nil
}

// Close closes the file handle. Reads keep working after Close.
func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// #endregion jsonl-sink

// #region jsonl-reader
// Tail reads backwards from the end of the file until n matching records are
// found, so a bounded n never loads the whole history.
func (s *JSONLSink) Tail(kind EventKind, n int) ([]Record, error) {
	return TailFileQuery(s.path, Query{Kind: kind}, n)
}

// TailQuery is Tail with the full query applied during the backwards scan.
func (s *JSONLSink) TailQuery(q Query, n int) ([]Record, error) {
	return TailFileQuery(s.path, q, n)
}

// ReadAll reads the whole log.
func (s *JSONLSink) ReadAll() ([]Record, error) {
	return ReadFile(s.path)
}

// TailFile is Tail for a log file that is not open for writing.
func TailFile(path string, kind EventKind, n int) ([]Record, error) {
	return TailFileQuery(path, Query{Kind: kind}, n)
}

// TailFileQuery is TailQuery for a log file that is not open for writing.
func TailFileQuery(path string, q Query, n int) ([]Record, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open log %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat log %s: %w", path, err)
	}
	return tailRecords(f, info.Size(), q, n, tailChunk)
}

func tailRecords(r io.ReaderAt, size int64, q Query, n, chunk int) ([]Record, error) {
	var out []Record // newest first until the final reverse
	var carry []byte
	off := size

	for off > 0 {
		step := int64(chunk)
		if off < step {
			step = off
		}
		off -= step

		buf := make([]byte, step, step+int64(len(carry)))
		if _, err := r.ReadAt(buf, off); err != nil && err != io.EOF {
			return nil, fmt.Errorf("read log: %w", err)
		}
		buf = append(buf, carry...)

		lines := bytes.Split(buf, []byte{'\n'})
		// The first fragment may continue in the previous chunk.
		if off > 0 {
			carry = lines[0]
			lines = lines[1:]
		} else {
			carry = nil
		}

		for i := len(lines) - 1; i >= 0; i-- {
			rec, ok := DecodeRecord(lines[i], q.Kind)
			if !ok || !q.Match(rec) {
				continue
			}
			out = append(out, rec)
			if n > 0 && len(out) == n {
				reverse(out)
				return out, nil
			}
		}
	}

	reverse(out)
	return out, nil
}

// ReadFile reads every well-formed record of a log file, oldest first.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open log %s: %w", path, err)
	}
	defer f.Close()
	return ReadRecords(f)
}

// ReadRecords decodes a JSON-lines stream, skipping malformed lines.
func ReadRecords(r io.Reader) ([]Record, error) {
	br := bufio.NewReader(r)
	var out []Record
	for {
		line, err := br.ReadBytes('\n')
		if rec, ok := DecodeRecord(line, ""); ok {
			out = append(out, rec)
		}
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("read log: %w", err)
		}
	}
}

// #endregion jsonl-reader

package telemetry

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"codeberg.org/mutker/npumon/internal/errors"
)

// Header is the CSV header row. Device follows Timestamp so the rows of
// one tick can be told apart by device index.
var Header = []string{
	"Timestamp",
	"Device",
	"Ambient Temperature",
	"SoC Peak Temperature",
	"Power Consumption",
	"Average PE Utilization",
}

// CSVSink appends records to a CSV file named after the run's start time.
// The file is reopened for every append; each row goes out in a single
// write on an O_APPEND descriptor and is truncated away again if that
// write fails, so a row is never left half-written.
type CSVSink struct {
	path string
	mu   sync.Mutex
}

// CSVFileName returns the file name used for a run started at t.
func CSVFileName(t time.Time) string {
	return fmt.Sprintf("npu_monitoring_%s.csv", t.Format("20060102_150405"))
}

// NewCSVSink creates the run's CSV file in dir and writes the header.
// It refuses to reuse an existing file.
func NewCSVSink(dir string, started time.Time) (*CSVSink, error) {
	errFactory := errors.New()

	if err := os.MkdirAll(dir, defaultDirPerm); err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  dir,
			Error: err.Error(),
		})
	}

	s := &CSVSink{path: filepath.Join(dir, CSVFileName(started))}

	header, err := encodeRow(Header)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	if err := s.create(header); err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	return s, nil
}

func (*CSVSink) Name() string {
	return SinkCSV
}

func (s *CSVSink) Location() string {
	return s.path
}

func (s *CSVSink) Write(ctx context.Context, record Record) error {
	errFactory := errors.New()

	if err := ctx.Err(); err != nil {
		return errFactory.Wrap(ErrSinkWrite, err)
	}

	row, err := encodeRow(recordFields(record))
	if err != nil {
		return errFactory.Wrap(ErrSinkWrite, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.append(row); err != nil {
		return errFactory.Wrap(ErrSinkWrite, fmt.Errorf("append to %s: %w", s.path, err))
	}

	return nil
}

// Close is a no-op: the file is not held open between writes.
func (*CSVSink) Close() error {
	return nil
}

func (s *CSVSink) create(data []byte) error {
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, defaultFilePerm)
	if err != nil {
		return err
	}

	if err := writeAll(f, data); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

func (s *CSVSink) append(row []byte) error {
	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_APPEND, defaultFilePerm)
	if os.IsNotExist(err) {
		// The file vanished underneath us; start it over with its header.
		header, herr := encodeRow(Header)
		if herr != nil {
			return herr
		}
		return s.create(append(header, row...))
	}
	if err != nil {
		return err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}

	if err := writeAll(f, row); err != nil {
		if terr := f.Truncate(info.Size()); terr != nil {
			err = fmt.Errorf("%w (truncate: %v)", err, terr)
		}
		f.Close()
		return err
	}

	return f.Close()
}

func writeAll(f *os.File, data []byte) error {
	n, err := f.Write(data)
	if err != nil {
		return err
	}
	if n != len(data) {
		return io.ErrShortWrite
	}

	return f.Sync()
}

func encodeRow(fields []string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(fields); err != nil {
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func recordFields(r Record) []string {
	return []string{
		r.Timestamp.Format(TimestampLayout),
		strconv.Itoa(r.DeviceIndex),
		formatFloat(r.Sample.AmbientTemperature),
		formatFloat(r.Sample.SocPeakTemperature),
		formatFloat(r.Sample.PowerWatts),
		formatFloat(r.Sample.AvgCoreUtilizationPercent),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

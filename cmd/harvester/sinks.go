package main

import (
	"log/slog"

	"github.com/kzharvest/harvester/pkg/record"
	"github.com/kzharvest/harvester/pkg/scanning"
	"github.com/kzharvest/harvester/pkg/storage"
	"github.com/kzharvest/harvester/pkg/storage/file"
	"github.com/kzharvest/harvester/pkg/storage/multi"
	"github.com/kzharvest/harvester/pkg/storage/serial"
)

// buildOpen provisions the output file and returns the per-scanner sink
// factory plus the closer for everything shared between scanners. mirrors are
// written alongside the file and are closed only by the returned closer.
func buildOpen(path string, serialWriter bool, mirrors []storage.Sink, logger *slog.Logger) (scanning.OpenFunc, func() error, error) {
	out, err := file.Open(path)
	if err != nil {
		return nil, nil, err
	}
	if out.Created() {
		logger.Info("created output file", "path", out.Path())
	}

	if serialWriter {
		w := serial.New(multi.New(append([]storage.Sink{out}, mirrors...)...),
			serial.WithOnError(func(rec record.Record, err error) {
				logger.Warn("persist failed", "record", rec.Label(), "error", err)
			}),
			serial.WithOnWritten(func(rec record.Record) {
				logger.Info("record written", "record", rec.Label())
			}))
		open := func(string) (storage.Sink, error) {
			return storage.NopCloser(w), nil
		}
		return open, w.Close, nil
	}

	// Each scanner gets its own append handle; the probe handle is not needed.
	if err := out.Close(); err != nil {
		return nil, nil, err
	}
	shared := multi.New(mirrors...)
	open := func(string) (storage.Sink, error) {
		f, err := file.Open(path)
		if err != nil {
			return nil, err
		}
		return multi.New(f, storage.NopCloser(shared)), nil
	}
	return open, shared.Close, nil
}

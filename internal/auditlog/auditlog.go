package auditlog

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/NT710/willmyflightbelate/internal/types"
)

// Log appends every served prediction to a daily JSON-lines file so
// predictions can be replayed against actual arrivals later. Files rotate
// at midnight UTC and the previous day is gzipped.
type Log struct {
	dir      string
	file     *os.File
	mu       sync.Mutex
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates an audit log writing under dir.
func New(dir string) *Log {
	return &Log{
		dir:      dir,
		stopChan: make(chan struct{}),
	}
}

// Start opens today's file and starts the rotation timer.
func (l *Log) Start() error {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create audit directory: %w", err)
	}
	if err := l.openCurrent(); err != nil {
		return err
	}

	l.wg.Add(1)
	go l.rotationTimer()

	return nil
}

// Stop halts rotation and closes the current file.
func (l *Log) Stop() error {
	close(l.stopChan)
	l.wg.Wait()

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Record appends one prediction as a JSON line.
func (l *Log) Record(result *types.PredictionResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal prediction for audit: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		if err := l.openCurrent(); err != nil {
			return err
		}
	}

	_, err = l.file.Write(append(data, '\n'))
	return err
}

// rotationTimer rotates at midnight UTC until stopped.
func (l *Log) rotationTimer() {
	defer l.wg.Done()

	for {
		now := time.Now().UTC()
		nextMidnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)

		select {
		case <-time.After(nextMidnight.Sub(now)):
			if err := l.rotateAndCompress(); err != nil {
				log.Printf("Warning: audit log rotation failed: %v", err)
			}
		case <-l.stopChan:
			return
		}
	}
}

// rotateAndCompress closes the active file, gzips yesterday's log, and
// opens a fresh file for the new day.
func (l *Log) rotateAndCompress() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		l.file.Close()
		l.file = nil
	}

	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	previous := l.fileFor(yesterday)
	if _, err := os.Stat(previous); err == nil {
		if err := compressFile(previous); err != nil {
			return fmt.Errorf("failed to compress audit file: %w", err)
		}
	}

	return l.openCurrent()
}

// openCurrent opens today's audit file for appending. Caller holds the lock
// except during Start.
func (l *Log) openCurrent() error {
	path := l.fileFor(time.Now().UTC())
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open audit file: %w", err)
	}
	l.file = file
	return nil
}

func (l *Log) fileFor(day time.Time) string {
	return filepath.Join(l.dir, fmt.Sprintf("predictions_%s.jsonl", day.Format("2006-01-02")))
}

// compressFile gzips path into path.gz and removes the original.
func compressFile(path string) error {
	source, err := os.Open(path)
	if err != nil {
		return err
	}
	defer source.Close()

	target, err := os.Create(path + ".gz")
	if err != nil {
		return err
	}
	defer target.Close()

	gzipWriter := gzip.NewWriter(target)
	if _, err := io.Copy(gzipWriter, source); err != nil {
		gzipWriter.Close()
		return err
	}
	if err := gzipWriter.Close(); err != nil {
		return err
	}

	return os.Remove(path)
}

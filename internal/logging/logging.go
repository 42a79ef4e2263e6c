package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"stars-engine/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	writerMu sync.RWMutex
	writer   io.Writer = os.Stdout
	fileOut  *rotatingFile
)

// Init configures the global zerolog logger. When cfg.File is set, output is
// tee'd into a rotating file next to stdout.
func Init(cfg config.LogConfig) error {
	level := zerolog.InfoLevel
	if v := strings.TrimSpace(cfg.Level); v != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(v)); err == nil {
			level = parsed
		}
	}

	var raw io.Writer = os.Stdout
	if cfg.File != "" {
		fw, err := openRotatingFile(cfg.File, cfg.MaxMB)
		if err != nil {
			return err
		}
		raw = io.MultiWriter(os.Stdout, fw)
		writerMu.Lock()
		if fileOut != nil {
			_ = fileOut.Close()
		}
		fileOut = fw
		writerMu.Unlock()
	}

	var output io.Writer = raw
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: raw}
	}

	writerMu.Lock()
	writer = raw
	writerMu.Unlock()

	zerolog.SetGlobalLevel(level)
	ctx := zerolog.New(output).With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	logger := ctx.Logger()
	if cfg.SampleEvery > 1 {
		logger = logger.Sample(&zerolog.BasicSampler{N: uint32(cfg.SampleEvery)})
	}
	log.Logger = logger
	return nil
}

// Writer returns the raw sink used by the global logger.
func Writer() io.Writer {
	writerMu.RLock()
	defer writerMu.RUnlock()
	return writer
}

func Close() error {
	writerMu.Lock()
	defer writerMu.Unlock()
	if fileOut == nil {
		return nil
	}
	err := fileOut.Close()
	fileOut = nil
	writer = os.Stdout
	return err
}

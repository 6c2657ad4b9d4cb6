package infrastructure

import (
	"io"
	"sync"

	"github.com/cheggaaa/pb/v3"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/yourusername/tiktok-extract-go/internal/domain"
)

// ProgressReporter receives the running byte count of one transfer.
type ProgressReporter interface {
	// Update is called after every chunk with the cumulative bytes written.
	Update(written int64)
	// Finish is called once when the transfer ends, successfully or not.
	Finish()
}

// ProgressFactory creates a reporter for a transfer of total bytes, or -1
// when the length is unknown.
type ProgressFactory func(total int64) ProgressReporter

const (
	barTemplate     = `{{string . "prefix"}}{{counters . }} {{bar . }} {{percent . }} {{speed . }} {{rtime . "ETA %s"}}`
	spinnerTemplate = `{{string . "prefix"}}{{cycle . "⠋" "⠙" "⠹" "⠸" "⠼" "⠴" "⠦" "⠧" "⠇" "⠏"}} {{counters . }} {{speed . }} {{etime . }}`
)

// NewBarProgress draws a terminal progress bar on w. Unknown lengths get a
// spinner with a byte counter instead.
func NewBarProgress(w io.Writer) ProgressFactory {
	return func(total int64) ProgressReporter {
		tmpl := barTemplate
		if total < 0 {
			tmpl = spinnerTemplate
			total = 0
		}
		bar := pb.ProgressBarTemplate(tmpl).New(0)
		bar.SetTotal(total)
		bar.SetWriter(w)
		bar.Set(pb.Bytes, true)
		bar.Set("prefix", "Downloading: ")
		bar.Start()
		return &barProgress{bar: bar}
	}
}

type barProgress struct {
	bar  *pb.ProgressBar
	once sync.Once
}

func (p *barProgress) Update(written int64) {
	p.bar.SetCurrent(written)
}

func (p *barProgress) Finish() {
	p.once.Do(func() { p.bar.Finish() })
}

// logUnknownStep is the byte interval between log lines when the total is
// unknown.
const logUnknownStep = 5 * 1024 * 1024

// NewLogProgress writes an info line every 10% of the transfer, or every
// 5 MiB when the length is unknown.
func NewLogProgress(log *zap.Logger, fields ...zap.Field) ProgressFactory {
	if log == nil {
		log = zap.NewNop()
	}
	return func(total int64) ProgressReporter {
		return &logProgress{
			log:   log.With(fields...),
			state: domain.NewProgressState(total),
		}
	}
}

type logProgress struct {
	log      *zap.Logger
	state    domain.ProgressState
	lastStep int64
	finished bool
}

func (p *logProgress) Update(written int64) {
	p.state.Written = written

	var step int64
	if p.state.Known() {
		step = int64(p.state.Percent()) / 10
	} else {
		step = written / logUnknownStep
	}
	if step <= p.lastStep {
		return
	}
	p.lastStep = step

	if p.state.Known() {
		p.log.Info("Transfer progress",
			zap.String("written", humanize.IBytes(uint64(written))),
			zap.String("total", humanize.IBytes(uint64(p.state.Total))),
			zap.Float64("percent", p.state.Percent()))
		return
	}
	p.log.Info("Transfer progress",
		zap.String("written", humanize.IBytes(uint64(written))))
}

func (p *logProgress) Finish() {
	if p.finished {
		return
	}
	p.finished = true
	p.log.Info("Transfer finished",
		zap.String("written", humanize.IBytes(uint64(p.state.Written))),
		zap.Int64("bytes", p.state.Written))
}

// NewCallbackProgress forwards every update to cb.
func NewCallbackProgress(cb domain.DownloadProgressCallback) ProgressFactory {
	return func(total int64) ProgressReporter {
		if total < 0 {
			total = -1
		}
		return &callbackProgress{cb: cb, total: total}
	}
}

type callbackProgress struct {
	cb    domain.DownloadProgressCallback
	total int64
}

func (p *callbackProgress) Update(written int64) {
	if p.cb != nil {
		p.cb(written, p.total)
	}
}

func (p *callbackProgress) Finish() {}

// MultiProgress fans one transfer out to several reporters. Nil factories are
// skipped.
func MultiProgress(factories ...ProgressFactory) ProgressFactory {
	return func(total int64) ProgressReporter {
		var m multiProgress
		for _, f := range factories {
			if f != nil {
				m = append(m, f(total))
			}
		}
		return m
	}
}

type multiProgress []ProgressReporter

func (m multiProgress) Update(written int64) {
	for _, r := range m {
		r.Update(written)
	}
}

func (m multiProgress) Finish() {
	for _, r := range m {
		r.Finish()
	}
}

// NopProgress discards all updates.
var NopProgress ProgressFactory = func(int64) ProgressReporter { return nopProgress{} }

type nopProgress struct{}

func (nopProgress) Update(int64) {}
func (nopProgress) Finish()      {}

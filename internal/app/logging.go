package app

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// NewLogger creates the application logger writing to w (os.Stderr if nil).
func NewLogger(w io.Writer, level log.Level) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	return log.NewWithOptions(w, log.Options{
		Prefix:          "chzapp",
		ReportTimestamp: true,
		Level:           level,
	})
}

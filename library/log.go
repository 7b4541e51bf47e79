/*
	Chronofile
	Copyright (c) 2020 Chronofile Authors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU Affero General Public License as published
	by the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU Affero General Public License for more details.

	You should have received a copy of the GNU Affero General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package library

import (
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the main process log. All named logs should be derivatives of
// this logger. All log emissions should be sent through this logger or
// one of its derivatives.
var Log = newLogger()

// newLogger returns a logger that writes to the console and, once a log
// file has been attached, to the file as well, with console and JSON
// encoders respectively. It is intended for setting up the main process
// logger during the program's init phase.
func newLogger() *zap.Logger {
	fileSync := zapcore.AddSync(logFileSink)

	fileOut := zapcore.Lock(fileSync)
	consoleOut := zapcore.Lock(os.Stderr)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = func(ts time.Time, encoder zapcore.PrimitiveArrayEncoder) {
		encoder.AppendString(ts.UTC().Format("2006/01/02 15:04:05.000"))
	}
	encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	consoleEncoder := zapcore.NewConsoleEncoder(encCfg)
	jsonEncoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())

	core := zapcore.NewTee(
		zapcore.NewCore(consoleEncoder, consoleOut, zap.InfoLevel),
		zapcore.NewCore(jsonEncoder, fileOut, zap.DebugLevel),
	)

	// avoid a firehose of logs on large batches
	const firstNMsgs, everyNthMsg = 10, 100
	core = zapcore.NewSamplerWithOptions(core, time.Second, firstNMsgs, everyNthMsg)

	return zap.New(&customCore{core})
}

// fileWriter is a write sink whose destination file can be attached
// after the logger has already been constructed. Writes are discarded
// until a file is attached, so the logger can be built during init and
// pointed at the configured log file later.
type fileWriter struct {
	file   *os.File
	fileMu sync.RWMutex
}

func (fw *fileWriter) Write(p []byte) (n int, err error) {
	fw.fileMu.RLock()
	defer fw.fileMu.RUnlock()
	if fw.file == nil {
		return len(p), nil
	}
	return fw.file.Write(p)
}

// Attach directs future writes to f. Any previously attached
// file is closed.
func (fw *fileWriter) Attach(f *os.File) {
	fw.fileMu.Lock()
	if fw.file != nil {
		fw.file.Close()
	}
	fw.file = f
	fw.fileMu.Unlock()
}

// logFileSink mediates the optional JSON log file output.
var logFileSink = new(fileWriter)

// AttachLogFile opens (or creates) the file at path and begins
// streaming JSON-encoded logs to it.
func AttachLogFile(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	logFileSink.Attach(f)
	return nil
}

// customCore wraps another zapcore.Core and prevents sampling based on logger name.
type customCore struct {
	zapcore.Core
}

func (c *customCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if ent.LoggerName == "organize.plan" {
		// always allow through, no sampling -- otherwise dry runs print a partial plan
		return ce.AddCore(ent, c)
	}
	return c.Core.Check(ent, ce)
}

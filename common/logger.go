// Copyright © 2017 Microsoft <wastore@microsoft.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package common

import (
	"os"
	"runtime"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel orders log severities from most urgent (LogFatal) to most
// verbose (LogDebug); a logger's minimum level admits everything at or
// below its own value. LogNone suppresses logging entirely.
type LogLevel uint8

const (
	LogNone LogLevel = iota
	LogFatal
	LogPanic
	LogError
	LogWarning
	LogInfo
	LogDebug
)

func (l LogLevel) String() string {
	switch l {
	case LogNone:
		return "NONE"
	case LogFatal:
		return "FATAL"
	case LogPanic:
		return "PANIC"
	case LogError:
		return "ERROR"
	case LogWarning:
		return "WARNING"
	case LogInfo:
		return "INFO"
	case LogDebug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

// ILogger is the logging seam every genforge package depends on. Call
// sites log through this interface and never reach for a concrete zap
// logger directly, generalizing the teacher's own
// ILogger/ILoggerCloser/ILoggerResetable split so the backend (zap here,
// a no-op in tests) can be swapped without touching callers.
type ILogger interface {
	ShouldLog(level LogLevel) bool
	Log(level LogLevel, msg string, kv ...interface{})
	Panic(err error)
}

type ILoggerCloser interface {
	ILogger
	CloseLog()
}

type ILoggerResetable interface {
	OpenLog()
	MinimumLogLevel() LogLevel
	ILoggerCloser
}

////////////////////////////////////////////////////////////////////////////////////////////////////////////////////////

// LogLevelOverrideLogger clamps an underlying logger to a tighter minimum
// level without constructing a whole new logger, same role as the
// teacher's type of the same name.
type LogLevelOverrideLogger struct {
	ILoggerResetable
	MinimumLevelToLog LogLevel
}

func (l LogLevelOverrideLogger) MinimumLogLevel() LogLevel {
	return l.MinimumLevelToLog
}

func (l LogLevelOverrideLogger) ShouldLog(level LogLevel) bool {
	if level == LogNone {
		return false
	}
	return level <= l.MinimumLevelToLog
}

////////////////////////////////////////////////////////////////////////////////////////////////////////////////////////

const maxLogSizeMB = 500

func zapLevelFor(l LogLevel) zapcore.Level {
	switch l {
	case LogPanic:
		return zapcore.PanicLevel
	case LogFatal:
		return zapcore.FatalLevel
	case LogError:
		return zapcore.ErrorLevel
	case LogWarning:
		return zapcore.WarnLevel
	case LogInfo:
		return zapcore.InfoLevel
	case LogDebug:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

// jobLogger is a per-job structured logger backed by zap, writing to a
// lumberjack-rotated file under logFileFolder. It replaces the teacher's
// hand-rolled stdlib *log.Logger + custom RotatingWriter with the
// ecosystem logging stack the rest of the corpus uses, while keeping the
// same "one logger per job, opened lazily, closed on completion"
// lifecycle.
type jobLogger struct {
	jobID             JobID
	minimumLevelToLog LogLevel
	logFileFolder     string
	logFileNameSuffix string
	zl                *zap.Logger
	rotator           *lumberjack.Logger
}

func NewJobLogger(jobID JobID, minimumLevelToLog LogLevel, logFileFolder string, logFileNameSuffix string) ILoggerResetable {
	return &jobLogger{
		jobID:             jobID,
		minimumLevelToLog: minimumLevelToLog,
		logFileFolder:     logFileFolder,
		logFileNameSuffix: logFileNameSuffix,
	}
}

func (jl *jobLogger) OpenLog() {
	if jl.minimumLevelToLog == LogNone {
		return
	}

	jl.rotator = &lumberjack.Logger{
		Filename: jl.logFileFolder + string(os.PathSeparator) + jl.jobID.String() + jl.logFileNameSuffix + ".log",
		MaxSize:  maxLogSizeMB,
		Compress: true,
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(jl.rotator), zapLevelFor(jl.minimumLevelToLog))
	jl.zl = zap.New(core).With(zap.String("jobID", jl.jobID.String()))
	jl.zl.Info("job log opened", zap.String("os", runtime.GOOS), zap.String("arch", runtime.GOARCH))
}

func (jl *jobLogger) MinimumLogLevel() LogLevel {
	return jl.minimumLevelToLog
}

func (jl *jobLogger) ShouldLog(level LogLevel) bool {
	if level == LogNone {
		return false
	}
	return level <= jl.minimumLevelToLog
}

func (jl *jobLogger) CloseLog() {
	if jl.minimumLevelToLog == LogNone || jl.zl == nil {
		return
	}
	jl.zl.Info("closing job log")
	_ = jl.zl.Sync()
	_ = jl.rotator.Close()
}

func (jl *jobLogger) Log(level LogLevel, msg string, kv ...interface{}) {
	if !jl.ShouldLog(level) || jl.zl == nil {
		return
	}
	jl.zl.Sugar().Logw(zapLevelFor(level), msg, kv...)
}

func (jl *jobLogger) Panic(err error) {
	if jl.zl != nil {
		jl.zl.Error("panic", zap.Error(err))
	}
	panic(err)
}

// NopLogger discards everything; the default logger in unit tests, the
// role the teacher's no-op logger plays in its own test harness.
type NopLogger struct{}

func (NopLogger) ShouldLog(LogLevel) bool                    { return false }
func (NopLogger) Log(LogLevel, string, ...interface{})       {}
func (NopLogger) Panic(err error)                             { panic(err) }
func (NopLogger) CloseLog()                                   {}

type causer interface {
	Cause() error
}

// Cause walks all the preceding errors and returns the originating error,
// the same helper the teacher keeps for pkg/errors-wrapped error chains.
func Cause(err error) error {
	for err != nil {
		c, ok := err.(causer)
		if !ok {
			break
		}
		err = c.Cause()
	}
	return err
}

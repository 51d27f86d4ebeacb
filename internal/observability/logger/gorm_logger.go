package logger

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger writes gorm statements to zap. Each entry carries the request id
// and actor from auditcontext and names the table the statement touched.
// Record-not-found is never logged; repositories turn it into a domain error.
type GormLogger struct {
	base          *zap.Logger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

func NewGormLogger(base *zap.Logger, slowThreshold time.Duration) *GormLogger {
	if base == nil {
		base = zap.NewNop()
	}
	return &GormLogger{
		base:          base.Named("gorm"),
		level:         gormlogger.Warn,
		slowThreshold: slowThreshold,
	}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Info {
		l.with(ctx).Sugar().Infof(msg, data...)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Warn {
		l.with(ctx).Sugar().Warnf(msg, data...)
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Error {
		l.with(ctx).Sugar().Errorf(msg, data...)
	}
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	if errors.Is(err, gormlogger.ErrRecordNotFound) {
		err = nil
	}

	elapsed := time.Since(begin)
	slow := l.slowThreshold > 0 && elapsed > l.slowThreshold
	if err == nil && !(slow && l.level >= gormlogger.Warn) && l.level < gormlogger.Info {
		return
	}

	sql, rows := fc()
	operation, table := describeStatement(sql)
	log := l.with(ctx).With(
		zap.String("operation", operation),
		zap.String("table", table),
		zap.Int64("rows", rows),
		zap.Duration("elapsed", elapsed),
	)
	switch {
	case err != nil:
		log.Error("query failed", zap.String("sql", sql), zap.Error(err))
	case slow:
		log.Warn("slow query", zap.String("sql", sql), zap.Duration("threshold", l.slowThreshold))
	default:
		log.Debug("query")
	}
}

// ParamsFilter keeps bound values out of the logged SQL; dream content and
// clarification text travel as parameters.
func (l *GormLogger) ParamsFilter(_ context.Context, sql string, _ ...any) (string, []any) {
	return sql, nil
}

func (l *GormLogger) with(ctx context.Context) *zap.Logger {
	return l.base.With(Fields(ctx)...)
}

// describeStatement returns the statement verb and the first table it names.
func describeStatement(sql string) (string, string) {
	tokens := strings.Fields(sql)
	operation := "OTHER"
	marker := ""
	for i, token := range tokens {
		word := strings.ToUpper(strings.Trim(token, "();"))
		if marker == "" {
			switch word {
			case "SELECT", "DELETE":
				operation, marker = word, "FROM"
			case "INSERT":
				operation, marker = word, "INTO"
			case "UPDATE":
				operation, marker = word, "UPDATE"
			}
		}
		if marker != "" && word == marker && i+1 < len(tokens) {
			return operation, strings.Trim(tokens[i+1], "`\"();")
		}
	}
	return operation, ""
}

var _ gormlogger.Interface = (*GormLogger)(nil)

// Package logger writes JSON lines through zerolog. Request-scoped fields
// travel on the context and are stamped onto every entry logged with it.
package logger

import (
	"context"
	"io"
	"maps"
	"os"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/angelmondragon/homedoc-backend/pkg/env"
	pkgerrors "github.com/angelmondragon/homedoc-backend/pkg/errors"
)

const (
	fieldService   = "service"
	fieldStack     = "stack"
	fieldRequestID = "request_id"
	fieldSessionID = "checkout_session_id"
	fieldProfileID = "profile_id"
)

// Options configures the structured logger.
type Options struct {
	ServiceName string
	Level       zerolog.Level
	WarnStack   bool
	Output      io.Writer
}

type Logger struct {
	root      zerolog.Logger
	warnStack bool
}

// field is one link of an immutable chain hung off a context. Children
// shadow parents that share a key.
type field struct {
	parent *field
	key    string
	value  any
}

type fieldsKey struct{}

func New(opts Options) *Logger {
	level := opts.Level
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano

	return &Logger{
		root: zerolog.New(writer(opts.Output)).
			Level(level).
			With().
			Timestamp().
			Str(fieldService, opts.ServiceName).
			Logger(),
		warnStack: opts.WarnStack,
	}
}

func writer(out io.Writer) io.Writer {
	if out == nil {
		out = os.Stdout
	}
	if strings.EqualFold(env.Get("LOG_FORMAT", "json"), "console") {
		return zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}
	return out
}

// ParseLevel maps LOG_LEVEL style strings to a level, falling back to info.
func ParseLevel(value string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(value)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func (l *Logger) WithField(ctx context.Context, key string, value any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	parent, _ := ctx.Value(fieldsKey{}).(*field)
	return context.WithValue(ctx, fieldsKey{}, &field{parent: parent, key: key, value: value})
}

// WithFields attaches fields in key order so entries render deterministically.
func (l *Logger) WithFields(ctx context.Context, fields map[string]any) context.Context {
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		ctx = l.WithField(ctx, k, fields[k])
	}
	return ctx
}

func (l *Logger) WithRequestID(ctx context.Context, requestID string) context.Context {
	return l.WithField(ctx, fieldRequestID, requestID)
}

func (l *Logger) WithSessionID(ctx context.Context, sessionID string) context.Context {
	return l.WithField(ctx, fieldSessionID, sessionID)
}

func (l *Logger) WithProfileID(ctx context.Context, profileID string) context.Context {
	return l.WithField(ctx, fieldProfileID, profileID)
}

func (l *Logger) Info(ctx context.Context, msg string) {
	withContext(l.root.Info(), ctx).Msg(msg)
}

func (l *Logger) Warn(ctx context.Context, msg string) {
	l.WarnErr(ctx, msg, nil)
}

// WarnErr logs a handled failure, such as a rejected request, with the same
// fault fields Error carries but without a forced stack.
func (l *Logger) WarnErr(ctx context.Context, msg string, err error) {
	event := withFault(withContext(l.root.Warn(), ctx), err)
	if l.warnStack {
		event = event.Str(fieldStack, stackTrace())
	}
	event.Msg(msg)
}

func (l *Logger) Error(ctx context.Context, msg string, err error) {
	withFault(withContext(l.root.Error(), ctx), err).
		Str(fieldStack, stackTrace()).
		Msg(msg)
}

func withContext(event *zerolog.Event, ctx context.Context) *zerolog.Event {
	if ctx == nil {
		return event
	}
	head, _ := ctx.Value(fieldsKey{}).(*field)
	seen := map[string]struct{}{}
	for f := head; f != nil; f = f.parent {
		if _, dup := seen[f.key]; dup {
			continue
		}
		seen[f.key] = struct{}{}
		event = event.Interface(f.key, f.value)
	}
	return event
}

// withFault records the typed code and any postgres or stripe diagnostics
// found in err's chain.
func withFault(event *zerolog.Event, err error) *zerolog.Event {
	if err == nil {
		return event
	}
	d := pkgerrors.Dump(err)
	event = event.Err(err).Strs("error_chain", d.Chain)
	if d.Code != "" {
		event = event.Str("error_code", string(d.Code))
	}
	if d.PGCode != "" {
		event = event.
			Str("pg_code", d.PGCode).
			Str("pg_constraint", d.PGConstraint).
			Str("pg_table", d.PGTable).
			Str("pg_column", d.PGColumn).
			Str("pg_detail", d.PGDetail).
			Str("pg_message", d.PGMessage)
	}
	if d.StripeCode != "" || d.StripeRequestID != "" {
		event = event.
			Str("stripe_code", d.StripeCode).
			Str("stripe_request_id", d.StripeRequestID).
			Int("stripe_status", d.StripeStatus)
	}
	return event
}

func stackTrace() string {
	return strings.TrimSpace(string(debug.Stack()))
}

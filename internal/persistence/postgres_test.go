package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/warranty-portal/internal/config"
)

func TestNewPostgresRequiresDSN(t *testing.T) {
	if _, err := NewPostgres(context.Background(), config.PostgresConfig{}, zap.NewNop()); !errors.Is(err, ErrNoDSN) {
		t.Fatalf("err = %v, want ErrNoDSN", err)
	}
}

func TestNilPostgresPingFails(t *testing.T) {
	var pg *Postgres
	if err := pg.Ping(context.Background()); err == nil {
		t.Fatal("expected ping on nil pool to fail")
	}
}

func TestSlowQueryTracer(t *testing.T) {
	cases := []struct {
		name      string
		threshold time.Duration
		err       error
		level     zapcore.Level
		message   string
	}{
		{name: "slow", threshold: time.Nanosecond, level: zapcore.WarnLevel, message: "slow query"},
		{name: "fast", threshold: time.Hour},
		{name: "failed", threshold: time.Hour, err: errors.New("boom"), level: zapcore.DebugLevel, message: "query failed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			tracer := &slowQueryTracer{logger: zap.New(core), threshold: tc.threshold}

			ctx := tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})
			time.Sleep(time.Millisecond)
			tracer.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{CommandTag: pgconn.NewCommandTag("SELECT 1"), Err: tc.err})

			entries := logs.All()
			if tc.message == "" {
				if len(entries) != 0 {
					t.Fatalf("unexpected log entries: %v", entries)
				}
				return
			}
			if len(entries) != 1 || entries[0].Message != tc.message || entries[0].Level != tc.level {
				t.Fatalf("entries = %v", entries)
			}
		})
	}
}

func TestRedisDisabledWithoutAddr(t *testing.T) {
	r := NewRedis(config.RedisConfig{}, zap.NewNop())
	if r.Enabled() {
		t.Fatal("redis should be disabled without an address")
	}
	r.Close()
}

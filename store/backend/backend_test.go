package backend_test

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/fulfillment"
	"github.com/xraph/fulfillment/config"
	"github.com/xraph/fulfillment/store/backend"
	"github.com/xraph/fulfillment/store/file"
	"github.com/xraph/fulfillment/store/memory"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := backend.Open(ctx, config.StoreConfig{Driver: config.DriverFile, DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("file driver: %v", err)
	}
	if _, ok := s.(*file.Store); !ok {
		t.Errorf("file driver returned %T", s)
	}
	s.Close() //nolint:errcheck // test cleanup

	s, err = backend.Open(ctx, config.StoreConfig{Driver: "MEMORY"})
	if err != nil {
		t.Fatalf("memory driver: %v", err)
	}
	if _, ok := s.(*memory.Store); !ok {
		t.Errorf("memory driver returned %T", s)
	}
}

func TestOpenErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.StoreConfig
		want error
	}{
		{"unknown driver", config.StoreConfig{Driver: "redis"}, fulfillment.ErrInvalidInput},
		{"postgres without dsn", config.StoreConfig{Driver: config.DriverPostgres}, fulfillment.ErrConfig},
		{"mongo without dsn", config.StoreConfig{Driver: config.DriverMongo}, fulfillment.ErrConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := backend.Open(context.Background(), tt.cfg); !errors.Is(err, tt.want) {
				t.Errorf("Open = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestFromGroveRejectsFileDriver(t *testing.T) {
	if _, err := backend.FromGrove(nil, config.DriverFile); !errors.Is(err, fulfillment.ErrInvalidInput) {
		t.Errorf("FromGrove(file) = %v, want ErrInvalidInput", err)
	}
}

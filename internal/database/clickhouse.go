package database

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// NewClickHouseConn opens a native-protocol ClickHouse connection for the
// visit analytics sink. Callers should treat a nil return as "analytics off".
func NewClickHouseConn(ctx context.Context, addr, database, username, password string) (clickhouse.Conn, error) {
	options := &clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		DialTimeout: 5 * time.Second,
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("error connecting to clickhouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("error pinging clickhouse: %w", err)
	}

	return conn, nil
}

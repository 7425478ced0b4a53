package dbconn

import (
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"
)

// Config holds MySQL connection settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string

	// Charset is sent as the connection charset (default utf8mb4).
	Charset string
}

// DefaultConfig returns a local connection configuration.
func DefaultConfig() Config {
	return Config{
		Host:    "127.0.0.1",
		Port:    3306,
		Charset: "utf8mb4",
	}
}

// DSN builds the go-sql-driver/mysql data source name. Importing the driver
// package here also registers it as "mysql" for Open.
func (c Config) DSN() string {
	mc := mysql.NewConfig()
	mc.User = c.User
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	mc.DBName = c.Database
	mc.ParseTime = true

	charset := c.Charset
	if charset == "" {
		charset = "utf8mb4"
	}
	mc.Params = map[string]string{"charset": charset}

	return mc.FormatDSN()
}

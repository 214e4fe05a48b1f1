package config

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type IngestMode string

const (
	IngestModeGRPC      IngestMode = "grpc"
	IngestModeWebSocket IngestMode = "websocket"
	HardcodedVersion    string     = "V0.1"
)

type Config struct {
	ServerVersion             string
	IngestMode                IngestMode
	GRPCListenAddr            string
	GRPCNodeStreamMethod      string
	GRPCInventoryStreamMethod string
	WSListenAddr              string
	WSPath                    string
	IngestToken               string
	StreamBuffer              int
	ProbeListenAddr           string
	PersistenceEnabled        bool
	EtcdEndpoints             []string
	EtcdDialTimeout           time.Duration
	EtcdTLS                   bool
	PersistTimeout            time.Duration
	ReportInterval            time.Duration
	HealthInterval            time.Duration
	ShutdownTimeout           time.Duration
	TLSEnabled                bool
	TLSSkipVerify             bool
	TLSCAPath                 string
	TLSCertPath               string
	TLSKeyPath                string
	LogJSON                   bool
	LogLevel                  string
}

func Load() (Config, error) {
	cfg := Config{
		ServerVersion:             HardcodedVersion,
		IngestMode:                IngestMode(strings.ToLower(env("FLEETMON_INGEST_MODE", string(IngestModeGRPC)))),
		GRPCListenAddr:            env("FLEETMON_GRPC_LISTEN_ADDR", "0.0.0.0:3001"),
		GRPCNodeStreamMethod:      env("FLEETMON_GRPC_NODE_STREAM_METHOD", "/fleetmon.monitoring.v1.MonitoringService/StreamNodeTelemetry"),
		GRPCInventoryStreamMethod: env("FLEETMON_GRPC_INVENTORY_STREAM_METHOD", "/fleetmon.monitoring.v1.MonitoringService/StreamContainerInventory"),
		WSListenAddr:              env("FLEETMON_WS_LISTEN_ADDR", "0.0.0.0:3002"),
		WSPath:                    env("FLEETMON_WS_PATH", "/ws/metrics"),
		IngestToken:               env("FLEETMON_INGEST_TOKEN", ""),
		StreamBuffer:              envInt("FLEETMON_STREAM_BUFFER", 1024),
		ProbeListenAddr:           env("FLEETMON_PROBE_ADDR", "0.0.0.0:7444"),
		PersistenceEnabled:        envBool("FLEETMON_PERSISTENCE_ENABLED", false),
		EtcdEndpoints:             envList("FLEETMON_ETCD_ENDPOINTS", []string{"127.0.0.1:2379"}),
		EtcdDialTimeout:           envDuration("FLEETMON_ETCD_DIAL_TIMEOUT", 5*time.Second),
		EtcdTLS:                   envBool("FLEETMON_ETCD_TLS", false),
		PersistTimeout:            envDuration("FLEETMON_PERSIST_TIMEOUT", 3*time.Second),
		ReportInterval:            envDuration("FLEETMON_REPORT_INTERVAL", 30*time.Second),
		HealthInterval:            envDuration("FLEETMON_HEALTH_INTERVAL", 10*time.Second),
		ShutdownTimeout:           envDuration("FLEETMON_SHUTDOWN_TIMEOUT", 20*time.Second),
		TLSEnabled:                envBool("FLEETMON_TLS_ENABLED", false),
		TLSSkipVerify:             envBool("FLEETMON_TLS_SKIP_VERIFY", false),
		TLSCAPath:                 env("FLEETMON_TLS_CA_PATH", ""),
		TLSCertPath:               env("FLEETMON_TLS_CERT_PATH", ""),
		TLSKeyPath:                env("FLEETMON_TLS_KEY_PATH", ""),
		LogJSON:                   envBool("FLEETMON_LOG_JSON", true),
		LogLevel:                  strings.ToLower(env("FLEETMON_LOG_LEVEL", "info")),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.IngestMode {
	case IngestModeGRPC, IngestModeWebSocket:
	default:
		return fmt.Errorf("unsupported ingest mode %q", c.IngestMode)
	}
	if c.IngestMode == IngestModeGRPC {
		if strings.TrimSpace(c.GRPCListenAddr) == "" {
			return errors.New("FLEETMON_GRPC_LISTEN_ADDR is required for grpc mode")
		}
		if strings.TrimSpace(c.GRPCNodeStreamMethod) == "" {
			return errors.New("FLEETMON_GRPC_NODE_STREAM_METHOD is required for grpc mode")
		}
		if strings.TrimSpace(c.GRPCInventoryStreamMethod) == "" {
			return errors.New("FLEETMON_GRPC_INVENTORY_STREAM_METHOD is required for grpc mode")
		}
	}
	if c.IngestMode == IngestModeWebSocket {
		if strings.TrimSpace(c.WSListenAddr) == "" {
			return errors.New("FLEETMON_WS_LISTEN_ADDR is required for websocket mode")
		}
		if !strings.HasPrefix(c.WSPath, "/") {
			return fmt.Errorf("FLEETMON_WS_PATH must start with /, got %q", c.WSPath)
		}
	}
	if strings.TrimSpace(c.ProbeListenAddr) == "" {
		return errors.New("FLEETMON_PROBE_ADDR is required")
	}
	if c.StreamBuffer <= 0 {
		return errors.New("FLEETMON_STREAM_BUFFER must be > 0")
	}
	if c.PersistenceEnabled && len(c.EtcdEndpoints) == 0 {
		return errors.New("FLEETMON_ETCD_ENDPOINTS is required when persistence is enabled")
	}
	if c.EtcdTLS && !c.TLSEnabled {
		return errors.New("FLEETMON_ETCD_TLS requires FLEETMON_TLS_ENABLED for the TLS material")
	}
	if c.ReportInterval <= 0 {
		return errors.New("FLEETMON_REPORT_INTERVAL must be > 0")
	}
	if c.HealthInterval <= 0 {
		return errors.New("FLEETMON_HEALTH_INTERVAL must be > 0")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("FLEETMON_SHUTDOWN_TIMEOUT must be > 0")
	}
	if c.TLSEnabled && (c.TLSCertPath == "" || c.TLSKeyPath == "") {
		return errors.New("TLS cert and key are required when TLS is enabled")
	}
	return nil
}

// TLSConfig builds the server-side TLS configuration, also used for the
// etcd client when FLEETMON_ETCD_TLS is set.
func (c Config) TLSConfig() (*tls.Config, error) {
	if !c.TLSEnabled {
		return nil, nil
	}
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: c.TLSSkipVerify}
	if c.TLSCAPath != "" {
		caBytes, err := os.ReadFile(c.TLSCAPath)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caBytes) {
			return nil, errors.New("append CA cert failed")
		}
		tlsCfg.RootCAs = pool
		tlsCfg.ClientCAs = pool
	}
	crt, err := tls.LoadX509KeyPair(c.TLSCertPath, c.TLSKeyPath)
	if err != nil {
		return nil, fmt.Errorf("load TLS cert/key: %w", err)
	}
	tlsCfg.Certificates = []tls.Certificate{crt}
	return tlsCfg, nil
}

func env(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return fallback
	}
	switch v {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envList(key string, fallback []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

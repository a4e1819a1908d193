// Package server publishes the status of running jobs over the gRPC health
// checking protocol. Every job is a health service named after the job.
package server

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"

	"github.com/joshuarubin/job-runner/pkg/job"
)

// TLS contains the tls configuration passed in via cli flags
type TLS struct {
	CACertFileName string
	CertFileName   string
	KeyFileName    string
}

// Enabled returns whether or not a server certificate was configured
func (t *TLS) Enabled() bool {
	return t.CertFileName != ""
}

// Config contains all configuration passed in via cli flags
type Config struct {
	Addr            string
	TLS             TLS
	ShutdownTimeout time.Duration
}

const (
	DefaultShutdownTimeout  = 30 * time.Second
	DefaultKeepaliveTime    = 30 * time.Second
	DefaultKeepaliveTimeout = 20 * time.Second
	DefaultKeepaliveMinTime = 15 * time.Second
)

// Flags binds the configuration to cmd's flags
func (c *Config) Flags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&c.Addr, "health-addr", "", "serve job status over grpc health checks on this address, empty disables")

	cmd.Flags().StringVar(&c.TLS.CACertFileName, "tls-ca-cert", "", "tls ca cert file name to use for validating client certificates")
	cmd.Flags().StringVar(&c.TLS.CertFileName, "tls-cert", "", "tls server certificate file name")
	cmd.Flags().StringVar(&c.TLS.KeyFileName, "tls-key", "", "tls server key file name")
	cmd.MarkFlagsRequiredTogether("tls-cert", "tls-key")

	cmd.Flags().DurationVar(&c.ShutdownTimeout, "shutdown-timeout", DefaultShutdownTimeout, "time to wait for connections to close before forcing shutdown")
}

// Enabled returns whether or not the server should be started
func (c *Config) Enabled() bool {
	return c.Addr != ""
}

// Server is a grpc server with the health and reflection services
type Server struct {
	cfg    *Config
	s      *grpc.Server
	health *health.Server
}

// New creates a Server. All job services start as NOT_SERVING until their
// status is set.
func New(cfg *Config) (*Server, error) {
	srv := Server{
		cfg: cfg,
	}

	opts := []grpc.ServerOption{
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    DefaultKeepaliveTime,
			Timeout: DefaultKeepaliveTimeout,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             DefaultKeepaliveMinTime,
			PermitWithoutStream: true,
		}),
	}

	if cfg.TLS.Enabled() {
		tlsConfig, err := srv.tlsConfig()
		if err != nil {
			return nil, err
		}
		opts = append(opts, grpc.Creds(credentials.NewTLS(tlsConfig)))
	}

	srv.s = grpc.NewServer(opts...)
	srv.health = health.NewServer()
	healthpb.RegisterHealthServer(srv.s, srv.health)
	reflection.Register(srv.s)

	return &srv, nil
}

func (s *Server) tlsConfig() (*tls.Config, error) {
	crt, err := tls.LoadX509KeyPair(s.cfg.TLS.CertFileName, s.cfg.TLS.KeyFileName)
	if err != nil {
		return nil, fmt.Errorf("error loading server keypair: %w", err)
	}

	cfg := tls.Config{
		Certificates: []tls.Certificate{crt},
		MinVersion:   tls.VersionTLS13,
	}

	if s.cfg.TLS.CACertFileName == "" {
		return &cfg, nil
	}

	caCert, err := os.ReadFile(s.cfg.TLS.CACertFileName)
	if err != nil {
		return nil, fmt.Errorf("error loading ca-cert file: %w", err)
	}

	clientCAs := x509.NewCertPool()
	if !clientCAs.AppendCertsFromPEM(caCert) {
		return nil, errNoCACerts
	}

	cfg.ClientAuth = tls.RequireAndVerifyClientCert
	cfg.ClientCAs = clientCAs

	return &cfg, nil
}

var errNoCACerts = errors.New("no certificates found in ca-cert file")

// Listen opens the configured address
func (s *Server) Listen() (net.Listener, error) {
	return net.Listen("tcp", s.cfg.Addr)
}

// Serve accepts connections on lis until the server is stopped
func (s *Server) Serve(lis net.Listener) error {
	slog.Info("listening", "addr", lis.Addr())

	return s.s.Serve(lis)
}

// Stop closes all connections immediately
func (s *Server) Stop() {
	s.s.Stop()
}

// GracefulStop marks every service as NOT_SERVING and waits for pending
// requests to complete
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.s.GracefulStop()
}

// ServingStatus maps a job status to a health status. Running and finished
// jobs are serving, everything else is not.
func ServingStatus(st job.Status) healthpb.HealthCheckResponse_ServingStatus {
	switch st {
	case job.StatusRunning, job.StatusFinish:
		return healthpb.HealthCheckResponse_SERVING
	default:
		return healthpb.HealthCheckResponse_NOT_SERVING
	}
}

// SetJobStatus updates the health service named after the job. It has the
// signature of job.Config.OnStatus.
func (s *Server) SetJobStatus(j *job.Job, st job.Status) {
	s.health.SetServingStatus(j.Name(), ServingStatus(st))
}

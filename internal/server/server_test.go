package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/joshuarubin/job-runner/pkg/job"
)

func TestServingStatus(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)

	for _, st := range job.Statuses() {
		expect := healthpb.HealthCheckResponse_NOT_SERVING
		if st == job.StatusRunning || st == job.StatusFinish {
			expect = healthpb.HealthCheckResponse_SERVING
		}
		assert.Equal(expect, ServingStatus(st), st.String())
	}
}

func TestServer(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	assert := assert.New(t)

	cfg := Config{Addr: "127.0.0.1:0"}
	srv, err := New(&cfg)
	require.NoError(err)

	lis, err := srv.Listen()
	require.NoError(err)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(lis)
	}()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(err)
	defer conn.Close()

	client := healthpb.NewHealthClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	j, err := job.New([]string{"true"}, &job.Config{Name: "build"})
	require.NoError(err)

	_, err = client.Check(ctx, &healthpb.HealthCheckRequest{Service: "build"})
	assert.Equal(codes.NotFound, status.Code(err))

	srv.SetJobStatus(j, job.StatusStarting)
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: "build"})
	require.NoError(err)
	assert.Equal(healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())

	srv.SetJobStatus(j, job.StatusRunning)
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{Service: "build"})
	require.NoError(err)
	assert.Equal(healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	// the server itself is always serving
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(err)
	assert.Equal(healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	srv.GracefulStop()
	require.NoError(<-errCh)
}

func TestTLSConfig(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Addr: "127.0.0.1:0",
		TLS: TLS{
			CertFileName: "missing.crt",
			KeyFileName:  "missing.key",
		},
	}
	_, err := New(&cfg)
	require.ErrorContains(t, err, "error loading server keypair")
}

package cli

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"math-dash-service/internal/config"

	"go.uber.org/zap"
)

func TestRunServerFailsWhenPortIsTaken(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	cfg := config.Default()
	cfg.Server.Port = strconv.Itoa(ln.Addr().(*net.TCPAddr).Port)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	if err := runServer(ctx, cfg, zap.NewNop()); err == nil {
		t.Fatalf("expected a listen error on a taken port")
	}
	if time.Since(start) > 4*time.Second {
		t.Fatalf("runServer waited for shutdown instead of failing fast")
	}
}

// Package nats runs the embedded JetStream server that backs the local
// submission journal.
package nats

import (
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/mark3labs/automatr/internal/logger"
)

// Broker bundles an embedded server with its in-process connection.
type Broker struct {
	Server *server.Server
	Conn   *nats.Conn
	JS     jetstream.JetStream
}

// Start launches an embedded server storing JetStream data in dataDir and
// connects to it in-process.
func Start(dataDir string) (*Broker, error) {
	ns, err := StartEmbeddedNATS(dataDir)
	if err != nil {
		return nil, err
	}
	nc, err := ConnectInProcess(ns)
	if err != nil {
		_ = Shutdown(nil, ns)
		return nil, err
	}
	js, err := jetstream.New(nc)
	if err != nil {
		_ = Shutdown(nc, ns)
		return nil, fmt.Errorf("creating jetstream context: %w", err)
	}
	return &Broker{Server: ns, Conn: nc, JS: js}, nil
}

// Close drains the connection and stops the server.
func (b *Broker) Close() error {
	if b == nil {
		return nil
	}
	return Shutdown(b.Conn, b.Server)
}

// StartEmbeddedNATS starts a JetStream-enabled server that listens on no
// network port.
func StartEmbeddedNATS(dataDir string) (*server.Server, error) {
	logger.Debug("Starting embedded NATS server with data dir: %s", dataDir)

	ns, err := server.NewServer(&server.Options{
		JetStream:  true,
		StoreDir:   dataDir,
		DontListen: true,
	})
	if err != nil {
		logger.Error("Failed to create NATS server: %v", err)
		return nil, fmt.Errorf("creating nats server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(4 * time.Second) {
		logger.Error("NATS server failed to start within 4s timeout")
		ns.Shutdown()
		return nil, errors.New("nats server failed to start within timeout")
	}
	logger.Debug("NATS server ready for connections")
	return ns, nil
}

// ConnectInProcess connects to an embedded server without using the network.
func ConnectInProcess(ns *server.Server) (*nats.Conn, error) {
	conn, err := nats.Connect("", nats.InProcessServer(ns))
	if err != nil {
		logger.Error("Failed to connect to NATS in-process: %v", err)
		return nil, fmt.Errorf("connecting in-process: %w", err)
	}
	return conn, nil
}

// Shutdown drains nc, falling back to a hard close after 2s, then stops ns
// and waits up to 5s for it.
func Shutdown(nc *nats.Conn, ns *server.Server) error {
	if nc != nil {
		drained := make(chan error, 1)
		go func() { drained <- nc.Drain() }()

		select {
		case err := <-drained:
			if err != nil {
				logger.Warn("NATS drain failed, forcing close: %v", err)
				nc.Close()
			}
		case <-time.After(2 * time.Second):
			logger.Warn("NATS drain timed out after 2s, forcing close")
			nc.Close()
		}
	}

	if ns == nil {
		return nil
	}
	ns.Shutdown()

	stopped := make(chan struct{})
	go func() {
		ns.WaitForShutdown()
		close(stopped)
	}()
	select {
	case <-stopped:
		logger.Debug("NATS server shut down cleanly")
		return nil
	case <-time.After(5 * time.Second):
		logger.Error("NATS server shutdown timed out after 5s")
		return errors.New("nats server shutdown timed out")
	}
}

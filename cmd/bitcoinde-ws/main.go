// Command bitcoinde-ws ingests bitcoin.de's market-data feed from its
// four mirrors, deduplicates across them, and republishes the unified
// stream as MessagePack documents on a ZeroMQ PUB socket.
package main

import (
	"context"
	"crypto/x509"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/matzefriedrich/bitcoinDE-API/internal/config"
	"github.com/matzefriedrich/bitcoinDE-API/internal/dispatch"
	"github.com/matzefriedrich/bitcoinDE-API/internal/fanout"
	"github.com/matzefriedrich/bitcoinDE-API/internal/protocol"
	"github.com/matzefriedrich/bitcoinDE-API/internal/sink"
	"github.com/matzefriedrich/bitcoinDE-API/internal/source"
)

func main() {
	os.Exit(run())
}

func run() int {
	var port int
	flag.IntVar(&port, "port", 0, "publish port (default 5634)")
	flag.IntVar(&port, "p", 0, "publish port (shorthand for --port)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config", "err", err)
		return 1
	}
	cfg.WithPort(port)

	if _, err := x509.SystemCertPool(); err != nil {
		logger.Error("load system trust store", "err", err)
		return 1
	}

	zmqSink, err := sink.NewZmqSink(cfg.PublishPort, logger)
	if err != nil {
		logger.Error("bind publish socket", "err", err)
		return 1
	}
	defer zmqSink.Close()

	hub := fanout.New(logger)
	hub.Register(zmqSink)

	handlers := dispatch.NewDefaultHandlers(cfg.RetentionWindow, logger)
	dispatcher := dispatch.New(handlers, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	deliveries := make(chan source.Delivery, 256)

	for i, m := range cfg.Mirrors {
		desc := source.Descriptor{
			SourceID: i + 1,
			Hostname: m.Hostname,
			NewProto: protocolFactory(m.Variant, logger),
		}
		sup := source.New(desc, logger)
		go sup.Run(ctx, deliveries)
	}

	go drainDeliveries(ctx, deliveries, dispatcher, hub)

	<-ctx.Done()
	logger.Info("shutting down")
	return 0
}

// protocolFactory returns a source.ProtocolFactory for the given variant
// name ("V09" or "V20"), defaulting to V09 for anything unrecognized.
func protocolFactory(variant string, logger *slog.Logger) source.ProtocolFactory {
	return func() source.Protocol {
		switch variant {
		case "V20":
			return &protocol.V20{Logger: logger}
		default:
			return &protocol.V09{Logger: logger}
		}
	}
}

// drainDeliveries feeds every source.Delivery through the dispatcher and
// broadcasts canonical events emitted on first sighting.
func drainDeliveries(ctx context.Context, in <-chan source.Delivery, d *dispatch.Dispatcher, hub *fanout.Hub) {
	for {
		select {
		case <-ctx.Done():
			return
		case del := <-in:
			evt, emitted := d.Dispatch(dispatch.Delivery{
				Name:      del.Event.Name,
				Data:      del.Event.Args,
				RawData:   del.Event.RawArgs,
				SourceID:  del.SourceID,
				ArrivedAt: del.Event.ReceiveAt,
			})
			if emitted {
				hub.Broadcast(evt)
			}
		}
	}
}

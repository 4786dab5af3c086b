// Command probe plays the controller: it sends one articulation command
// through the hub, waits for the relay's capture and writes it to disk.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/satriahrh/tractrelay/domain/entities"
	"github.com/satriahrh/tractrelay/internal/audiofile"
	"github.com/satriahrh/tractrelay/internal/auth"
	"github.com/satriahrh/tractrelay/internal/codec"
	"github.com/satriahrh/tractrelay/usecase"
)

func main() {
	var (
		url      = flag.String("url", "ws://localhost:5678/ws", "hub websocket URL")
		command  = flag.String("command", "", "articulation command to send (random when empty)")
		format   = flag.String("format", "byte", "relay sample format: byte or float")
		out      = flag.String("out", "capture.wav", "output file; .bin writes the raw payload")
		rate     = flag.Int("wav-rate", audiofile.DefaultSampleRate, "sample rate stamped on the WAV file")
		secret   = flag.String("secret", os.Getenv("HUB_JWT_SECRET"), "hub JWT secret, used to mint a controller token")
		token    = flag.String("token", "", "controller token; overrides -secret")
		timeout  = flag.Duration("timeout", 30*time.Second, "how long to wait for the capture")
		validate = flag.Bool("validate", false, "only decode -command and exit")
	)
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	sampleFormat, err := entities.ParseSampleFormat(*format)
	if err != nil {
		logger.Fatal("Invalid format", zap.Error(err))
	}

	raw := *command
	if raw == "" {
		rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		raw = codec.EncodeCommand(usecase.RandomCommand(rng))
	}
	cmd, err := codec.Decode(raw)
	if err != nil {
		logger.Fatal("Invalid command", zap.Error(err))
	}
	if *validate {
		fmt.Printf("%+v\n", cmd)
		return
	}

	if *token == "" && *secret != "" {
		*token, err = auth.GeneratePeerToken([]byte(*secret), "probe", auth.RoleController, time.Hour)
		if err != nil {
			logger.Fatal("Failed to mint token", zap.Error(err))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	payload, chunks, err := probe(ctx, *url, *token, raw, logger)
	if err != nil {
		logger.Fatal("Probe failed", zap.Error(err))
	}

	if err := write(*out, sampleFormat, payload, *rate); err != nil {
		logger.Fatal("Failed to write capture", zap.Error(err))
	}

	logger.Info("Capture received",
		zap.Int("bytes", len(payload)),
		zap.Int("chunks", chunks),
		zap.Float64("pitch", cmd.Pitch),
		zap.String("out", *out))
}

func probe(ctx context.Context, url, token, command string, logger *zap.Logger) ([]byte, int, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, auth.BearerHeader(token))
	if err != nil {
		return nil, 0, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	// Unblock the read loop on timeout or interrupt.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	logger.Info("Sending command", zap.String("command", command))
	if err := conn.WriteMessage(websocket.TextMessage, []byte(command)); err != nil {
		return nil, 0, fmt.Errorf("send command: %w", err)
	}

	var asm codec.Assembler
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, 0, fmt.Errorf("no capture received: %w", ctx.Err())
			}
			return nil, 0, fmt.Errorf("read: %w", err)
		}

		msg := entities.BinaryMessage(data)
		if messageType == websocket.TextMessage {
			msg = entities.TextMessage(string(data))
		}

		done, err := asm.Feed(msg)
		if err != nil {
			return nil, 0, err
		}
		if done {
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return asm.Payload(), asm.Chunks(), nil
		}
	}
}

func write(path string, format entities.SampleFormat, payload []byte, rate int) error {
	if strings.HasSuffix(path, ".bin") {
		return os.WriteFile(path, payload, 0o644)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := audiofile.WriteWAV(f, format, payload, rate); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

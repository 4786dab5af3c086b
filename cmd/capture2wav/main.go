// Command capture2wav converts a raw capture payload into a WAV file.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/tractrelay/domain/entities"
	"github.com/satriahrh/tractrelay/internal/audiofile"
)

func main() {
	var (
		format = flag.String("format", "float", "capture sample format: byte or float")
		rate   = flag.Int("rate", audiofile.DefaultSampleRate, "sample rate stamped on the WAV file")
		out    = flag.String("out", "", "output path (default: input with .wav extension)")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: capture2wav [flags] <capture.bin>\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	in := flag.Arg(0)

	sampleFormat, err := entities.ParseSampleFormat(*format)
	if err != nil {
		logger.Fatal("Invalid format", zap.Error(err))
	}

	dst := *out
	if dst == "" {
		dst = strings.TrimSuffix(in, ".bin") + ".wav"
	}

	payload, err := os.ReadFile(in)
	if err != nil {
		logger.Fatal("Failed to read capture", zap.Error(err))
	}

	f, err := os.Create(dst)
	if err != nil {
		logger.Fatal("Failed to create output", zap.Error(err))
	}
	if err := audiofile.WriteWAV(f, sampleFormat, payload, *rate); err != nil {
		f.Close()
		logger.Fatal("Failed to write WAV", zap.Error(err))
	}
	if err := f.Close(); err != nil {
		logger.Fatal("Failed to close output", zap.Error(err))
	}

	logger.Info("Capture converted",
		zap.String("in", in),
		zap.String("out", dst),
		zap.Int("samples", len(payload)/sampleFormat.BytesPerSample()))
}

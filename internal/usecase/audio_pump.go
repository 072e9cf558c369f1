package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"visionary/internal/codec"
	"visionary/internal/domain"
	"visionary/internal/logging"
	"visionary/internal/metrics"
	"visionary/internal/ports"
)

func pumpMicrophone(
	ctx context.Context,
	mic io.Reader,
	send sendFunc,
	chunkSamples int,
	sampleRate int,
	events ports.EventSink,
	log *slog.Logger,
	done chan struct{},
) {
	defer close(done)

	if chunkSamples < 256 {
		chunkSamples = 4096
	}

	buf := make([]byte, chunkSamples*4)
	for {
		n, err := io.ReadFull(mic, buf)
		if n >= 4 {
			chunk := codec.CreateAudioBlob(codec.Float32FromLE(buf[:n]), sampleRate)
			if sendErr := send(ctx, chunk); sendErr != nil {
				if ctx.Err() == nil {
					log.Warn("microphone send failed", logging.Err(sendErr))
					events.SessionError(domain.ErrorCodeAudioStream, fmt.Sprintf("failed to stream audio: %v", sendErr))
				}
				return
			}
			metrics.AudioChunksSent.Inc()
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) && ctx.Err() == nil {
				log.Warn("microphone read failed", logging.Err(err))
				events.SessionError(domain.ErrorCodeAudioStream, fmt.Sprintf("audio capture error: %v", err))
			}
			return
		}
	}
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"

	"voicelog/internal/domain"
	"voicelog/internal/ports"
)

// recording is a microphone capture being written to an audio artifact.
type recording struct {
	cancel func()
	audio  ports.AudioSession
	writer ports.ArtifactWriter
	done   chan struct{}
}

func (c *Controller) startRecording(ctx context.Context) (*recording, error) {
	writer, err := c.artifacts.Create(ctx, c.cfg.Audio)
	if err != nil {
		return nil, err
	}

	// Capture outlives the Start call; Stop and Abort end it.
	sessionCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	audio, err := c.audio.Start(sessionCtx, c.cfg.Audio)
	if err != nil {
		cancel()
		_ = writer.Discard()
		return nil, err
	}

	rec := &recording{
		cancel: cancel,
		audio:  audio,
		writer: writer,
		done:   make(chan struct{}),
	}
	go pumpAudioChunks(audio, writer, c.cfg.ChunkSize, c.events, rec.done)
	return rec, nil
}

// finish stops capture and finalises the artifact. An empty clip yields domain.ErrNoAudio.
func (c *Controller) finish(rec *recording) (domain.AudioArtifact, error) {
	if err := rec.audio.Stop(); err != nil {
		c.events.SessionError(domain.ErrorCodeAudioStop, "failed to stop audio capture cleanly")
	}
	<-rec.done
	rec.cancel()
	_ = rec.audio.Close()
	return rec.writer.Commit()
}

// discard stops capture and deletes the partial artifact.
func (c *Controller) discard(rec *recording) {
	rec.cancel()
	_ = rec.audio.Stop()
	<-rec.done
	_ = rec.audio.Close()
	if err := rec.writer.Discard(); err != nil {
		c.logger.Warn("discard partial recording", "error", err)
	}
}

func pumpAudioChunks(
	audio ports.AudioSession,
	sink io.Writer,
	chunkSize int,
	events ports.EventSink,
	done chan struct{},
) {
	defer close(done)

	if chunkSize < 256 {
		chunkSize = 4096
	}

	buf := make([]byte, chunkSize)
	for {
		n, err := audio.Read(buf)
		if n > 0 {
			if _, writeErr := sink.Write(buf[:n]); writeErr != nil {
				events.SessionError(domain.ErrorCodeAudioStream, fmt.Sprintf("failed to record audio: %v", writeErr))
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				events.SessionError(domain.ErrorCodeAudioStream, fmt.Sprintf("audio capture error: %v", err))
			}
			return
		}
	}
}

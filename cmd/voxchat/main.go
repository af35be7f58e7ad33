// voxchat is the voice client: it turns captured audio into a chat message,
// streams the reply from a voxd gateway and speaks it sentence by sentence.
package main

import (
	"bufio"
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-audio/wav"
	"github.com/google/uuid"
	"github.com/mattn/go-shellwords"

	"github.com/voxbridge/voxbridge/internal/client"
	"github.com/voxbridge/voxbridge/internal/config"
	"github.com/voxbridge/voxbridge/internal/protocol"
	"github.com/voxbridge/voxbridge/internal/speech"
)

func main() {
	var (
		configPath string
		serverURL  string
		audioPath  string
		mute       bool
	)

	flag.StringVar(&configPath, "config", "vox.yaml", "Path to configuration file")
	flag.StringVar(&serverURL, "server", "", "Gateway URL (overrides config)")
	flag.StringVar(&audioPath, "audio", "", "WAV file to transcribe and send as a single message")
	flag.BoolVar(&mute, "mute", false, "Print replies without speaking them")
	flag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	level.Set(cfg.Telemetry.SlogLevel())
	if serverURL != "" {
		cfg.Client.ServerURL = serverURL
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApp(cfg, mute, logger)
	if err != nil {
		logger.Error("failed to start", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer app.close()

	if audioPath != "" {
		if err := app.runOnce(ctx, audioPath); err != nil {
			logger.Error("voice turn failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		return
	}

	app.runREPL(ctx)
}

type app struct {
	cfg        config.Config
	client     *client.Client
	recognizer speech.Recognizer
	queue      *speech.Queue
	sessionID  string
	history    []protocol.ChatTurn
	logger     *slog.Logger
	player     *exec.Cmd
	playerIn   io.WriteCloser
}

func newApp(cfg config.Config, mute bool, logger *slog.Logger) (*app, error) {
	recognizer, err := speech.RecognizerFromConfig(cfg.Recognizer)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:        cfg,
		client:     client.New(cfg.Client, logger),
		recognizer: recognizer,
		sessionID:  uuid.NewString(),
		logger:     logger,
	}

	if !mute {
		synth, err := speech.SynthesizerFromConfig(cfg.Synthesizer)
		if err != nil {
			return nil, err
		}
		sink, err := a.openPlayer()
		if err != nil {
			return nil, err
		}
		engine := speech.NewSynthEngine(synth, sink, cfg.Synthesizer.Voice, logger)
		a.queue = speech.NewQueue(engine, logger)
	}

	return a, nil
}

// openPlayer starts the configured audio player and returns its stdin as the
// PCM sink. Without a player the audio is discarded, which still exercises
// the full synthesis path.
func (a *app) openPlayer() (io.Writer, error) {
	command := a.cfg.Synthesizer.PlayerCommand
	if command == "" {
		return io.Discard, nil
	}
	args, err := shellwords.NewParser().Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse player command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("player command is empty")
	}
	cmd := exec.Command(args[0], args[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start player: %w", err)
	}
	a.player = cmd
	a.playerIn = stdin
	return stdin, nil
}

func (a *app) close() {
	if a.queue != nil {
		a.queue.CancelAll()
	}
	if a.playerIn != nil {
		a.playerIn.Close()
	}
	if a.player != nil {
		_ = a.player.Wait()
	}
}

// runOnce transcribes one WAV file and performs a single chat turn.
func (a *app) runOnce(ctx context.Context, audioPath string) error {
	pcm, sampleRate, channels, err := readWav(audioPath)
	if err != nil {
		return fmt.Errorf("read audio: %w", err)
	}
	transcript, err := a.recognizer.Transcribe(ctx, pcm, sampleRate, channels)
	if err != nil {
		return fmt.Errorf("transcribe: %w", err)
	}
	if strings.TrimSpace(transcript.Text) == "" {
		return fmt.Errorf("recognizer produced an empty transcript")
	}
	fmt.Printf("you: %s\n", transcript.Text)
	return a.chatTurn(ctx, transcript.Text)
}

// runREPL reads typed messages; a line of the form @path.wav is transcribed
// first. Recognition failures reset the turn instead of ending the session.
func (a *app) runREPL(ctx context.Context) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			fmt.Print("> ")
			continue
		}

		message := line
		if strings.HasPrefix(line, "@") {
			pcm, sampleRate, channels, err := readWav(strings.TrimPrefix(line, "@"))
			if err != nil {
				a.logger.Warn("failed to read audio", slog.String("error", err.Error()))
				fmt.Print("> ")
				continue
			}
			transcript, err := a.recognizer.Transcribe(ctx, pcm, sampleRate, channels)
			if err != nil {
				a.logger.Warn("recognition failed", slog.String("error", err.Error()))
				fmt.Print("> ")
				continue
			}
			message = transcript.Text
			fmt.Printf("you: %s\n", message)
		}

		if err := a.chatTurn(ctx, message); err != nil {
			a.logger.Error("chat turn failed", slog.String("error", err.Error()))
		}
		fmt.Print("> ")
	}
}

// chatTurn streams one reply, printing chunks as they arrive and feeding
// completed sentences into the utterance queue.
func (a *app) chatTurn(ctx context.Context, message string) error {
	if a.queue != nil {
		// A new question interrupts whatever is still being spoken.
		a.queue.CancelAll()
	}

	stream, err := a.client.ChatStream(ctx, a.sessionID, a.history, message)
	if err != nil {
		return err
	}
	defer stream.Close()

	var reply strings.Builder
	var sentence strings.Builder
	for {
		chunk, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			fmt.Println()
			return fmt.Errorf("reply stream broke: %w", err)
		}
		fmt.Print(chunk.Text)
		reply.WriteString(chunk.Text)
		sentence.WriteString(chunk.Text)
		if flushed := flushSentences(&sentence); flushed != "" {
			a.speak(flushed)
		}
	}
	fmt.Println()
	a.speak(sentence.String())

	a.history = append(a.history,
		protocol.ChatTurn{Role: protocol.RoleUser, Text: message},
		protocol.ChatTurn{Role: protocol.RoleModel, Text: reply.String()},
	)
	return nil
}

func (a *app) speak(text string) {
	if a.queue == nil {
		return
	}
	a.queue.Enqueue(speech.Utterance{
		Text:     text,
		Language: a.cfg.Synthesizer.Language,
		Rate:     a.cfg.Synthesizer.Rate,
	})
}

// flushSentences removes and returns any complete sentences from buf,
// leaving the unfinished tail in place.
func flushSentences(buf *strings.Builder) string {
	s := buf.String()
	cut := -1
	for i, r := range s {
		switch r {
		case '.', '!', '?', '\n':
			cut = i
		}
	}
	if cut < 0 {
		return ""
	}
	complete := s[:cut+1]
	rest := s[cut+1:]
	buf.Reset()
	buf.WriteString(rest)
	return complete
}

// readWav loads a WAV file as 16-bit little-endian PCM.
func readWav(path string) ([]byte, int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("decode wav: %w", err)
	}
	pcm := make([]byte, 2*len(buf.Data))
	for i, sample := range buf.Data {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(sample)))
	}
	return pcm, buf.Format.SampleRate, buf.Format.NumChannels, nil
}

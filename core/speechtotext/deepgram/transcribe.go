package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-rehearse/core/audio"
	"github.com/koscakluka/ema-rehearse/core/speechtotext"
)

func (r *Recognizer) connect(ctx context.Context, encoding listenEncoding) (*websocket.Conn, error) {
	apiKey := r.apiKey
	if apiKey == "" {
		var ok bool
		if apiKey, ok = os.LookupEnv("DEEPGRAM_API_KEY"); !ok {
			return nil, fmt.Errorf("deepgram api key not found")
		}
	}

	listenURL, err := url.Parse(r.listenURL)
	if err != nil {
		return nil, fmt.Errorf("invalid listen url: %w", err)
	}
	listenURL.RawQuery = listenQuery(encoding, r.options).Encode()

	conn, _, err := r.dialer.DialContext(ctx, listenURL.String(),
		http.Header{"Authorization": {"Token " + apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	return conn, nil
}

func listenQuery(encoding listenEncoding, options speechtotext.RecognizerOptions) url.Values {
	queryParams := url.Values{}
	queryParams.Set("encoding", encoding.name)
	queryParams.Set("sample_rate", strconv.Itoa(encoding.sampleRate))
	queryParams.Set("channels", "1")
	queryParams.Set("model", options.Model)
	queryParams.Set("language", options.Language)
	queryParams.Set("smart_format", "true")
	queryParams.Set("interim_results", "true")
	queryParams.Set("endpointing", strconv.FormatInt(options.Endpointing.Milliseconds(), 10))
	queryParams.Set("utterance_end_ms", strconv.FormatInt(options.UtteranceEnd.Milliseconds(), 10))
	queryParams.Set("vad_events", "true")
	return queryParams
}

// capture is one live listen connection. The read loop is the only writer of
// the segment state.
type capture struct {
	conn   *websocket.Conn
	connMu sync.Mutex
	cancel context.CancelFunc

	onSnapshot func(speechtotext.UtteranceSnapshot)
	options    speechtotext.RecognizerOptions

	lastAudioAt atomic.Int64
	stopped     atomic.Bool
	closeOnce   sync.Once
	closeErr    error

	finalized    []speechtotext.Segment
	speechActive bool
	unflushed    bool
}

func newCapture(
	conn *websocket.Conn,
	cancel context.CancelFunc,
	onSnapshot func(speechtotext.UtteranceSnapshot),
	options speechtotext.RecognizerOptions,
) *capture {
	c := &capture{
		conn:       conn,
		cancel:     cancel,
		onSnapshot: onSnapshot,
		options:    options,
	}
	c.lastAudioAt.Store(time.Now().UnixNano())
	return c
}

func (c *capture) sendAudio(audio []byte) {
	if c.stopped.Load() {
		return
	}

	c.lastAudioAt.Store(time.Now().UnixNano())
	if err := c.write(websocket.BinaryMessage, audio); err != nil {
		logger.Warn("failed to send audio to deepgram", "error", err)
	}
}

func (c *capture) write(messageType int, data []byte) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return nil
	}
	if err := c.conn.WriteMessage(messageType, data); err != nil {
		return fmt.Errorf("failed to write to deepgram client: %w", err)
	}
	return nil
}

func (c *capture) writeControl(messageType api.TypeResponse) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return nil
	}
	if err := c.conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: string(messageType)}); err != nil {
		return fmt.Errorf("failed to send %s: %w", messageType, err)
	}
	return nil
}

func (c *capture) close() error {
	c.closeOnce.Do(func() {
		c.stopped.Store(true)
		c.closeErr = c.writeControl(api.TypeCloseStreamResponse)
		if c.cancel != nil {
			c.cancel()
		}

		c.connMu.Lock()
		if c.conn != nil {
			c.conn.Close()
		}
		c.connMu.Unlock()
	})
	return c.closeErr
}

func (c *capture) readMessages(ctx context.Context) {
	for {
		msgType, msg, err := c.conn.ReadMessage()
		if err != nil {
			if !c.stopped.Load() && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				logger.Warn("failed to read deepgram websocket message", "error", err)
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		if msgType != websocket.BinaryMessage {
			c.processMessage(msg)
		}
	}
}

func (c *capture) processMessage(msg []byte) {
	var parsedMsg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		logger.Warn("failed to unmarshal deepgram message", "error", err)
		return
	}

	switch api.TypeResponse(parsedMsg.Type) {
	case api.TypeMessageResponse:
		var msgResp api.MessageResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			logger.Warn("failed to unmarshal deepgram results", "error", err)
			return
		}

		segments := segmentsFrom(msgResp)
		if msgResp.IsFinal {
			c.finalized = append(c.finalized, segments...)
			c.unflushed = c.unflushed || len(segments) > 0
			if msgResp.SpeechFinal {
				c.endSpeech()
				return
			}
			c.emit(c.finalized, false)
			return
		}

		interim := make([]speechtotext.Segment, 0, len(c.finalized)+len(segments))
		interim = append(interim, c.finalized...)
		interim = append(interim, segments...)
		c.emit(interim, false)

	case api.TypeUtteranceEndResponse:
		if c.speechActive || c.unflushed {
			c.endSpeech()
		}

	case api.TypeSpeechStartedResponse:
		c.speechActive = true
		if c.options.SpeechStartedCallback != nil {
			c.options.SpeechStartedCallback()
		}
	}
}

func (c *capture) endSpeech() {
	c.speechActive = false
	c.unflushed = false
	c.emit(c.finalized, true)
	if c.options.SpeechEndedCallback != nil {
		c.options.SpeechEndedCallback()
	}
}

func (c *capture) emit(segments []speechtotext.Segment, isFinal bool) {
	if c.stopped.Load() || c.onSnapshot == nil {
		return
	}

	snapshot := speechtotext.UtteranceSnapshot{
		Segments:  append([]speechtotext.Segment(nil), segments...),
		IsFinal:   isFinal,
		Timestamp: time.Now(),
	}
	c.onSnapshot(snapshot)
}

func segmentsFrom(msgResp api.MessageResponse) []speechtotext.Segment {
	if len(msgResp.Channel.Alternatives) == 0 {
		return nil
	}
	alternative := msgResp.Channel.Alternatives[0]

	if len(alternative.Words) == 0 {
		var segments []speechtotext.Segment
		for _, word := range strings.Fields(alternative.Transcript) {
			segments = append(segments, speechtotext.Segment{Text: word})
		}
		return segments
	}

	segments := make([]speechtotext.Segment, 0, len(alternative.Words))
	for _, word := range alternative.Words {
		text := word.PunctuatedWord
		if text == "" {
			text = word.Word
		}
		segments = append(segments, speechtotext.Segment{
			Text:       text,
			Start:      seconds(word.Start),
			End:        seconds(word.End),
			Confidence: word.Confidence,
		})
	}
	return segments
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// generateSilence keeps the connection alive while the microphone is quiet:
// a second of silence frames first so endpointing can fire, then periodic
// KeepAlive messages.
func (c *capture) generateSilence(ctx context.Context, encoding audio.EncodingInfo) {
	type silenceGeneratorState string
	const (
		silenceGeneratorStateWaiting   silenceGeneratorState = "waiting"
		silenceGeneratorStateSilence   silenceGeneratorState = "silence"
		silenceGeneratorStateKeepAlive silenceGeneratorState = "keepAlive"
	)

	const chunkDuration = 50 * time.Millisecond
	ticker := time.NewTicker(chunkDuration)
	defer ticker.Stop()

	chunk := make([]byte, encoding.BytesFor(chunkDuration))
	for i := range chunk {
		chunk[i] = encoding.SilenceValue()
	}

	sinceAudio := func() time.Duration {
		return time.Since(time.Unix(0, c.lastAudioAt.Load()))
	}

	state := silenceGeneratorStateWaiting
	var firstSilenceAt, lastKeepAliveAt time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			switch state {
			case silenceGeneratorStateWaiting:
				if sinceAudio() > chunkDuration {
					state = silenceGeneratorStateSilence
					firstSilenceAt = time.Now()
				}

			case silenceGeneratorStateSilence:
				if sinceAudio() < chunkDuration {
					state = silenceGeneratorStateWaiting
					continue
				}
				if time.Since(firstSilenceAt) >= time.Second {
					state = silenceGeneratorStateKeepAlive
					lastKeepAliveAt = time.Now()
					continue
				}

				if err := c.write(websocket.BinaryMessage, chunk); err != nil {
					logger.Debug("sending silence audio failed", "error", err)
				}

			case silenceGeneratorStateKeepAlive:
				if sinceAudio() < chunkDuration {
					state = silenceGeneratorStateWaiting
					continue
				}

				if time.Since(lastKeepAliveAt) >= 5*time.Second {
					lastKeepAliveAt = time.Now()
					if err := c.writeControl("KeepAlive"); err != nil {
						logger.Debug("sending keepalive failed", "error", err)
					}
				}
			}
		}
	}
}

package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-rehearse/core/texttospeech"
)

func (s *Speaker) connect(ctx context.Context) (*websocket.Conn, error) {
	apiKey := s.apiKey
	if apiKey == "" {
		var ok bool
		if apiKey, ok = os.LookupEnv("DEEPGRAM_API_KEY"); !ok {
			return nil, fmt.Errorf("deepgram api key not found")
		}
	}

	speakURL, err := url.Parse(s.speakURL)
	if err != nil {
		return nil, fmt.Errorf("invalid speak url: %w", err)
	}
	speakURL.RawQuery = speakQuery(s.options).Encode()

	conn, _, err := s.dialer.DialContext(ctx, speakURL.String(),
		http.Header{"Authorization": {"Token " + apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	return conn, nil
}

func speakQuery(options texttospeech.SpeakerOptions) url.Values {
	urlValues := url.Values{}
	urlValues.Set("encoding", options.EncodingInfo.Format.Name())
	urlValues.Set("sample_rate", strconv.Itoa(options.EncodingInfo.SampleRate))
	urlValues.Set("model", options.Voice)
	urlValues.Set("container", "none")
	return urlValues
}

type speakMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type controlMessage struct {
	Type string `json:"type"`
}

type incomingMessage struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	ErrCode     string `json:"err_code,omitempty"`
	ErrMsg      string `json:"err_msg,omitempty"`
}

// utterance is one text synthesized on its own connection. The read loop is
// the only writer of the audio counters.
type utterance struct {
	conn   *websocket.Conn
	connMu sync.Mutex

	text       string
	output     texttospeech.AudioOutput
	options    texttospeech.SpeakerOptions
	onComplete func()

	audioBytes atomic.Int64
	flushed    atomic.Bool
	stopped    atomic.Bool
	finished   atomic.Bool

	finishOnce sync.Once
	closeOnce  sync.Once
	closeErr   error
}

func newUtterance(conn *websocket.Conn, text string, output texttospeech.AudioOutput, options texttospeech.SpeakerOptions, onComplete func()) *utterance {
	return &utterance{
		conn:       conn,
		text:       text,
		output:     output,
		options:    options,
		onComplete: onComplete,
	}
}

func (u *utterance) readMessages() {
	defer func() { _ = u.close() }()

	for {
		msgType, msg, err := u.conn.ReadMessage()
		if err != nil {
			if u.stopped.Load() || u.flushed.Load() {
				return
			}
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				logger.Warn("speak websocket read failed", "error", err)
				u.options.ErrorCallback(fmt.Errorf("speak connection failed: %w", err))
			}
			// Whatever made it to the output still gets played.
			texttospeech.Mark(u.output, u.text, func(string) { u.finish(false, true) })
			return
		}

		u.processMessage(msgType, msg)
	}
}

func (u *utterance) processMessage(msgType int, msg []byte) {
	if u.stopped.Load() {
		return
	}

	switch msgType {
	case websocket.BinaryMessage:
		if len(msg) == 0 {
			return
		}
		u.audioBytes.Add(int64(len(msg)))
		u.options.SpeechAudioCallback(msg)
		if u.output != nil {
			if err := u.output.SendAudio(msg); err != nil {
				logger.Debug("failed to send synthesized audio to output", "error", err)
			}
		}

	case websocket.TextMessage:
		var parsed incomingMessage
		if err := json.Unmarshal(msg, &parsed); err != nil {
			logger.Debug("failed to unmarshal deepgram message", "error", err)
			return
		}

		switch parsed.Type {
		case "Flushed":
			if !u.flushed.CompareAndSwap(false, true) {
				return
			}
			texttospeech.Mark(u.output, u.text, func(string) { u.finish(false, true) })
			if err := u.send(controlMessage{Type: "Close"}); err != nil {
				logger.Debug("failed to close speak stream", "error", err)
			}
		case "Warning":
			logger.Warn("deepgram speak warning", "description", parsed.Description)
		case "Error":
			logger.Error("deepgram speak error", "code", parsed.ErrCode, "message", parsed.ErrMsg)
		case "Metadata", "Cleared":
		default:
			logger.Debug("unknown deepgram speak message", "type", parsed.Type)
		}
	}
}

// finish reports the utterance as ended. notify is false when the caller
// asked for the interruption and is no longer waiting.
func (u *utterance) finish(interrupted, notify bool) {
	u.finishOnce.Do(func() {
		u.finished.Store(true)
		u.options.SpeechEndedCallback(texttospeech.SpeechEndedReport{
			Text:        u.text,
			Audio:       u.options.EncodingInfo.Duration(int(u.audioBytes.Load())),
			Interrupted: interrupted,
		})
		if notify {
			u.onComplete()
		}
	})
}

func (u *utterance) stop() error {
	if !u.stopped.CompareAndSwap(false, true) {
		return nil
	}
	u.finish(true, false)

	var err error
	if !u.flushed.Load() {
		err = u.send(controlMessage{Type: "Clear"})
	}
	return errors.Join(err, u.close())
}

func (u *utterance) send(msg any) error {
	u.connMu.Lock()
	defer u.connMu.Unlock()
	if u.conn == nil {
		return fmt.Errorf("websocket connection closed")
	}

	if err := u.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to write to websocket: %w", err)
	}
	return nil
}

func (u *utterance) close() error {
	u.closeOnce.Do(func() {
		u.connMu.Lock()
		defer u.connMu.Unlock()
		if u.conn == nil {
			return
		}

		closeMessage := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if err := u.conn.WriteMessage(websocket.CloseMessage, closeMessage); err != nil {
			logger.Debug("failed to send close frame", "error", err)
		}
		u.closeErr = u.conn.Close()
	})
	return u.closeErr
}

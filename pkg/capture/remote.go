package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"

	"github.com/attentix/attentix/internal/log"
)

// RemoteConfig configures a WebRTC camera attached through a
// GStreamer-style signalling server.
type RemoteConfig struct {
	// SignallingURL is the websocket endpoint, e.g. ws://host:8443.
	SignallingURL string
	// ProducerName selects the producer by its advertised meta name.
	ProducerName string
	// ConnectTimeout bounds the wait for the first video track.
	// Defaults to 15s.
	ConnectTimeout time.Duration
	// DecodeInterval is the floor between ffmpeg decodes. Defaults to
	// 100ms, i.e. up to 10 stills per second.
	DecodeInterval time.Duration
}

func (c RemoteConfig) withDefaults() RemoteConfig {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 15 * time.Second
	}
	if c.DecodeInterval <= 0 {
		c.DecodeInterval = 100 * time.Millisecond
	}
	return c
}

// Signalling wire messages. The server speaks the GStreamer webrtcsink
// dialect: welcome, list, startSession, then peer messages carrying
// SDP and ICE.
type signalMessage struct {
	Type      string          `json:"type"`
	PeerID    string          `json:"peerId,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	Producers []producerEntry `json:"producers,omitempty"`
	SDP       *sdpPayload     `json:"sdp,omitempty"`
	ICE       *icePayload     `json:"ice,omitempty"`
}

type producerEntry struct {
	ID   string            `json:"id"`
	Meta map[string]string `json:"meta"`
}

type sdpPayload struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

type icePayload struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}

// pickProducer returns the id of the producer advertising the wanted
// name, or the only producer when no name is configured.
func pickProducer(producers []producerEntry, name string) (string, error) {
	if name == "" {
		if len(producers) == 1 {
			return producers[0].ID, nil
		}
		return "", fmt.Errorf("capture: %d producers available, set a producer name", len(producers))
	}
	for _, p := range producers {
		if p.Meta["name"] == name {
			return p.ID, nil
		}
	}
	return "", fmt.Errorf("capture: producer %q not found among %d producers", name, len(producers))
}

// Remote is a camera reached over WebRTC. The video track's H264
// payload is decoded to JPEG stills through the package Decoder.
type Remote struct {
	cfg RemoteConfig

	ws   *websocket.Conn
	wsMu sync.Mutex
	pc   *webrtc.PeerConnection

	peerID     string
	producerID string
	sessionID  string

	decoder    *Decoder
	fps        *FPSCounter
	trackReady chan struct{}
	closed     atomic.Bool
}

// DialRemote connects to the signalling server, attaches to the
// producer and blocks until video flows or the timeout expires.
func DialRemote(ctx context.Context, cfg RemoteConfig) (*Remote, error) {
	cfg = cfg.withDefaults()
	r := &Remote{
		cfg:        cfg,
		decoder:    NewDecoder(cfg.DecodeInterval),
		fps:        NewFPSCounter(),
		trackReady: make(chan struct{}, 1),
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	ws, _, err := dialer.DialContext(ctx, cfg.SignallingURL, nil)
	if err != nil {
		return nil, fmt.Errorf("capture: dial signalling %s: %w", cfg.SignallingURL, err)
	}
	r.ws = ws

	if err := r.handshake(); err != nil {
		ws.Close()
		return nil, err
	}
	if err := r.createPeerConnection(); err != nil {
		ws.Close()
		return nil, err
	}
	if err := r.writeSignal(signalMessage{Type: "startSession", PeerID: r.producerID}); err != nil {
		r.Close()
		return nil, fmt.Errorf("capture: start session: %w", err)
	}

	go r.handleSignalling()

	select {
	case <-r.trackReady:
		log.Info("remote camera connected", "producer", r.producerID)
		return r, nil
	case <-time.After(cfg.ConnectTimeout):
		r.Close()
		return nil, fmt.Errorf("capture: no video track after %s", cfg.ConnectTimeout)
	case <-ctx.Done():
		r.Close()
		return nil, ctx.Err()
	}
}

// handshake consumes the welcome message and resolves the producer id
// from the list response.
func (r *Remote) handshake() error {
	welcome, err := r.readSignal(10 * time.Second)
	if err != nil {
		return fmt.Errorf("capture: read welcome: %w", err)
	}
	if welcome.Type != "welcome" {
		return fmt.Errorf("capture: expected welcome, got %q", welcome.Type)
	}
	r.peerID = welcome.PeerID

	if err := r.writeSignal(signalMessage{Type: "list"}); err != nil {
		return fmt.Errorf("capture: request producer list: %w", err)
	}
	list, err := r.readSignal(5 * time.Second)
	if err != nil {
		return fmt.Errorf("capture: read producer list: %w", err)
	}
	r.producerID, err = pickProducer(list.Producers, r.cfg.ProducerName)
	return err
}

func (r *Remote) readSignal(timeout time.Duration) (signalMessage, error) {
	r.ws.SetReadDeadline(time.Now().Add(timeout))
	defer r.ws.SetReadDeadline(time.Time{})

	_, raw, err := r.ws.ReadMessage()
	if err != nil {
		return signalMessage{}, err
	}
	var msg signalMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return signalMessage{}, err
	}
	return msg, nil
}

func (r *Remote) writeSignal(msg signalMessage) error {
	r.wsMu.Lock()
	defer r.wsMu.Unlock()
	return r.ws.WriteJSON(msg)
}

func (r *Remote) createPeerConnection() error {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return fmt.Errorf("capture: peer connection: %w", err)
	}
	r.pc = pc

	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		return fmt.Errorf("capture: add video transceiver: %w", err)
	}

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if track.Kind() != webrtc.RTPCodecTypeVideo {
			return
		}
		log.Info("remote camera track", "codec", track.Codec().MimeType)
		go r.consumeTrack(track)
	})

	pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate != nil {
			r.sendICECandidate(candidate)
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		log.Debug("remote camera connection state", "state", state.String())
	})

	return nil
}

// handleSignalling answers SDP offers and feeds remote ICE candidates
// until the session ends or the socket drops.
func (r *Remote) handleSignalling() {
	for !r.closed.Load() {
		_, raw, err := r.ws.ReadMessage()
		if err != nil {
			if !r.closed.Load() {
				log.Error("remote camera signalling read failed", "error", err)
			}
			return
		}

		var msg signalMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Warn("remote camera unparsable signal", "error", err)
			continue
		}

		switch msg.Type {
		case "sessionStarted":
			r.sessionID = msg.SessionID
		case "peer":
			r.handlePeer(msg)
		case "endSession":
			log.Info("remote camera session ended by server")
			return
		}
	}
}

func (r *Remote) handlePeer(msg signalMessage) {
	if msg.SDP != nil && msg.SDP.Type == "offer" {
		offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: msg.SDP.SDP}
		if err := r.pc.SetRemoteDescription(offer); err != nil {
			log.Error("remote camera set remote description failed", "error", err)
			return
		}
		answer, err := r.pc.CreateAnswer(nil)
		if err != nil {
			log.Error("remote camera create answer failed", "error", err)
			return
		}
		if err := r.pc.SetLocalDescription(answer); err != nil {
			log.Error("remote camera set local description failed", "error", err)
			return
		}
		r.writeSignal(signalMessage{
			Type:      "peer",
			SessionID: r.sessionID,
			SDP:       &sdpPayload{Type: answer.Type.String(), SDP: answer.SDP},
		})
	}

	if msg.ICE != nil {
		init := webrtc.ICECandidateInit{
			Candidate:     msg.ICE.Candidate,
			SDPMid:        msg.ICE.SDPMid,
			SDPMLineIndex: msg.ICE.SDPMLineIndex,
		}
		if err := r.pc.AddICECandidate(init); err != nil {
			log.Warn("remote camera add ICE candidate failed", "error", err)
		}
	}
}

func (r *Remote) sendICECandidate(candidate *webrtc.ICECandidate) {
	if r.sessionID == "" {
		return
	}
	init := candidate.ToJSON()
	r.writeSignal(signalMessage{
		Type:      "peer",
		SessionID: r.sessionID,
		ICE: &icePayload{
			Candidate:     init.Candidate,
			SDPMid:        init.SDPMid,
			SDPMLineIndex: init.SDPMLineIndex,
		},
	})
}

// consumeTrack accumulates RTP payloads and decodes a still roughly
// every decode interval.
func (r *Remote) consumeTrack(track *webrtc.TrackRemote) {
	select {
	case r.trackReady <- struct{}{}:
	default:
	}

	var (
		nalBuf     []byte
		pkt        *rtp.Packet
		err        error
		lastDecode = time.Now()
	)
	for !r.closed.Load() {
		pkt, _, err = track.ReadRTP()
		if err != nil {
			if !r.closed.Load() {
				log.Error("remote camera track read failed", "error", err)
			}
			return
		}
		nalBuf = append(nalBuf, pkt.Payload...)

		if time.Since(lastDecode) >= r.cfg.DecodeInterval {
			if still, err := r.decoder.Decode(nalBuf); err == nil && still != nil {
				r.fps.Tick()
			}
			// The decoder's stdin writer may briefly outlive Decode, so
			// hand it the buffer and start a fresh one.
			nalBuf = nil
			lastDecode = time.Now()
		}
	}
}

// Frame returns the latest decoded still.
func (r *Remote) Frame() ([]byte, error) {
	if still := r.decoder.Latest(); still != nil {
		return still, nil
	}
	return nil, fmt.Errorf("capture: no frame from remote camera yet")
}

// Rate returns decoded stills per second over the last second.
func (r *Remote) Rate() float64 { return r.fps.Rate() }

// Close tears down the peer connection and the signalling socket.
func (r *Remote) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	if r.pc != nil {
		r.pc.Close()
	}
	if r.ws != nil {
		r.ws.Close()
	}
	return nil
}

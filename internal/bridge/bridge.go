// Package bridge copies telemetry messages from the broker into the ledger REST API.
package bridge

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/benbjohnson/clock"

	"kusensors/internal/clientmqtt"
	"kusensors/internal/config"
	"kusensors/internal/logger"
	"kusensors/internal/metrics"
)

// ErrPost wraps ledger request failures.
var ErrPost = errors.New("ledger post failed")

// Subscriber is the broker side. *clientmqtt.ClientMQTT implements it.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string, qos byte, handler clientmqtt.MessageHandler) error
}

// Patient references the record owner.
type Patient struct {
	Class     string `json:"$class"`
	PatientID string `json:"PatientId"`
}

// Entry is the ledger payload of one message.
type Entry struct {
	Class     string  `json:"$class"`
	PatientID Patient `json:"patientId"`
	Name      string  `json:"name"`
	Date      string  `json:"date"`
	Note      string  `json:"note"`
}

// Record is the asset posted to the ledger.
type Record struct {
	Class    string `json:"$class"`
	RecordID string `json:"COVIDId"`
	Entry    Entry  `json:"covid"`
}

type Bridge struct {
	log     logger.Logger
	cfg     config.BridgeConf
	http    *http.Client
	clock   clock.Clock
	metrics *metrics.Metrics
}

// New конструктор. m may be nil.
func New(log logger.Logger, cfg config.BridgeConf, clk clock.Clock, m *metrics.Metrics) *Bridge {
	return &Bridge{
		log:     log,
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout.D()},
		clock:   clk,
		metrics: m,
	}
}

// Start subscribes to the configured topic filter.
func (b *Bridge) Start(ctx context.Context, sub Subscriber) error {
	return sub.Subscribe(ctx, b.cfg.Topic, 1, b.Handle)
}

// Handle turns one broker message into a ledger record and posts it. Failures are logged and
// the message is dropped.
func (b *Bridge) Handle(topic string, payload []byte) {
	l := b.log.With(logger.Fields{"module": "bridge", "topic": topic})

	rec, err := b.Record(topic, payload)
	if err != nil {
		b.metrics.BridgeRecord("invalid")
		l.Errorf("message skipped: %v", err)
		return
	}
	if err := b.post(context.Background(), rec); err != nil {
		b.metrics.BridgeRecord("failed")
		l.Errorf("%v", err)
		return
	}
	b.metrics.BridgeRecord("ok")
	l.Debugf("record %s posted", rec.RecordID)
}

// Record builds the ledger record of a message. The payload must be JSON.
func (b *Bridge) Record(topic string, payload []byte) (Record, error) {
	var note bytes.Buffer
	if err := json.Compact(&note, payload); err != nil {
		return Record{}, fmt.Errorf("payload is not json: %w", err)
	}

	ns := b.cfg.AssetClass
	if i := strings.LastIndexByte(ns, '.'); i >= 0 {
		ns = ns[:i]
	}
	return Record{
		Class:    b.cfg.AssetClass,
		RecordID: hash(b.cfg.Salt + note.String()),
		Entry: Entry{
			Class:     ns + ".COVID",
			PatientID: Patient{Class: ns + ".Patients", PatientID: hash(topic)},
			Name:      topic,
			Date:      b.clock.Now().Format(time.UnixDate),
			Note:      note.String(),
		},
	}, nil
}

func (b *Bridge) post(ctx context.Context, rec Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrPost, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPost, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPost, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrPost, resp.StatusCode)
	}
	return nil
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

package stream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ivlev/flipbook/internal/timeline"
)

const (
	DefaultTopic   = "flipbook/frame"
	publishTimeout = 2 * time.Second
)

// Event announces the frame that became active.
type Event struct {
	Index int
	Fixed bool
	Name  string
}

// MarshalBinary encodes the event as index (uint16), flags (byte) and the
// UTF-8 name.
func (e Event) MarshalBinary() ([]byte, error) {
	if e.Index < 0 || e.Index > 0xffff {
		return nil, fmt.Errorf("frame index %d does not fit the wire format", e.Index)
	}
	data := make([]byte, 3, 3+len(e.Name))
	binary.LittleEndian.PutUint16(data, uint16(e.Index))
	if e.Fixed {
		data[2] = 1
	}
	return append(data, e.Name...), nil
}

func (e *Event) UnmarshalBinary(data []byte) error {
	if len(data) < 3 {
		return errors.New("short frame event")
	}
	e.Index = int(binary.LittleEndian.Uint16(data))
	e.Fixed = data[2]&1 != 0
	e.Name = string(data[3:])
	return nil
}

// Publisher sends an Event to an MQTT topic whenever the timeline activates
// a frame. It never blocks navigation on the broker.
type Publisher struct {
	client mqtt.Client
	topic  string
}

func NewPublisher(client mqtt.Client, topic string) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Publisher{client: client, topic: topic}
}

// Dial connects to the broker at url.
func Dial(url, clientID string) (mqtt.Client, error) {
	options := mqtt.NewClientOptions().
		AddBroker(url).
		SetClientID(clientID).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(5 * time.Second).
		SetAutoReconnect(true)
	client := mqtt.NewClient(options)
	token := client.Connect()
	if !token.WaitTimeout(publishTimeout) {
		return nil, fmt.Errorf("mqtt connect %s: timeout", url)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", url, err)
	}
	return client, nil
}

func (p *Publisher) FrameActivated(index int, f timeline.Frame) {
	b, err := Event{Index: index, Fixed: f.Fixed, Name: f.DisplayName}.MarshalBinary()
	if err != nil {
		log.Printf("[!] mqtt: %v", err)
		return
	}
	token := p.client.Publish(p.topic, 0, true, b)
	go func() {
		if token.WaitTimeout(publishTimeout) && token.Error() != nil {
			log.Printf("[!] mqtt publish to %s: %v", p.topic, token.Error())
		}
	}()
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}

package app

import (
	"encoding/json"
	"sync"

	"github.com/relabs-tech/pinball_tilt/internal/motion"
	"github.com/relabs-tech/pinball_tilt/internal/rate"
)

type fakeSource struct {
	mu      sync.Mutex
	samples []motion.Sample
	next    motion.Sample
	err     error
	rate    rate.Code
	reads   int
}

func (s *fakeSource) Read() (motion.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.err != nil {
		return motion.Sample{}, s.err
	}
	if len(s.samples) > 0 {
		v := s.samples[0]
		s.samples = s.samples[1:]
		return v, nil
	}
	return s.next, nil
}

func (s *fakeSource) SampleRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	hz, _ := rate.Frequency(s.rate)
	return hz
}

func (s *fakeSource) SetRate(code rate.Code) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rate = code
	return nil
}

func (s *fakeSource) Close() error { return nil }

type fakePublisher struct {
	mu   sync.Mutex
	msgs map[string][][]byte
}

func (p *fakePublisher) PublishJSON(topic string, retained bool, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.msgs == nil {
		p.msgs = map[string][][]byte{}
	}
	p.msgs[topic] = append(p.msgs[topic], payload)
	return nil
}

func (p *fakePublisher) count(topic string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.msgs[topic])
}

// last decodes the most recent message on topic into v.
func (p *fakePublisher) last(topic string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	msgs := p.msgs[topic]
	if len(msgs) == 0 {
		return json.Unmarshal([]byte("null"), v)
	}
	return json.Unmarshal(msgs[len(msgs)-1], v)
}

type recordingSink struct {
	msgs   []JoystickMessage
	closed bool
}

func (s *recordingSink) Write(m JoystickMessage) error {
	s.msgs = append(s.msgs, m)
	return nil
}

func (s *recordingSink) Close() error {
	s.closed = true
	return nil
}

package metrics

import (
	"fmt"
	"strings"
	"sync"
)

// Provider publica métricas. Implementações: Datadog (observability) e
// Recorder, em memória.
type Provider interface {
	Count(name string, value float64, tags []string) error
	Gauge(name string, value float64, tags []string) error
	Histogram(name string, value float64, tags []string) error
}

// MetricType define os tipos suportados.
type MetricType string

const (
	TypeCount     MetricType = "count"
	TypeGauge     MetricType = "gauge"
	TypeHistogram MetricType = "histogram"
)

// MetricDefinition liga o id usado nos endpoints ao nome publicado.
type MetricDefinition struct {
	Name string
	Type MetricType
}

// Sample é uma métrica publicada em um Recorder.
type Sample struct {
	Type  MetricType
	Name  string
	Value float64
	Tags  []string
}

// String formata como "count decoy.request.count 1 [method:GET]".
func (s Sample) String() string {
	return fmt.Sprintf("%s %s %g [%s]", s.Type, s.Name, s.Value, strings.Join(s.Tags, ","))
}

// Recorder guarda as métricas em memória, para asserções em testes de quem
// usa o decoy.
type Recorder struct {
	mu      sync.Mutex
	samples []Sample
}

func (r *Recorder) record(t MetricType, name string, value float64, tags []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, Sample{Type: t, Name: name, Value: value, Tags: append([]string(nil), tags...)})
	return nil
}

func (r *Recorder) Count(name string, value float64, tags []string) error {
	return r.record(TypeCount, name, value, tags)
}

func (r *Recorder) Gauge(name string, value float64, tags []string) error {
	return r.record(TypeGauge, name, value, tags)
}

func (r *Recorder) Histogram(name string, value float64, tags []string) error {
	return r.record(TypeHistogram, name, value, tags)
}

// Samples retorna uma cópia das métricas, em ordem.
func (r *Recorder) Samples() []Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sample(nil), r.samples...)
}

// ByName filtra as métricas pelo nome.
func (r *Recorder) ByName(name string) []Sample {
	var out []Sample
	for _, s := range r.Samples() {
		if s.Name == name {
			out = append(out, s)
		}
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.samples = nil
	r.mu.Unlock()
}

package observability

import (
	"fmt"
	"strings"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/raywall/decoy/pkg/config"
	"github.com/raywall/decoy/pkg/metrics"
)

// NoopProvider é usado quando as métricas estão desabilitadas.
type NoopProvider struct{}

func (n *NoopProvider) Count(name string, value float64, tags []string) error     { return nil }
func (n *NoopProvider) Gauge(name string, value float64, tags []string) error     { return nil }
func (n *NoopProvider) Histogram(name string, value float64, tags []string) error { return nil }
func (n *NoopProvider) Close() error                                              { return nil }

// DatadogProvider adapta o cliente statsd do Datadog ao metrics.Provider.
type DatadogProvider struct {
	client statsd.ClientInterface
}

var (
	_ metrics.Provider = (*NoopProvider)(nil)
	_ metrics.Provider = (*DatadogProvider)(nil)
)

func (d *DatadogProvider) Count(name string, value float64, tags []string) error {
	return d.client.Count(name, int64(value), tags, 1)
}

func (d *DatadogProvider) Gauge(name string, value float64, tags []string) error {
	return d.client.Gauge(name, value, tags, 1)
}

func (d *DatadogProvider) Histogram(name string, value float64, tags []string) error {
	return d.client.Histogram(name, value, tags, 1)
}

// Close envia as métricas pendentes e encerra o cliente.
func (d *DatadogProvider) Close() error {
	return d.client.Close()
}

// Provider é o metrics.Provider devolvido por SetupMetrics, que precisa
// ser fechado no encerramento do processo.
type Provider interface {
	metrics.Provider
	Close() error
}

// SetupMetrics inicializa o provedor correto baseado no YAML. tags são
// adicionadas a todas as métricas (ex: "server:zoo").
func SetupMetrics(cfg config.MetricsConf, tags ...string) (Provider, error) {
	if !cfg.Datadog.Enabled {
		return &NoopProvider{}, nil
	}

	namespace := cfg.Datadog.Namespace
	if namespace != "" && !strings.HasSuffix(namespace, ".") {
		namespace += "."
	}

	client, err := statsd.New(cfg.Datadog.Addr,
		statsd.WithNamespace(namespace),
		statsd.WithTags(tags),
	)
	if err != nil {
		return nil, fmt.Errorf("falha ao conectar no datadog statsd: %w", err)
	}

	return &DatadogProvider{client: client}, nil
}

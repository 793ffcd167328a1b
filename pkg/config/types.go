package config

import "time"

// Config representa a estrutura raiz do arquivo YAML de servidores decoy.
type Config struct {
	Logging LoggingConf  `yaml:"logging"`
	Metrics MetricsConf  `yaml:"metrics"`
	Servers []ServerConf `yaml:"servers" validate:"required,min=1,dive"`
}

// ServerConf descreve um servidor decoy e tudo o que ele expõe.
type ServerConf struct {
	Name        string           `yaml:"name" validate:"required,hostname_rfc1123"`
	Port        int              `yaml:"port" validate:"gte=0,lte=65535"` // 0 escolhe uma porta livre
	Transport   string           `yaml:"transport" validate:"omitempty,oneof=mux box"`
	Root        string           `yaml:"root" validate:"omitempty,startswith=/"`
	Collections []CollectionConf `yaml:"collections" validate:"dive"`
	Endpoints   []EndpointConf   `yaml:"endpoints" validate:"dive"`
	Guards      []GuardConf      `yaml:"guards" validate:"dive"`
	// Admin expõe /__decoy/requests, /__decoy/routes e /__decoy/reset.
	Admin bool `yaml:"admin"`
}

const (
	KindMemory   = "memory"
	KindSQLite   = "sqlite"
	KindPostgres = "postgres"
	KindRedis    = "redis"
)

// CollectionConf descreve uma coleção de registros e seu backend.
type CollectionConf struct {
	Name     string           `yaml:"name" validate:"required"`
	Kind     string           `yaml:"kind" validate:"omitempty,oneof=memory sqlite postgres redis"`
	Identity string           `yaml:"identity"`
	None     interface{}      `yaml:"none"`
	Records  []map[string]any `yaml:"records"`
	// RecordsFrom é um arquivo JSON/YAML (local, file:// ou s3://) com
	// registros acrescentados a Records no carregamento.
	RecordsFrom string `yaml:"records_from"`

	// sqlite / postgres
	Table  string `yaml:"table"`
	DSN    string `yaml:"dsn"`
	Schema string `yaml:"schema"` // DDL executado antes de popular a tabela

	// redis
	Addr   string `yaml:"addr"`
	Prefix string `yaml:"prefix"`
}

// BackendKind retorna Kind com o padrão "memory".
func (c CollectionConf) BackendKind() string {
	if c.Kind == "" {
		return KindMemory
	}
	return c.Kind
}

// EndpointConf declara um endpoint. Exatamente uma das formas deve estar
// presente: collection, static, response (com when/otherwise opcionais),
// data, file, dir ou proxy.
type EndpointConf struct {
	Path   string `yaml:"path" validate:"required"`
	Method string `yaml:"method" validate:"omitempty,oneof=GET POST PUT DELETE PATCH HEAD OPTIONS"`

	Collection string      `yaml:"collection"`
	Static     interface{} `yaml:"static"`

	When      string        `yaml:"when"`
	Response  *ResponseConf `yaml:"response"`
	Otherwise *ResponseConf `yaml:"otherwise"`

	Data              []map[string]any `yaml:"data"`
	QueryParams       []ParamMapping   `yaml:"query_params" validate:"dive"`
	PathParams        []ParamMapping   `yaml:"path_params" validate:"dive"`
	ResponseOnMatch   *ResponseConf    `yaml:"response_on_match"`
	ResponseOnNoMatch *ResponseConf    `yaml:"response_on_no_match"`

	File  string `yaml:"file"`
	Dir   string `yaml:"dir"`
	Index string `yaml:"index"`

	Proxy *ProxyConf `yaml:"proxy"`

	Transformations []TransformationRule     `yaml:"transformations" validate:"dive"`
	Metrics         []MetricRegistrationRule `yaml:"metrics" validate:"dive"`
}

const (
	EndpointCollection  = "collection"
	EndpointStatic      = "static"
	EndpointConditional = "response"
	EndpointDataset     = "data"
	EndpointFile        = "file"
	EndpointDir         = "dir"
	EndpointProxy       = "proxy"
)

// Kinds lista as formas presentes no endpoint, na ordem de EndpointCollection
// a EndpointDir. Um endpoint válido tem exatamente uma.
func (e EndpointConf) Kinds() []string {
	var kinds []string
	if e.Collection != "" {
		kinds = append(kinds, EndpointCollection)
	}
	if e.Static != nil {
		kinds = append(kinds, EndpointStatic)
	}
	if e.Response != nil {
		kinds = append(kinds, EndpointConditional)
	}
	if e.Data != nil {
		kinds = append(kinds, EndpointDataset)
	}
	if e.File != "" {
		kinds = append(kinds, EndpointFile)
	}
	if e.Dir != "" {
		kinds = append(kinds, EndpointDir)
	}
	if e.Proxy != nil {
		kinds = append(kinds, EndpointProxy)
	}
	return kinds
}

// HTTPMethod retorna Method com o padrão GET.
func (e EndpointConf) HTTPMethod() string {
	if e.Method == "" {
		return "GET"
	}
	return e.Method
}

// ParamMapping mapeia um parâmetro da requisição para um campo dos dados.
type ParamMapping struct {
	Name   string `yaml:"name" validate:"required"`
	MapsTo string `yaml:"maps_to"`
}

// Field retorna MapsTo, ou Name quando vazio.
func (p ParamMapping) Field() string {
	if p.MapsTo == "" {
		return p.Name
	}
	return p.MapsTo
}

// ProxyConf repassa a requisição a um serviço real. A URI recebida
// (path e query) é anexada a Target.
type ProxyConf struct {
	Target  string            `yaml:"target" validate:"required,url"`
	Timeout string            `yaml:"timeout"`
	Headers map[string]string `yaml:"headers"`
	// Auth obtém um token client credentials enviado como Bearer.
	Auth *ProxyAuthConf `yaml:"auth"`
}

type ProxyAuthConf struct {
	TokenURL     string `yaml:"token_url" validate:"required,url"`
	ClientID     string `yaml:"client_id" validate:"required"`
	ClientSecret string `yaml:"client_secret"`
	Scope        string `yaml:"scope"`
}

// GetTimeout retorna o timeout configurado, zero quando ausente ou inválido.
func (p ProxyConf) GetTimeout() time.Duration {
	d, err := time.ParseDuration(p.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// ResponseConf é uma resposta declarada.
type ResponseConf struct {
	Status  int               `yaml:"status" validate:"omitempty,gte=100,lt=600"`
	Body    interface{}       `yaml:"body"`
	Headers map[string]string `yaml:"headers"`
	Delay   string            `yaml:"delay"` // Ex: "150ms"
}

// StatusOr retorna Status, ou def quando não informado.
func (r ResponseConf) StatusOr(def int) int {
	if r.Status == 0 {
		return def
	}
	return r.Status
}

// GetDelay retorna o atraso configurado, zero quando ausente ou inválido.
func (r ResponseConf) GetDelay() time.Duration {
	if r.Delay == "" {
		return 0
	}
	d, err := time.ParseDuration(r.Delay)
	if err != nil {
		return 0
	}
	return d
}

// GuardConf é um pré-handler declarativo: quando a expressão When for
// verdadeira a requisição é rejeitada com Reject.
type GuardConf struct {
	Include []string     `yaml:"include"`
	Exclude []string     `yaml:"exclude"`
	When    string       `yaml:"when" validate:"required"`
	Reject  ResponseConf `yaml:"reject"`
}

type LoggingConf struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format  string `yaml:"format" validate:"omitempty,oneof=json console"`
}

type MetricsConf struct {
	Datadog DatadogConf `yaml:"datadog"`
}

type DatadogConf struct {
	Enabled           bool                     `yaml:"enabled" env:"DD_ENABLED"`
	Addr              string                   `yaml:"addr" env:"DD_AGENT_HOST" validate:"required_if=Enabled true"`
	Namespace         string                   `yaml:"namespace"`
	CustomDefinitions []CustomMetricDefinition `yaml:"custom_definitions" validate:"dive"`
}

type CustomMetricDefinition struct {
	ID   string `yaml:"id" validate:"required"`
	Name string `yaml:"name" validate:"required"`
	Type string `yaml:"type" validate:"oneof=count gauge histogram"`
}

// TransformationRule grava um valor calculado no contexto da avaliação.
// Target é um caminho separado por pontos ("response.body.total", "vars.x").
type TransformationRule struct {
	Name      string `yaml:"name" validate:"required"`
	Condition string `yaml:"condition" validate:"required"`
	Value     string `yaml:"value" validate:"required"`
	ElseValue string `yaml:"else_value"`
	Target    string `yaml:"target" validate:"required"`
}

type MetricRegistrationRule struct {
	MetricID string            `yaml:"metric_id" validate:"required"`
	Value    string            `yaml:"value" validate:"required"`
	Tags     map[string]string `yaml:"tags"`
}

package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/raywall/decoy/pkg/config/injector"
	"gopkg.in/yaml.v3"
)

// Load é o atalho usado pela CLI: carrega, injeta e valida a configuração.
func Load(ctx context.Context, source string) (*Config, error) {
	return NewUniversalLoader().Load(ctx, source)
}

// S3Downloader abstrai o cliente S3 (Permite Mocking).
type S3Downloader interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// UniversalLoader carrega a configuração de um arquivo local ou do S3.
type UniversalLoader struct {
	validator *ConfigValidator
	injector  *injector.Injector
	s3        S3Downloader
}

type LoaderOption func(*UniversalLoader)

// WithS3Client usa o cliente informado em vez do criado a partir do
// ambiente AWS.
func WithS3Client(c S3Downloader) LoaderOption {
	return func(ul *UniversalLoader) { ul.s3 = c }
}

func WithInjector(i *injector.Injector) LoaderOption {
	return func(ul *UniversalLoader) { ul.injector = i }
}

func NewUniversalLoader(opts ...LoaderOption) *UniversalLoader {
	ul := &UniversalLoader{
		validator: NewValidator(),
		injector:  injector.New(),
	}
	for _, opt := range opts {
		opt(ul)
	}
	return ul
}

// Load detecta o esquema da fonte (s3://, file:// ou caminho local) e
// carrega a configuração.
func (ul *UniversalLoader) Load(ctx context.Context, source string) (*Config, error) {
	rawData, err := ul.Fetch(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("falha leitura config (%s): %w", source, err)
	}
	return ul.Parse(ctx, rawData)
}

// Fetch lê o conteúdo bruto de um caminho local, file:// ou s3://.
func (ul *UniversalLoader) Fetch(ctx context.Context, source string) ([]byte, error) {
	if !strings.HasPrefix(source, "s3://") {
		return ul.loadFromFile(source)
	}

	client := ul.s3
	if client == nil {
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("falha ao carregar configuração AWS: %w", err)
		}
		client = s3.NewFromConfig(cfg)
		ul.s3 = client
	}
	return ul.loadFromS3(ctx, client, source)
}

// LoadRecords lê uma lista de registros em JSON ou YAML.
func (ul *UniversalLoader) LoadRecords(ctx context.Context, source string) ([]map[string]any, error) {
	data, err := ul.Fetch(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("falha leitura registros (%s): %w", source, err)
	}

	var records []map[string]any
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("registros malformados (%s): %w", source, err)
	}
	return records, nil
}

func (ul *UniversalLoader) loadFromFile(path string) ([]byte, error) {
	return os.ReadFile(strings.TrimPrefix(path, "file://"))
}

func (ul *UniversalLoader) loadFromS3(ctx context.Context, client S3Downloader, uri string) ([]byte, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("URL S3 inválida: %w", err)
	}
	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("URL S3 inválida: '%s'", uri)
	}

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()

	return io.ReadAll(out.Body)
}

// Parse decodifica o YAML, resolve ${env|ssm|secret.*} e valida.
// Campos desconhecidos são rejeitados.
func (ul *UniversalLoader) Parse(ctx context.Context, data []byte) (*Config, error) {
	var cfg Config

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("YAML malformado: %w", err)
	}

	if ul.injector != nil {
		if err := ul.injector.Inject(ctx, &cfg); err != nil {
			return nil, fmt.Errorf("falha na injeção de variáveis: %w", err)
		}
	}

	if err := ul.resolveRecords(ctx, &cfg); err != nil {
		return nil, err
	}

	if ul.validator != nil {
		if err := ul.validator.Validate(&cfg); err != nil {
			return nil, fmt.Errorf("validação da configuração falhou: %w", err)
		}
	}

	return &cfg, nil
}

// resolveRecords acrescenta aos records de cada coleção os registros de
// records_from.
func (ul *UniversalLoader) resolveRecords(ctx context.Context, cfg *Config) error {
	for i := range cfg.Servers {
		for j := range cfg.Servers[i].Collections {
			cc := &cfg.Servers[i].Collections[j]
			if cc.RecordsFrom == "" {
				continue
			}
			records, err := ul.LoadRecords(ctx, cc.RecordsFrom)
			if err != nil {
				return fmt.Errorf("coleção '%s': %w", cc.Name, err)
			}
			cc.Records = append(cc.Records, records...)
		}
	}
	return nil
}

package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// listener concentra o ciclo de vida do http.Server comum aos transportes.
type listener struct {
	mu     sync.Mutex
	name   string
	logger zerolog.Logger
	srv    *http.Server
	port   int
}

func (l *listener) start(ctx context.Context, port int, handler http.Handler) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.srv != nil {
		return nil
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("falha ao escutar na porta %d: %w", port, err)
	}
	if addr, ok := ln.Addr().(*net.TCPAddr); ok {
		l.port = addr.Port
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	l.srv = srv

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.logger.Error().Err(err).Str("transport", l.name).Msg("servidor HTTP encerrado com erro")
		}
	}()

	l.logger.Info().Str("transport", l.name).Int("port", l.port).Msg("servidor HTTP ouvindo")
	return nil
}

func (l *listener) shutdown(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.srv == nil {
		return nil
	}
	err := l.srv.Shutdown(ctx)
	l.srv = nil
	if err != nil {
		return fmt.Errorf("falha ao encerrar servidor HTTP: %w", err)
	}
	l.logger.Info().Str("transport", l.name).Int("port", l.port).Msg("servidor HTTP encerrado")
	return nil
}

func (l *listener) currentPort() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.port
}

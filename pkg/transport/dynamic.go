package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/raywall/decoy/pkg/route"
	"github.com/rs/zerolog/log"
)

// HandleDynamic executa uma rota dinâmica:
//  1. registra a requisição no log do host;
//  2. executa os pre-handlers habilitados do servidor e o da rota,
//     parando se algum deles codificar a resposta;
//  3. executa o handler; erros e panics viram 500 {"error": "..."};
//  4. aplica o formatter da rota e codifica a resposta.
func HandleDynamic(w http.ResponseWriter, r *http.Request, def route.Definition, host Host, pathParams map[string]string) {
	ctx := r.Context()
	logger := log.Ctx(ctx).With().Str("route_id", def.RouteID).Logger()
	resp := route.NewResponse(w)

	req, err := route.NewRequest(r, pathParams)
	if err != nil {
		logger.Warn().Err(err).Msg("requisição inválida")
		_ = resp.Send(http.StatusBadRequest, errorBody(err)).Encode()
		return
	}

	reqLog := host.RequestLog()
	entry := reqLog.LogRequest(req, def)
	p := route.Params{Request: req, Response: resp, State: host.State()}

	err = runChain(ctx, def, host, p)
	if err != nil {
		logger.Error().Err(err).Msg("falha no handler da rota")
		resp.Send(http.StatusInternalServerError, errorBody(err))
	}

	if resp.IsEncoded() {
		reqLog.Complete(entry, resp.StatusCode(), err)
		return
	}

	if err == nil && def.ResponseFormatter != nil {
		payload, ferr := def.ResponseFormatter(ctx, resp.Payload(), p)
		if ferr != nil {
			err = fmt.Errorf("falha ao formatar resposta: %w", ferr)
			logger.Error().Err(err).Msg("falha no formatter da rota")
			resp.Send(http.StatusInternalServerError, errorBody(err))
		} else {
			resp.Body(payload)
		}
	}

	reqLog.Complete(entry, resp.StatusCode(), err)
	if encErr := resp.Encode(); encErr != nil {
		logger.Error().Err(encErr).Msg("falha ao codificar resposta")
	}
}

func runChain(ctx context.Context, def route.Definition, host Host, p route.Params) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()

	for _, ph := range host.PreHandlers() {
		if ph.Handler == nil || !ph.Enabled(def.Path) {
			continue
		}
		if err := ph.Handler(ctx, p); err != nil {
			return err
		}
		if p.Response.IsEncoded() {
			return nil
		}
	}

	if def.PreHandler != nil {
		if err := def.PreHandler(ctx, p); err != nil {
			return err
		}
		if p.Response.IsEncoded() {
			return nil
		}
	}

	return def.Handler(ctx, p)
}

func errorBody(err error) map[string]any {
	return map[string]any{"error": err.Error()}
}

// writeError responde JSON fora do fluxo de rotas (404, 405).
func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": msg})
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, fmt.Sprintf("rota %s %s não encontrada", r.Method, r.URL.Path))
}

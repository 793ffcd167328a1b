// Copyright 2025 Raywall Malheiros de Souza
// Licensed under the Mozilla Public License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	https://www.mozilla.org/en-US/MPL/2.0/
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// Package emulator sobe servidores decoy a partir de um arquivo YAML, sem
// escrever handlers: cada servidor declara coleções, endpoints e guards, e o
// emulator os converte em um server.Server.
//
// Formas de endpoint (exatamente uma por endpoint):
//   - collection: rotas CRUD sobre uma coleção declarada (memory, sqlite,
//     postgres ou redis).
//   - static: responde sempre 200 com o corpo informado.
//   - response: resposta declarada, condicionada por uma expressão CEL em
//     `when`, com `otherwise` para o caso falso (404 sem otherwise).
//   - data: filtra um dataset por `path_params` e `query_params`; um único
//     match retorna o objeto, vários retornam a lista.
//   - file / dir: arquivos estáticos.
//   - proxy: repassa a requisição a um serviço real, opcionalmente com um
//     token client credentials.
//
// Endpoints dinâmicos aceitam `transformations` (CEL sobre request,
// response, vars, state e env) e `metrics`, enviadas ao provider
// configurado.
//
// Ler uma chave ausente, como request.headers['x-token'] sem o header, é um
// erro de avaliação e a requisição recebe 500. Guards e condições testam a
// presença antes: "!('x-token' in request.headers) || ...", ou
// has(request.query.name) para chaves sem hífen.
//
// Exemplo:
//
//	servers:
//	  - name: zoo
//	    port: 8080
//	    root: /api
//	    admin: true
//	    collections:
//	      - name: animals
//	        records:
//	          - {id: 1, name: Tiger}
//	    guards:
//	      - include: [/animals]
//	        when: "!('authorization' in request.headers)"
//	    endpoints:
//	      - path: animals
//	        collection: animals
//	      - path: /users/{id}
//	        path_params: [{name: id, maps_to: user_id}]
//	        data:
//	          - {user_id: 1, name: Alice}
//
// Uso:
//
//	cfg, err := config.Load(ctx, "decoy.yaml")
//	emu, err := emulator.New(ctx, cfg, emulator.WithLogger(log.Logger))
//	err = emu.Run(ctx)
package emulator

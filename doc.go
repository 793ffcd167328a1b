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
// Package decoy reúne as peças para subir servidores HTTP falsos em testes:
// coleções de registros com CRUD, rotas declarativas, pre-handlers e um log
// de requisições para asserções.
//
// Sub-pacotes principais:
//
//   - collection: coleções de registros sobre memória, SQL (sqlite, postgres)
//     ou Redis, com eventos before/after, veto e reset.
//   - resource: rotas CRUD sobre uma coleção.
//   - endpoint: converte a configuração de endpoints em rotas.
//   - server: monta o servidor sobre um transporte (gorilla/mux ou box),
//     mantém o State e o log de requisições.
//   - tools/emulator: sobe servidores a partir de um arquivo YAML.
//   - cmd/decoy: CLI (serve, routes, validate).
//
// Exemplo:
//
//	s, err := server.Create(ctx,
//	    server.WithEndpoints(endpoint.Configuration{
//	        "cheeses": endpoint.Records([]collection.Record{{"id": 1, "name": "Brie"}}),
//	    }),
//	    server.WithAutostart(),
//	)
//	defer s.Shutdown(ctx)
//
//	resp, _ := http.Get(s.URL() + "/cheeses/1")
//	fmt.Println(s.RequestLog().StatusCodes()) // [200]
package decoy

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

// Package collection implementa as coleções de registros usadas pelos
// servidores decoy: um contrato comum (RecordCollection), o ciclo de vida de
// eventos before/after com veto e backends plugáveis (memória, SQL e Redis).
//
// Visão Geral:
//
// Um Record é um mapa aberto de campos. Cada coleção define um campo de
// identidade (padrão "id"); registros inseridos sem identidade recebem um
// inteiro gerado a partir do maior id numérico existente.
//
// O Collection envolve um Backend mínimo (PerformInsert, PerformUpdateOne,
// PerformDeleteOne, Find, FindOne, Count, Clear, Reset, IsInitialized) e
// aplica os eventos de forma uniforme, independentemente do armazenamento.
//
// Eventos:
//
//   - beforeInsert, beforeUpdate, beforeDelete: emitidos antes da mutação.
//     Um listener que retorna o bool false veta a operação, que então
//     retorna "none" sem tocar o backend.
//   - insert, update, delete: emitidos após a mutação com o registro final.
//
// Critérios:
//
// FindOne, UpdateOne e DeleteOne recebem um Criteria explícito:
//
//   - ByIdentity(v): compara a identidade. Strings são convertidas para o
//     tipo do campo de identidade ("3" encontra o id numérico 3).
//   - ByQuery(q): primeiro registro que satisfaz a Query.
//   - Criteria{} (zero value): primeiro registro da coleção.
//
// Exemplo:
//
//	coll := collection.NewArrayCollection([]collection.Record{
//		{"id": 1, "name": "Goldfish"},
//	})
//
//	coll.OnBeforeDelete(func(ctx context.Context, e collection.BeforeDeleteEvent) bool {
//		return e.Record["name"] != "Goldfish" // veta a remoção do Goldfish
//	})
//
//	rec, ok, err := coll.Insert(ctx, collection.Record{"name": "Tiger"})
//	// rec["id"] == 2, ok == true
//
//	tigers, _ := coll.Find(ctx, collection.Query{"name": collection.In("Tiger", "Lion")})
package collection

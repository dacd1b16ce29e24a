/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package httpapi

import "meshgraph/internal/registry"

// RegistryAddressBook resolves peer addresses from a live Registry, so
// Client/Dispatcher never need a separately maintained address map.
type RegistryAddressBook struct {
	Registry *registry.Registry
}

func (b RegistryAddressBook) Address(iid string) (string, bool) {
	for _, p := range b.Registry.ListPeers(nil) {
		if p.IID == iid {
			return p.Address, true
		}
	}
	return "", false
}

var _ AddressBook = RegistryAddressBook{}
